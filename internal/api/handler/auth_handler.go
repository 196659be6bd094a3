package handler

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/instastick/storefront-auth/internal/api/middleware"
	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

const forgotPasswordAck = "If an account with that email exists, a password reset link has been sent."

// AuthOptions carries the presentation settings of the auth endpoints.
type AuthOptions struct {
	Cookies CookieSettings
	OTPTTL  time.Duration
	Brand   string
}

type AuthHandler struct {
	auth ports.AuthService
	opts AuthOptions
}

func NewAuthHandler(auth ports.AuthService, opts AuthOptions) *AuthHandler {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = domain.DefaultOTPTTL
	}
	return &AuthHandler{auth: auth, opts: opts}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sessionResponse struct {
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user,omitempty"`
}

type checkAuthResponse struct {
	Status          string       `json:"status"`
	IsAuthenticated bool         `json:"is_authenticated"`
	User            *domain.User `json:"user,omitempty"`
}

func ok(msg string) messageResponse {
	return messageResponse{Status: "success", Message: msg}
}

// sendSession writes both session cookies and the token pair.
func (h *AuthHandler) sendSession(c echo.Context, code int, s *domain.Session, msg string) error {
	h.opts.Cookies.setSession(c, s.Tokens.AccessToken, s.Tokens.RefreshToken)
	return c.JSON(code, sessionResponse{
		Status:       "success",
		Message:      msg,
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		User:         s.User.Sanitized(),
	})
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("Invalid request payload")
	}
	return nil
}

// Signup starts a signup and emails a verification code.
//
// @Summary      Request signup
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Signup form"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Failure      429   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.auth.RequestSignup(c.Request().Context(), ports.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	minutes := int(math.Ceil(h.opts.OTPTTL.Minutes()))
	return c.JSON(http.StatusOK, ok(fmt.Sprintf("OTP sent to your email. Please verify within %d minutes.", minutes)))
}

// VerifyEmail checks the code and creates the account.
//
// @Summary      Verify signup code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyEmailRequest  true  "Email and code"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  map[string]any
// @Router       /api/v1/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.VerifySignup(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusCreated, session, fmt.Sprintf("Account created successfully! Welcome to %s!", h.opts.Brand))
}

// ResendOTP issues a fresh code for a pending signup.
//
// @Summary      Resend signup code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/v1/auth/resend-otp [post]
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendCode(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok("New OTP sent to your email"))
}

// Login authenticates a verified user.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      423   {object}  map[string]any
// @Router       /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, session, "Logged in successfully!")
}

// Logout revokes the stored refresh token when the caller is known and
// always expires the cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if user, found := middleware.CurrentUser(c); found {
		if err := h.auth.Logout(c.Request().Context(), user.ID); err != nil {
			return err
		}
	}
	h.opts.Cookies.clear(c)
	return c.JSON(http.StatusOK, ok("Logged out successfully"))
}

// RefreshToken rotates the token pair. The refresh cookie wins over the body.
//
// @Summary      Refresh session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  false  "Refresh token when no cookie is sent"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  map[string]any
// @Router       /api/v1/auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := middleware.CookieValue(c, middleware.RefreshCookie)
	if raw == "" {
		var req refreshRequest
		if c.Request().ContentLength != 0 {
			if err := bind(c, &req); err != nil {
				return err
			}
		}
		raw = req.RefreshToken
	}

	session, err := h.auth.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, session, "Token refreshed successfully")
}

// CheckAuth reports whether the caller holds a valid access token. It never
// fails.
//
// @Summary      Check authentication
// @Tags         auth
// @Produce      json
// @Success      200  {object}  checkAuthResponse
// @Router       /api/v1/auth/check-auth [get]
func (h *AuthHandler) CheckAuth(c echo.Context) error {
	user, authenticated := h.auth.CheckAuth(c.Request().Context(), middleware.AccessToken(c))
	resp := checkAuthResponse{Status: "success", IsAuthenticated: authenticated}
	if authenticated {
		resp.User = user.Sanitized()
	}
	return c.JSON(http.StatusOK, resp)
}

// ForgotPassword emails a reset link. The response is the same whether or not
// the address has an account.
//
// @Summary      Forgot password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/v1/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok(forgotPasswordAck))
}

// ResetPassword sets a new password using the emailed token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Reset token"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  sessionResponse
// @Failure      400    {object}  map[string]any
// @Router       /api/v1/auth/reset-password/{token} [patch]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.ResetPassword(c.Request().Context(), c.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, session, "Password reset successful!")
}

// UpdatePassword changes the password of the logged-in user.
//
// @Summary      Update password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updatePasswordRequest  true  "Current and new password"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /api/v1/auth/update-password [patch]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	user, found := middleware.CurrentUser(c)
	if !found {
		return domain.ErrUnauthenticated
	}

	var req updatePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.auth.UpdatePassword(c.Request().Context(), user.ID, ports.PasswordChangeInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, session, "Password updated successfully!")
}
