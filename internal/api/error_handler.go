package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Status            string   `json:"status"`
	Error             string   `json:"error"`
	MinutesRemaining  *int     `json:"minutes_remaining,omitempty"`
	AttemptsRemaining *int     `json:"attempts_remaining,omitempty"`
	Details           []string `json:"details,omitempty"`
	Debug             string   `json:"debug,omitempty"`
}

// known maps specific errors to a status and a safe message. Order matters:
// the first match wins, so specific errors precede the kinds they wrap.
var known = []struct {
	err    error
	status int
	msg    string
}{
	{domain.ErrUserExists, http.StatusConflict, "Email already registered. Please login instead."},
	{domain.ErrSignupNotFound, http.StatusBadRequest, "No signup request found. Please request OTP again."},
	{domain.ErrOTPAttemptsExceeded, http.StatusBadRequest, "Too many failed OTP attempts. Please start signup again."},
	{domain.ErrOTPExpired, http.StatusBadRequest, "OTP has expired. Please request a new one."},
	{domain.ErrInvalidResetToken, http.StatusBadRequest, "Invalid or expired reset token"},
	{domain.ErrEmailInUse, http.StatusBadRequest, "Email already in use"},
	{domain.ErrAddressLimit, http.StatusBadRequest, "You can only save up to 2 addresses. Please delete one first."},

	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password"},
	{domain.ErrUnverified, http.StatusUnauthorized, "Please verify your email before logging in"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource."},
	{domain.ErrExpiredToken, http.StatusUnauthorized, "Your session has expired. Please log in again."},
	{domain.ErrInvalidToken, http.StatusUnauthorized, "Invalid token. Please log in again."},
	{domain.ErrStaleToken, http.StatusUnauthorized, "Password was recently changed. Please log in again."},
	{domain.ErrRevokedToken, http.StatusUnauthorized, "Token has been revoked. Please log in again."},
	{domain.ErrMissingRefresh, http.StatusUnauthorized, "No refresh token provided. Please log in again."},
	{domain.ErrSubjectNotFound, http.StatusUnauthorized, "The user belonging to this token no longer exists."},
	{domain.ErrIncorrectPassword, http.StatusUnauthorized, "Incorrect password"},

	{domain.ErrLocked, http.StatusLocked, "Account is locked due to too many failed attempts."},
	{domain.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action"},
	{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{domain.ErrAddressNotFound, http.StatusNotFound, "Address not found"},

	{domain.ErrConflict, http.StatusConflict, "Resource already exists"},
	{domain.ErrNotFound, http.StatusNotFound, "Resource not found"},
	{domain.ErrAuthentication, http.StatusUnauthorized, "Authentication failed"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "Too many requests from this IP. Please try again later."},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps domain error
// kinds to status codes and renders one JSON envelope. Unexpected errors are
// logged and reported as 500 without details unless debug is set.
func NewHTTPErrorHandler(log zerolog.Logger, debug bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err)
		if code >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("request failed")
			if debug {
				body.Debug = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fail(he.Code, fmt.Sprintf("%v", he.Message))
	}

	var (
		ve  *domain.ValidationError
		le  *domain.LockedError
		ce  *domain.CredentialsError
		ice *domain.InvalidCodeError
		de  *domain.DeliveryError
		rle *domain.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		body := fail(http.StatusBadRequest, ve.Error())
		body.Details = ve.Violations
		return http.StatusBadRequest, body
	case errors.As(err, &le):
		body := fail(http.StatusLocked, le.Error())
		m := le.Minutes()
		body.MinutesRemaining = &m
		return http.StatusLocked, body
	case errors.As(err, &ce):
		body := fail(http.StatusUnauthorized, ce.Error())
		n := ce.AttemptsRemaining
		body.AttemptsRemaining = &n
		return http.StatusUnauthorized, body
	case errors.As(err, &ice):
		body := fail(http.StatusBadRequest, ice.Error())
		n := ice.AttemptsRemaining
		body.AttemptsRemaining = &n
		return http.StatusBadRequest, body
	case errors.As(err, &de):
		return http.StatusInternalServerError, fail(http.StatusInternalServerError, de.Message)
	case errors.As(err, &rle) && rle.Message != "":
		return http.StatusTooManyRequests, fail(http.StatusTooManyRequests, rle.Message)
	}

	for _, k := range known {
		if errors.Is(err, k.err) {
			return k.status, fail(k.status, k.msg)
		}
	}
	if errors.Is(err, domain.ErrValidation) {
		return http.StatusBadRequest, fail(http.StatusBadRequest, err.Error())
	}

	return http.StatusInternalServerError, fail(http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func fail(code int, msg string) errorResponse {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	return errorResponse{Status: status, Error: msg}
}
