package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

const (
	AccessCookie  = "jwt"
	RefreshCookie = "refreshToken"
	// LoggedOut is the placeholder value written over cookies on logout.
	LoggedOut = "loggedout"

	userKey = "user"
)

// Protect resolves the access token into a user and attaches it to the
// context. Requests without a valid token are rejected.
func Protect(auth ports.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := auth.Authenticate(c.Request().Context(), AccessToken(c))
			if err != nil {
				return err
			}
			SetUser(c, user)
			return next(c)
		}
	}
}

// Identify attaches the user when a valid token is present and lets the
// request through either way.
func Identify(auth ports.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := AccessToken(c); raw != "" {
				if user, err := auth.Authenticate(c.Request().Context(), raw); err == nil {
					SetUser(c, user)
				}
			}
			return next(c)
		}
	}
}

// CurrentUser returns the user attached by Protect or Identify.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	u, ok := c.Get(userKey).(*domain.User)
	return u, ok && u != nil
}

// SetUser attaches an authenticated user to the request context.
func SetUser(c echo.Context, u *domain.User) {
	c.Set(userKey, u)
}

// AccessToken reads a Bearer token from the Authorization header, falling
// back to the access cookie.
func AccessToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return CookieValue(c, AccessCookie)
}

// CookieValue returns the cookie's value, treating the logout placeholder as
// absent.
func CookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil || ck.Value == LoggedOut {
		return ""
	}
	return ck.Value
}
