package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/instastick/storefront-auth/internal/api/middleware"
)

// RefreshCookiePath scopes the refresh cookie to the one endpoint that reads it.
const RefreshCookiePath = "/api/v1/auth/refresh-token"

const loggedOutTTL = 5 * time.Second

// CookieSettings controls the session cookies written on login-like responses.
type CookieSettings struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

func (s CookieSettings) setSession(c echo.Context, access, refresh string) {
	now := time.Now()
	c.SetCookie(s.cookie(middleware.AccessCookie, access, "/", now.Add(s.AccessTTL)))
	c.SetCookie(s.cookie(middleware.RefreshCookie, refresh, RefreshCookiePath, now.Add(s.RefreshTTL)))
}

// clear overwrites both cookies with the logged-out marker for a few seconds.
func (s CookieSettings) clear(c echo.Context) {
	exp := time.Now().Add(loggedOutTTL)
	c.SetCookie(s.cookie(middleware.AccessCookie, middleware.LoggedOut, "/", exp))
	c.SetCookie(s.cookie(middleware.RefreshCookie, middleware.LoggedOut, RefreshCookiePath, exp))
}

func (s CookieSettings) cookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
