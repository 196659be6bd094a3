package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
	"github.com/instastick/storefront-auth/internal/docs"
)

type tokenAuth struct {
	ports.AuthService
	tokens map[string]*domain.User
}

func (a *tokenAuth) Authenticate(_ context.Context, raw string) (*domain.User, error) {
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}
	u, ok := a.tokens[raw]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return u, nil
}

func (a *tokenAuth) Login(context.Context, string, string) (*domain.Session, error) {
	return nil, domain.ErrInvalidCredentials
}

type listOnlyUsers struct {
	ports.UserService
}

func (listOnlyUsers) ListUsers(context.Context, ports.ListUsersInput) (*ports.ListUsersResult, error) {
	return &ports.ListUsersResult{Page: 1, Limit: 20}, nil
}

func (listOnlyUsers) DeleteAddress(context.Context, string, string) ([]domain.Address, error) {
	return nil, domain.ErrAddressNotFound
}

// denyLogins rejects every hit on the auth rule.
type denyLogins struct{}

func (denyLogins) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, time.Duration, error) {
	if len(key) >= 5 && key[:5] == "auth:" {
		return false, 90 * time.Second, nil
	}
	return true, 0, nil
}

var (
	routerOnce sync.Once
	testRouter *echo.Echo
)

// router builds one instance per test binary; the Prometheus middleware
// registers its collectors globally.
func router() *echo.Echo {
	routerOnce.Do(func() {
		testRouter = NewRouter(Deps{
			Auth: &tokenAuth{tokens: map[string]*domain.User{
				"user-token":  {ID: "u1", Role: domain.RoleUser},
				"admin-token": {ID: "a1", Role: domain.RoleAdmin},
			}},
			Users:       listOnlyUsers{},
			Limiter:     denyLogins{},
			Limits:      DefaultRateLimits(),
			FrontendURL: "http://localhost:3000",
			Log:         zerolog.Nop(),
		})
	})
	return testRouter
}

func serve(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router().ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestRouter_Health(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/health/ready", "").Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	rec := serve(http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "You are not logged in. Please log in to access this resource.", errorMessage(t, rec))

	rec = serve(http.MethodGet, "/api/v1/users", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token. Please log in again.", errorMessage(t, rec))

	rec = serve(http.MethodGet, "/api/v1/users", "user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(http.MethodGet, "/api/v1/users", "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MeIsOpenToAnyRole(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/users/me", "user-token").Code)
}

func TestRouter_RateLimitedLogin(t *testing.T) {
	rec := serve(http.MethodPost, "/api/v1/auth/login", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many authentication attempts. Please try again in 15 minutes.", errorMessage(t, rec))
}

func TestRouter_UnknownRoute(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/api/v1/nope", "").Code)
}

func TestRouter_AddressRoutesAreNotAdminRoutes(t *testing.T) {
	rec := serve(http.MethodDelete, "/api/v1/users/addresses/0b7c5a52-3f1e-4c4e-9f0a-6f5d2c1b8a90", "user-token")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Address not found", errorMessage(t, rec))
}

func TestRouter_IgnoresForwardedForByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.1")

	assert.Equal(t, "192.0.2.10", router().IPExtractor(req))
}

var pathParam = regexp.MustCompile(`:(\w+)`)

func TestRouter_EveryAPIRouteIsDocumented(t *testing.T) {
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))

	verbs := map[string]bool{http.MethodGet: true, http.MethodPost: true, http.MethodPatch: true, http.MethodDelete: true}
	checked := 0
	for _, r := range router().Routes() {
		if !strings.HasPrefix(r.Path, "/api/") || !verbs[r.Method] {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		_, ok := doc.Paths[path][strings.ToLower(r.Method)]
		assert.True(t, ok, "%s %s missing from the API docs", r.Method, path)
		checked++
	}
	assert.Equal(t, 19, checked)
}
