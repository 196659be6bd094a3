package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

func TestRestrictTo(t *testing.T) {
	cases := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{"admin allowed", &domain.User{Role: domain.RoleAdmin}, nil},
		{"user forbidden", &domain.User{Role: domain.RoleUser}, domain.ErrForbidden},
		{"anonymous", nil, domain.ErrUnauthenticated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if tc.user != nil {
				c.Set(userKey, tc.user)
			}

			called := false
			err := RestrictTo(domain.RoleAdmin)(func(c echo.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			})(c)

			if !errors.Is(err, tc.wantErr) && !(err == nil && tc.wantErr == nil) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if called != (tc.wantErr == nil) {
				t.Fatalf("next called=%v", called)
			}
		})
	}
}
