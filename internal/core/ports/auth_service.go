package ports

import (
	"context"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// SignupInput is the raw signup form.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// PasswordChangeInput is the update-password form of a logged-in user.
type PasswordChangeInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Authenticator resolves an access token into the user it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*domain.User, error)
}

// AuthService covers signup verification and the session lifecycle.
type AuthService interface {
	Authenticator

	RequestSignup(ctx context.Context, in SignupInput) error
	VerifySignup(ctx context.Context, email, code string) (*domain.Session, error)
	ResendCode(ctx context.Context, email string) error

	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, rawRefreshToken string) (*domain.Session, error)
	CheckAuth(ctx context.Context, rawToken string) (*domain.User, bool)

	UpdatePassword(ctx context.Context, userID string, in PasswordChangeInput) (*domain.Session, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirmPassword string) (*domain.Session, error)
}
