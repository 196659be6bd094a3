package ports

import (
	"context"
	"time"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// ListUsersFilter carries paging for the admin user listing.
type ListUsersFilter struct {
	Page  int // 1-based
	Limit int
}

// ProfileUpdate lists the profile fields to overwrite. Nil leaves a field
// alone; Unverify clears the verified flag in the same write.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	Unverify bool
}

// UserRepository is the Credential Store for durable accounts. Lookups only
// ever return active users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// EmailTaken checks the uniqueness constraint, including inactive accounts.
	EmailTaken(ctx context.Context, email string) (bool, error)

	// RecordLoginFailure applies f as one atomic write and returns the user
	// as stored afterwards.
	RecordLoginFailure(ctx context.Context, id string, f domain.LoginFailure) (*domain.User, error)
	ResetLoginAttempts(ctx context.Context, id string) error

	// SetRefreshTokenHash overwrites the single refresh slot; "" clears it.
	SetRefreshTokenHash(ctx context.Context, id, hash string) error

	// UpdatePassword stores a new hash, stamps changedAt, clears any reset
	// token and lockout state.
	UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error
	SetPasswordReset(ctx context.Context, id, hash string, expires time.Time) error
	ClearPasswordReset(ctx context.Context, id string) error
	FindByResetHash(ctx context.Context, hash string, now time.Time) (*domain.User, error)

	// UpdateProfile returns domain.ErrEmailInUse when the new email collides.
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*domain.User, error)
	SetAddresses(ctx context.Context, id string, book []domain.Address) (*domain.User, error)

	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
}
