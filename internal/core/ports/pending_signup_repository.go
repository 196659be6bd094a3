package ports

import (
	"context"
	"time"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// PendingSignupRepository stores at most one pending signup per email.
type PendingSignupRepository interface {
	// Upsert creates the record or replaces the one already held for the email.
	Upsert(ctx context.Context, p *domain.PendingSignup) error
	FindByEmail(ctx context.Context, email string) (*domain.PendingSignup, error)
	// IncrementAttempts atomically bumps the counter and returns the new value.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	// ReplaceCode issues a fresh code and resets the attempt counter.
	ReplaceCode(ctx context.Context, email, code string, expires time.Time) error
	Delete(ctx context.Context, email string) error
}
