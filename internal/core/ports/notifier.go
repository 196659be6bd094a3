package ports

import (
	"context"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// Notifier delivers a message and reports whether it went out.
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

// NotificationQueue accepts fire-and-forget notifications. Enqueue never
// blocks the caller.
type NotificationQueue interface {
	Enqueue(n domain.Notification)
}
