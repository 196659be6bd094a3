package ports

import (
	"context"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

// ListUsersInput carries the paging parameters of the admin listing.
type ListUsersInput struct {
	Page  int
	Limit int
}

// ListUsersResult is one page of users.
type ListUsersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// UpdateProfileInput is a self-service profile edit. Password fields are
// carried only so they can be refused.
type UpdateProfileInput struct {
	Name            *string
	Email           *string
	Phone           *string
	Password        string
	ConfirmPassword string
}

// AddressInput is the body of an address create or update.
type AddressInput struct {
	AddressLine1 string
	AddressLine2 *string
	City         string
	State        string
	Pincode      string
	Phone        string
	IsDefault    *bool
}

// UserService covers account self-service and admin management.
type UserService interface {
	UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error)
	DeactivateAccount(ctx context.Context, userID, password string) error

	AddAddress(ctx context.Context, userID string, in AddressInput) ([]domain.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID string, in AddressInput) ([]domain.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) ([]domain.Address, error)

	ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersResult, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}
