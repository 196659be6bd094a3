package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type userService struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
	log    zerolog.Logger
}

// NewUserService returns a UserService implementation.
func NewUserService(users ports.UserRepository, hasher ports.PasswordHasher, log zerolog.Logger) ports.UserService {
	return &userService{users: users, hasher: hasher, log: log}
}

// UpdateProfile changes name, email or phone of the caller. A new email must
// be free and drops the verified flag.
func (s *userService) UpdateProfile(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error) {
	if v := validateProfile(&in); len(v) > 0 {
		return nil, domain.NewValidationError(v...)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd := ports.ProfileUpdate{Name: in.Name, Phone: in.Phone}
	if in.Email != nil && *in.Email != user.Email {
		taken, err := s.users.EmailTaken(ctx, *in.Email)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if taken {
			return nil, domain.ErrEmailInUse
		}
		upd.Email = in.Email
		upd.Unverify = true
	}
	if upd.Name == nil && upd.Email == nil && upd.Phone == nil {
		return user.Sanitized(), nil
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, upd)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Bool("email_changed", upd.Unverify).Msg("profile updated")
	return updated.Sanitized(), nil
}

// DeactivateAccount soft-deletes the caller's own account after re-checking
// the password.
func (s *userService) DeactivateAccount(ctx context.Context, userID, password string) error {
	if password == "" {
		return domain.NewValidationError("Please provide your password to delete account")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(password, user.PasswordHash) {
		return domain.ErrIncorrectPassword
	}

	if err := s.users.Deactivate(ctx, user.ID); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("account deactivated")
	return nil
}

func (s *userService) ListUsers(ctx context.Context, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	switch {
	case limit < 1:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	users, total, err := s.users.List(ctx, ports.ListUsersFilter{Page: page, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	items := make([]*domain.User, 0, len(users))
	for _, u := range users {
		items = append(items, u.Sanitized())
	}

	return &ports.ListUsersResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

func (s *userService) AddAddress(ctx context.Context, userID string, in ports.AddressInput) ([]domain.Address, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// The limit is checked before the fields, so a full book reports that first.
	if len(user.Addresses) >= domain.MaxAddresses {
		return nil, domain.ErrAddressLimit
	}
	if v := validateAddress(in); len(v) > 0 {
		return nil, domain.NewValidationError(v...)
	}

	a := domain.Address{
		ID:           uuid.NewString(),
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Pincode:      strings.TrimSpace(in.Pincode),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if in.AddressLine2 != nil {
		a.AddressLine2 = strings.TrimSpace(*in.AddressLine2)
	}
	if in.IsDefault != nil {
		a.IsDefault = *in.IsDefault
	}

	book, err := domain.AddAddress(user.Addresses, a)
	if err != nil {
		return nil, err
	}
	return s.saveAddresses(ctx, user.ID, book)
}

func (s *userService) UpdateAddress(ctx context.Context, userID, addressID string, in ports.AddressInput) ([]domain.Address, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	book, err := domain.UpdateAddress(user.Addresses, addressID, domain.AddressPatch{
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		AddressLine2: in.AddressLine2,
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Pincode:      strings.TrimSpace(in.Pincode),
		Phone:        strings.TrimSpace(in.Phone),
		IsDefault:    in.IsDefault,
	})
	if err != nil {
		return nil, err
	}
	return s.saveAddresses(ctx, user.ID, book)
}

func (s *userService) DeleteAddress(ctx context.Context, userID, addressID string) ([]domain.Address, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	book, err := domain.RemoveAddress(user.Addresses, addressID)
	if err != nil {
		return nil, err
	}
	return s.saveAddresses(ctx, user.ID, book)
}

func (s *userService) saveAddresses(ctx context.Context, userID string, book []domain.Address) ([]domain.Address, error) {
	updated, err := s.users.SetAddresses(ctx, userID, book)
	if err != nil {
		return nil, fmt.Errorf("save addresses: %w", err)
	}
	if updated.Addresses == nil {
		return []domain.Address{}, nil
	}
	return updated.Addresses, nil
}
