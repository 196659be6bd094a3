package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Error kinds. Every error returned by the core wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrLocked         = errors.New("account locked")
	ErrForbidden      = errors.New("access forbidden")
	ErrDelivery       = errors.New("notification delivery failed")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

var (
	ErrUserExists      = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
	ErrSignupNotFound  = fmt.Errorf("%w: pending signup", ErrNotFound)
	ErrSubjectNotFound = fmt.Errorf("%w: token subject", ErrNotFound)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrUnverified         = fmt.Errorf("%w: email not verified", ErrAuthentication)
	ErrUnauthenticated    = fmt.Errorf("%w: no token", ErrAuthentication)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrExpiredToken       = fmt.Errorf("%w: token expired", ErrAuthentication)
	ErrStaleToken         = fmt.Errorf("%w: password changed after token issue", ErrAuthentication)
	ErrRevokedToken       = fmt.Errorf("%w: refresh token revoked", ErrAuthentication)
	ErrMissingRefresh     = fmt.Errorf("%w: no refresh token", ErrAuthentication)
	ErrIncorrectPassword  = fmt.Errorf("%w: current password incorrect", ErrAuthentication)

	ErrOTPExpired          = fmt.Errorf("%w: code expired", ErrValidation)
	ErrOTPAttemptsExceeded = fmt.Errorf("%w: too many code attempts", ErrValidation)
	ErrInvalidOTP          = fmt.Errorf("%w: code mismatch", ErrValidation)
	ErrInvalidResetToken   = fmt.Errorf("%w: reset token invalid or expired", ErrValidation)
)

// ValidationError lists every rule the input broke.
type ValidationError struct {
	Violations []string
}

func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, ". ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LockedError is returned while an account sits inside its lock window.
type LockedError struct {
	Remaining time.Duration
}

// Minutes rounds the remaining lock time up to whole minutes.
func (e *LockedError) Minutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("Account is locked due to too many failed attempts. Try again in %d minute(s).", e.Minutes())
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// CredentialsError is a wrong password on an existing account.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("Incorrect email or password. %d attempt(s) remaining before account lock.", e.AttemptsRemaining)
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }

// InvalidCodeError is a one-time code mismatch.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("Invalid OTP. %d attempt(s) remaining.", e.AttemptsRemaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidOTP }

// DeliveryError is a failed awaited notification. Message is safe to show.
type DeliveryError struct {
	Message string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }

// RateLimitError is a request rejected by a rate-limit rule.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Message }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
