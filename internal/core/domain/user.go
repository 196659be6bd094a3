package domain

import (
	"strings"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the durable account record. Secret fields never leave the store in
// JSON form.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"is_verified"`
	Active     bool   `json:"-"`

	Addresses []Address `json:"addresses"`

	PasswordHash     string `json:"-"`
	RefreshTokenHash string `json:"-"`

	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"-"`

	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetHash    string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordChangedAfter reports whether the password was changed after a token
// with the given issued-at instant was minted. Compared at second precision,
// the resolution of the JWT iat claim.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// Sanitized returns a copy of the user with all secret material removed.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	c.RefreshTokenHash = ""
	c.PasswordResetHash = ""
	c.PasswordResetExpires = nil
	return &c
}

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
