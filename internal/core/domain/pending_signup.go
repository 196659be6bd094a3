package domain

import "time"

// PendingSignup is the transient record held while an email address is being
// verified. The store expires it on its own after the signup TTL.
type PendingSignup struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Code         string
	CodeExpires  time.Time
	Attempts     int
	CreatedAt    time.Time
}

// CodeExpired reports whether the one-time code can no longer be used.
func (p *PendingSignup) CodeExpired(now time.Time) bool {
	return p.CodeExpires.Before(now)
}

// AttemptsExhausted reports whether the attempt budget has been spent.
func (p *PendingSignup) AttemptsExhausted(max int) bool {
	return p.Attempts >= max
}
