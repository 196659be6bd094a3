package domain

import "time"

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockDuration     = 30 * time.Minute
)

// LockoutPolicy tracks consecutive failed logins on a User.
//
// The lock is never lifted by a timer. An expired LockUntil is observed
// lazily: the next failure restarts the count at 1, the next success clears
// everything.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// LoginFailure is the store update produced by one failed attempt. Repositories
// apply it as a single atomic write.
type LoginFailure struct {
	// Restart sets the counter to 1 and clears the lock instead of incrementing.
	Restart bool
	// LockUntil is set when this failure exhausts the attempt budget.
	LockUntil *time.Time
}

func (p LockoutPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxLoginAttempts
	}
	return p.MaxAttempts
}

func (p LockoutPolicy) lockDuration() time.Duration {
	if p.LockDuration <= 0 {
		return DefaultLockDuration
	}
	return p.LockDuration
}

// Limit returns the effective attempt budget.
func (p LockoutPolicy) Limit() int { return p.maxAttempts() }

// Duration returns the effective lock window.
func (p LockoutPolicy) Duration() time.Duration { return p.lockDuration() }

// IsLocked reports whether the account is inside an active lock window.
func (p LockoutPolicy) IsLocked(u *User, now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// Remaining returns how long the current lock still holds, or zero.
func (p LockoutPolicy) Remaining(u *User, now time.Time) time.Duration {
	if !p.IsLocked(u, now) {
		return 0
	}
	return u.LockUntil.Sub(now)
}

// RecordFailure computes the update for one failed attempt against u.
func (p LockoutPolicy) RecordFailure(u *User, now time.Time) LoginFailure {
	if u.LockUntil != nil && !u.LockUntil.After(now) {
		return LoginFailure{Restart: true}
	}
	var f LoginFailure
	if u.LoginAttempts+1 >= p.maxAttempts() && !p.IsLocked(u, now) {
		until := now.Add(p.lockDuration())
		f.LockUntil = &until
	}
	return f
}

// Apply mutates u in memory the way a store applies the update.
func (f LoginFailure) Apply(u *User) {
	if f.Restart {
		u.LoginAttempts = 1
		u.LockUntil = nil
		return
	}
	u.LoginAttempts++
	if f.LockUntil != nil {
		until := *f.LockUntil
		u.LockUntil = &until
	}
}

// RecordSuccess clears the counter and any lock on u.
func (p LockoutPolicy) RecordSuccess(u *User) {
	u.LoginAttempts = 0
	u.LockUntil = nil
}

// AttemptsRemaining returns how many failures are left before the lock.
func (p LockoutPolicy) AttemptsRemaining(u *User) int {
	left := p.maxAttempts() - u.LoginAttempts
	if left < 0 {
		return 0
	}
	return left
}
