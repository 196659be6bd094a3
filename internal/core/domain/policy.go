package domain

import "time"

const (
	DefaultOTPTTL           = 5 * time.Minute
	DefaultOTPMaxAttempts   = 5
	DefaultSignupTTL        = 10 * time.Minute
	DefaultPasswordResetTTL = 10 * time.Minute
)

// OTPPolicy bounds the one-time code used to verify a signup.
type OTPPolicy struct {
	TTL         time.Duration
	MaxAttempts int
	SignupTTL   time.Duration
}

// AuthPolicy is the immutable set of thresholds handed to the auth services at
// construction time.
type AuthPolicy struct {
	Lockout          LockoutPolicy
	OTP              OTPPolicy
	PasswordResetTTL time.Duration
	// ResetURLBase is the frontend origin that serves reset-password.html.
	ResetURLBase string
}

// DefaultAuthPolicy returns the production defaults.
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{
		Lockout: LockoutPolicy{
			MaxAttempts:  DefaultMaxLoginAttempts,
			LockDuration: DefaultLockDuration,
		},
		OTP: OTPPolicy{
			TTL:         DefaultOTPTTL,
			MaxAttempts: DefaultOTPMaxAttempts,
			SignupTTL:   DefaultSignupTTL,
		},
		PasswordResetTTL: DefaultPasswordResetTTL,
	}
}

// WithDefaults fills zero values with the production defaults.
func (p AuthPolicy) WithDefaults() AuthPolicy {
	d := DefaultAuthPolicy()
	if p.Lockout.MaxAttempts <= 0 {
		p.Lockout.MaxAttempts = d.Lockout.MaxAttempts
	}
	if p.Lockout.LockDuration <= 0 {
		p.Lockout.LockDuration = d.Lockout.LockDuration
	}
	if p.OTP.TTL <= 0 {
		p.OTP.TTL = d.OTP.TTL
	}
	if p.OTP.MaxAttempts <= 0 {
		p.OTP.MaxAttempts = d.OTP.MaxAttempts
	}
	if p.OTP.SignupTTL <= 0 {
		p.OTP.SignupTTL = d.OTP.SignupTTL
	}
	if p.PasswordResetTTL <= 0 {
		p.PasswordResetTTL = d.PasswordResetTTL
	}
	return p
}
