package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
	"github.com/instastick/storefront-auth/internal/infrastructure/security"
	"github.com/instastick/storefront-auth/internal/metrics"
)

const resetTokenBytes = 32

// AuthService implements ports.AuthService.
type AuthService struct {
	users    ports.UserRepository
	pending  ports.PendingSignupRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	notifier ports.Notifier
	queue    ports.NotificationQueue
	policy   domain.AuthPolicy
	log      zerolog.Logger

	now   func() time.Time
	codes func() (string, error)
}

// NewAuthService returns the signup, session and password-recovery service.
// notifier is awaited for codes and reset links; queue receives the
// fire-and-forget welcome and lockout messages.
func NewAuthService(
	users ports.UserRepository,
	pending ports.PendingSignupRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	notifier ports.Notifier,
	queue ports.NotificationQueue,
	policy domain.AuthPolicy,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		pending:  pending,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		queue:    queue,
		policy:   policy.WithDefaults(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		codes:    generateCode,
	}
}

// ── Signup ────────────────────────────────────────────────────────────────────

func (s *AuthService) RequestSignup(ctx context.Context, in ports.SignupInput) error {
	if violations := validateSignup(&in); len(violations) > 0 {
		metrics.SignupsTotal.WithLabelValues("request", "invalid").Inc()
		return domain.NewValidationError(violations...)
	}

	taken, err := s.users.EmailTaken(ctx, in.Email)
	if err != nil {
		return fmt.Errorf("request signup: %w", err)
	}
	if taken {
		metrics.SignupsTotal.WithLabelValues("request", "conflict").Inc()
		return domain.ErrUserExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("request signup: hash: %w", err)
	}
	code, err := s.codes()
	if err != nil {
		return fmt.Errorf("request signup: code: %w", err)
	}

	now := s.now()
	p := &domain.PendingSignup{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Code:         code,
		CodeExpires:  now.Add(s.policy.OTP.TTL),
		CreatedAt:    now,
	}
	if err := s.pending.Upsert(ctx, p); err != nil {
		return fmt.Errorf("request signup: %w", err)
	}

	if err := s.notifier.Send(ctx, s.codeNotification(p)); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(domain.NotifyOTP), "failed").Inc()
		metrics.SignupsTotal.WithLabelValues("request", "delivery_failed").Inc()
		if delErr := s.pending.Delete(ctx, p.Email); delErr != nil {
			s.log.Error().Err(delErr).Str("email", p.Email).Msg("rollback of pending signup failed")
		}
		return &domain.DeliveryError{Message: "Failed to send verification email. Please try again.", Err: err}
	}

	metrics.NotificationsTotal.WithLabelValues(string(domain.NotifyOTP), "sent").Inc()
	metrics.SignupsTotal.WithLabelValues("request", "success").Inc()
	s.log.Info().Str("email", p.Email).Msg("signup code sent")
	return nil
}

func (s *AuthService) VerifySignup(ctx context.Context, email, code string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, domain.NewValidationError("Please provide email and OTP")
	}

	p, err := s.pending.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if p.AttemptsExhausted(s.policy.OTP.MaxAttempts) {
		s.discardPending(ctx, email)
		metrics.SignupsTotal.WithLabelValues("verify", "attempts_exceeded").Inc()
		return nil, domain.ErrOTPAttemptsExceeded
	}
	if p.CodeExpired(s.now()) {
		s.discardPending(ctx, email)
		metrics.SignupsTotal.WithLabelValues("verify", "expired").Inc()
		return nil, domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(p.Code)) != 1 {
		attempts, err := s.pending.IncrementAttempts(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("verify signup: %w", err)
		}
		metrics.SignupsTotal.WithLabelValues("verify", "invalid_code").Inc()
		return nil, &domain.InvalidCodeError{AttemptsRemaining: max(s.policy.OTP.MaxAttempts-attempts, 0)}
	}

	user, err := s.createUser(ctx, newAccount{
		Name:     p.Name,
		Email:    p.Email,
		Secret:   p.PasswordHash,
		Role:     domain.RoleUser,
		Verified: true,
	}, true)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			s.discardPending(ctx, email)
		}
		return nil, err
	}
	s.discardPending(ctx, email)

	s.queue.Enqueue(domain.Notification{Kind: domain.NotifyWelcome, To: user.Email, Name: user.Name})
	metrics.SignupsTotal.WithLabelValues("verify", "success").Inc()
	s.log.Info().Str("email", user.Email).Str("user_id", user.ID).Msg("user registered")

	return s.issueSession(ctx, user)
}

func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("Please provide email address")
	}

	p, err := s.pending.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.codes()
	if err != nil {
		return fmt.Errorf("resend code: %w", err)
	}
	p.Code = code
	p.CodeExpires = s.now().Add(s.policy.OTP.TTL)
	p.Attempts = 0
	if err := s.pending.ReplaceCode(ctx, email, p.Code, p.CodeExpires); err != nil {
		return fmt.Errorf("resend code: %w", err)
	}

	// The pending record survives a failed resend so the user can retry.
	if err := s.notifier.Send(ctx, s.codeNotification(p)); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(domain.NotifyOTP), "failed").Inc()
		metrics.SignupsTotal.WithLabelValues("resend", "delivery_failed").Inc()
		return &domain.DeliveryError{Message: "Failed to resend OTP. Please try again.", Err: err}
	}

	metrics.NotificationsTotal.WithLabelValues(string(domain.NotifyOTP), "sent").Inc()
	metrics.SignupsTotal.WithLabelValues("resend", "success").Inc()
	s.log.Info().Str("email", email).Msg("signup code resent")
	return nil
}

func (s *AuthService) codeNotification(p *domain.PendingSignup) domain.Notification {
	return domain.Notification{
		Kind: domain.NotifyOTP,
		To:   p.Email,
		Name: p.Name,
		Data: map[string]string{
			domain.DataCode:    p.Code,
			domain.DataMinutes: minutes(s.policy.OTP.TTL),
		},
	}
}

func (s *AuthService) discardPending(ctx context.Context, email string) {
	if err := s.pending.Delete(ctx, email); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("failed to delete pending signup")
	}
}

// ── Sessions ──────────────────────────────────────────────────────────────────

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("Please provide email and password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	lockout := s.policy.Lockout
	now := s.now()
	if lockout.IsLocked(user, now) {
		metrics.LoginsTotal.WithLabelValues("locked").Inc()
		return nil, &domain.LockedError{Remaining: lockout.Remaining(user, now)}
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, user, now)
	}

	if !user.IsVerified {
		metrics.LoginsTotal.WithLabelValues("unverified").Inc()
		return nil, domain.ErrUnverified
	}

	if user.LoginAttempts > 0 || user.LockUntil != nil {
		if err := s.users.ResetLoginAttempts(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		lockout.RecordSuccess(user)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return s.issueSession(ctx, user)
}

// loginFailed records a wrong password and decides between a credentials
// error and a lock.
func (s *AuthService) loginFailed(ctx context.Context, user *domain.User, now time.Time) error {
	lockout := s.policy.Lockout
	f := lockout.RecordFailure(user, now)

	updated, err := s.users.RecordLoginFailure(ctx, user.ID, f)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if lockout.IsLocked(updated, now) {
		metrics.LoginsTotal.WithLabelValues("locked").Inc()
		if f.LockUntil != nil {
			metrics.LockoutsTotal.Inc()
			s.log.Warn().Str("user_id", updated.ID).Int("attempts", updated.LoginAttempts).Msg("account locked")
			s.queue.Enqueue(domain.Notification{
				Kind: domain.NotifyAccountLocked,
				To:   updated.Email,
				Name: updated.Name,
				Data: map[string]string{domain.DataMinutes: minutes(lockout.Duration())},
			})
		}
		return &domain.LockedError{Remaining: lockout.Remaining(updated, now)}
	}

	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
	return &domain.CredentialsError{AttemptsRemaining: lockout.AttemptsRemaining(updated)}
}

func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, ""); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, raw string) (*domain.Session, error) {
	if raw == "" {
		metrics.TokenRefreshTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrMissingRefresh
	}

	claims, err := s.tokens.ParseRefresh(raw)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.TokenRefreshTotal.WithLabelValues("invalid").Inc()
			return nil, domain.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if !security.MatchesDigest(raw, user.RefreshTokenHash) {
		// A superseded or foreign token: burn the slot so the current holder
		// has to log in again too.
		if err := s.users.SetRefreshTokenHash(ctx, user.ID, ""); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to clear refresh token")
		}
		metrics.TokenRefreshTotal.WithLabelValues("revoked").Inc()
		s.log.Warn().Str("user_id", user.ID).Msg("refresh token mismatch, possible reuse")
		return nil, domain.ErrRevokedToken
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	return s.issueSession(ctx, user)
}

func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := s.tokens.ParseAccess(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if user.PasswordChangedAfter(claims.IssuedAt) {
		return nil, domain.ErrStaleToken
	}
	return user, nil
}

func (s *AuthService) CheckAuth(ctx context.Context, raw string) (*domain.User, bool) {
	user, err := s.Authenticate(ctx, raw)
	if err != nil {
		return nil, false
	}
	return user, true
}

// issueSession mints a pair and stores the digest of its refresh token,
// replacing whatever was there.
func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	digest := security.Digest(pair.RefreshToken)
	if err := s.users.SetRefreshTokenHash(ctx, user.ID, digest); err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	user.RefreshTokenHash = digest

	return &domain.Session{Tokens: pair, User: user.Sanitized()}, nil
}

// ── Passwords ─────────────────────────────────────────────────────────────────

func (s *AuthService) UpdatePassword(ctx context.Context, userID string, in ports.PasswordChangeInput) (*domain.Session, error) {
	if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return nil, domain.NewValidationError("Please provide all required fields")
	}
	if v := validateNewPassword(in.NewPassword, in.ConfirmPassword, "New passwords do not match"); len(v) > 0 {
		return nil, domain.NewValidationError(v...)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(in.CurrentPassword, user.PasswordHash) {
		return nil, domain.ErrIncorrectPassword
	}

	if err := s.storePassword(ctx, user, in.NewPassword); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password updated")
	return s.issueSession(ctx, user)
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("Please provide your email address")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Str("email", email).Msg("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("forgot password: %w", err)
	}

	token, err := security.RandomToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	expires := s.now().Add(s.policy.PasswordResetTTL)
	if err := s.users.SetPasswordReset(ctx, user.ID, security.Digest(token), expires); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	n := domain.Notification{
		Kind: domain.NotifyPasswordReset,
		To:   user.Email,
		Name: user.Name,
		Data: map[string]string{
			domain.DataResetURL: s.resetURL(token),
			domain.DataMinutes:  minutes(s.policy.PasswordResetTTL),
		},
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		if clrErr := s.users.ClearPasswordReset(ctx, user.ID); clrErr != nil {
			s.log.Error().Err(clrErr).Str("user_id", user.ID).Msg("failed to clear reset token")
		}
		return &domain.DeliveryError{Message: "Failed to send password reset email. Please try again later.", Err: err}
	}

	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("password reset link sent")
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*domain.Session, error) {
	if v := validateNewPassword(password, confirm, "Passwords do not match"); len(v) > 0 {
		return nil, domain.NewValidationError(v...)
	}
	if token == "" {
		return nil, domain.ErrInvalidResetToken
	}

	user, err := s.users.FindByResetHash(ctx, security.Digest(token), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	if err := s.storePassword(ctx, user, password); err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset completed")
	return s.issueSession(ctx, user)
}

// storePassword hashes and saves a new password. passwordChangedAt is pushed
// one second into the past so the session issued right after is not stale.
func (s *AuthService) storePassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	changedAt := s.now().Add(-time.Second)
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return err
	}

	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetHash = ""
	user.PasswordResetExpires = nil
	s.policy.Lockout.RecordSuccess(user)
	return nil
}

func (s *AuthService) resetURL(token string) string {
	return strings.TrimRight(s.policy.ResetURLBase, "/") + "/reset-password.html?token=" + token
}

// ── Accounts ──────────────────────────────────────────────────────────────────

type newAccount struct {
	Name     string
	Email    string
	Secret   string
	Role     domain.Role
	Verified bool
}

// createUser stores a durable account. When fromPreHashedSecret is true the
// secret is already a password hash and is stored as is.
func (s *AuthService) createUser(ctx context.Context, a newAccount, fromPreHashedSecret bool) (*domain.User, error) {
	hash := a.Secret
	if !fromPreHashedSecret {
		var err error
		if hash, err = s.hasher.Hash(a.Secret); err != nil {
			return nil, fmt.Errorf("create user: hash: %w", err)
		}
	}

	now := s.now()
	return s.users.Create(ctx, &domain.User{
		Name:         a.Name,
		Email:        a.Email,
		Role:         a.Role,
		IsVerified:   a.Verified,
		Active:       true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// SeedAdmin creates a verified admin account unless the email is taken.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if taken {
		s.log.Debug().Str("email", email).Msg("admin account already present")
		return nil
	}

	user, err := s.createUser(ctx, newAccount{
		Name:     name,
		Email:    email,
		Secret:   password,
		Role:     domain.RoleAdmin,
		Verified: true,
	}, false)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("email", email).Msg("admin account created")
	return nil
}

func minutes(d time.Duration) string {
	return strconv.Itoa(int(d.Round(time.Minute) / time.Minute))
}
