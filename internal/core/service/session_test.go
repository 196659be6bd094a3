package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/infrastructure/security"
)

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	session, err := h.svc.Login(context.Background(), " BOB@x.com", "Rightpass1!")
	require.NoError(t, err)

	assert.Equal(t, u.ID, session.User.ID)
	assert.Empty(t, session.User.PasswordHash)
	assert.Empty(t, session.User.RefreshTokenHash)

	stored := h.users.get(u.ID)
	assert.True(t, security.MatchesDigest(session.Tokens.RefreshToken, stored.RefreshTokenHash))

	claims, err := h.tokens.ParseAccess(session.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
}

func TestLogin_UnknownEmailIsIndistinguishable(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "ghost@x.com", "whatever")

	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Empty(t, h.queue.kinds())
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "bob@x.com", "")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginScenario_FiveFailuresLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	for i := 1; i <= 4; i++ {
		_, err := h.svc.Login(ctx, "bob@x.com", "wrongpass")
		var ce *domain.CredentialsError
		require.ErrorAs(t, err, &ce, "attempt %d", i)
		assert.Equal(t, 5-i, ce.AttemptsRemaining)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := h.svc.Login(ctx, "bob@x.com", "wrongpass")
	var le *domain.LockedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 30, le.Minutes())
	assert.Equal(t, 5, h.users.get(u.ID).LoginAttempts)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyAccountLocked}, h.queue.kinds())

	h.advance(time.Minute)
	_, err = h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.ErrorAs(t, err, &le, "correct password while locked must still be refused")
	assert.Equal(t, 29, le.Minutes())

	_, err = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 5, h.users.get(u.ID).LoginAttempts, "no increments while locked")
	assert.Len(t, h.queue.kinds(), 1, "lockout notice is sent once")
	assert.Empty(t, h.users.get(u.ID).RefreshTokenHash)
}

func TestLogin_ExpiredLockRestartsCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	}

	h.advance(31 * time.Minute)
	_, err := h.svc.Login(ctx, "bob@x.com", "wrongpass")

	var ce *domain.CredentialsError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 4, ce.AttemptsRemaining)
	stored := h.users.get(u.ID)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestLogin_ExpiredLockThenSuccessClearsAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	}

	h.advance(30 * time.Minute)
	_, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	stored := h.users.get(u.ID)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
}

func TestLogin_SuccessResetsCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	for i := 0; i < 3; i++ {
		_, _ = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	}
	require.Equal(t, 3, h.users.get(u.ID).LoginAttempts)

	_, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)
	assert.Zero(t, h.users.get(u.ID).LoginAttempts)

	_, err = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	var ce *domain.CredentialsError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 4, ce.AttemptsRemaining)
}

func TestLoginScenario_Unverified(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Carol", "carol@x.com", "Rightpass1!", false)

	session, err := h.svc.Login(context.Background(), "carol@x.com", "Rightpass1!")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrUnverified)
	stored := h.users.get(u.ID)
	assert.Zero(t, stored.LoginAttempts)
	assert.Empty(t, stored.RefreshTokenHash)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	first, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	second, err := h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
	assert.True(t, security.MatchesDigest(second.Tokens.RefreshToken, h.users.get(u.ID).RefreshTokenHash))

	_, err = h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevokedToken)
	assert.Empty(t, h.users.get(u.ID).RefreshTokenHash, "reuse burns the slot")

	_, err = h.svc.Refresh(ctx, second.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevokedToken, "legitimate token is dead until the next login")

	third, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)
	_, err = h.svc.Refresh(ctx, third.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_InvalidInputs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, domain.ErrMissingRefresh)

	_, err = h.svc.Refresh(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	pair, err := h.tokens.IssuePair("u-missing")
	require.NoError(t, err)
	_, err = h.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "access token cannot refresh")

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrSubjectNotFound)
}

func TestRefresh_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	s, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	h.advance(8 * 24 * time.Hour)
	_, err = h.svc.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLogout_ClearsRefreshSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	s, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, u.ID))
	require.NoError(t, h.svc.Logout(ctx, u.ID), "logout is idempotent")
	require.NoError(t, h.svc.Logout(ctx, "u-gone"))

	assert.Empty(t, h.users.get(u.ID).RefreshTokenHash)
	_, err = h.svc.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevokedToken)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	s, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	got, err := h.svc.Authenticate(ctx, s.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = h.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = h.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = h.svc.Authenticate(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	h.advance(16 * time.Minute)
	_, err = h.svc.Authenticate(ctx, s.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestAuthenticate_SubjectGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	s, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	require.NoError(t, h.users.Deactivate(ctx, u.ID))

	_, err = h.svc.Authenticate(ctx, s.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrSubjectNotFound)
}

func TestPasswordChange_InvalidatesOlderAccessTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	before, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	h.advance(10 * time.Second)
	after, err := h.svc.UpdatePassword(ctx, u.ID, passwordChange("Rightpass1!", "Newpass22@"))
	require.NoError(t, err)

	_, err = h.svc.Authenticate(ctx, before.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrStaleToken)

	_, err = h.svc.Authenticate(ctx, after.Tokens.AccessToken)
	assert.NoError(t, err, "token issued with the change stays valid")

	h.advance(time.Second)
	later, err := h.svc.Login(ctx, "bob@x.com", "Newpass22@")
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, later.Tokens.AccessToken)
	assert.NoError(t, err)
}

func TestCheckAuth(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	s, err := h.svc.Login(ctx, "bob@x.com", "Rightpass1!")
	require.NoError(t, err)

	u, ok := h.svc.CheckAuth(ctx, s.Tokens.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "bob@x.com", u.Email)

	u, ok = h.svc.CheckAuth(ctx, "")
	assert.False(t, ok)
	assert.Nil(t, u)

	_, ok = h.svc.CheckAuth(ctx, "garbage")
	assert.False(t, ok)
}
