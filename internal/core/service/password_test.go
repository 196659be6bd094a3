package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

func passwordChange(current, next string) ports.PasswordChangeInput {
	return ports.PasswordChangeInput{CurrentPassword: current, NewPassword: next, ConfirmPassword: next}
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	_, err := h.svc.UpdatePassword(context.Background(), u.ID, passwordChange("nope", "Newpass22@"))

	assert.ErrorIs(t, err, domain.ErrIncorrectPassword)
	assert.Equal(t, fakeHash("Rightpass1!"), h.users.get(u.ID).PasswordHash)
}

func TestUpdatePassword_Validation(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	ctx := context.Background()

	_, err := h.svc.UpdatePassword(ctx, u.ID, ports.PasswordChangeInput{CurrentPassword: "Rightpass1!"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.UpdatePassword(ctx, u.ID, ports.PasswordChangeInput{
		CurrentPassword: "Rightpass1!",
		NewPassword:     "weak",
		ConfirmPassword: "weaker",
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "New passwords do not match", ve.Violations[0])
	assert.Greater(t, len(ve.Violations), 1)
}

func TestUpdatePassword_StoresNewHash(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)

	s, err := h.svc.UpdatePassword(context.Background(), u.ID, passwordChange("Rightpass1!", "Newpass22@"))
	require.NoError(t, err)

	stored := h.users.get(u.ID)
	assert.Equal(t, fakeHash("Newpass22@"), stored.PasswordHash)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.Equal(t, h.clock.Add(-time.Second), *stored.PasswordChangedAt)
	assert.NotEmpty(t, s.Tokens.AccessToken)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ForgotPassword(context.Background(), "ghost@x.com")

	assert.NoError(t, err)
	assert.Empty(t, h.notifier.sent)
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	for i := 0; i < 5; i++ {
		_, _ = h.svc.Login(ctx, "bob@x.com", "wrongpass")
	}

	require.NoError(t, h.svc.ForgotPassword(ctx, "bob@x.com"))

	n := h.notifier.last()
	assert.Equal(t, domain.NotifyPasswordReset, n.Kind)
	assert.Equal(t, "10", n.Data[domain.DataMinutes])
	url := n.Data[domain.DataResetURL]
	assert.True(t, strings.HasPrefix(url, "https://shop.example/reset-password.html?token="), url)

	token := resetTokenFrom(url)
	require.Len(t, token, 64)
	assert.NotEqual(t, token, h.users.get(u.ID).PasswordResetHash, "only the digest is stored")

	h.advance(time.Minute)
	s, err := h.svc.ResetPassword(ctx, token, "Newpass22@", "Newpass22@")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.User.ID)

	stored := h.users.get(u.ID)
	assert.Equal(t, fakeHash("Newpass22@"), stored.PasswordHash)
	assert.Empty(t, stored.PasswordResetHash)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)

	_, err = h.svc.ResetPassword(ctx, token, "Another33#", "Another33#")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken, "reset tokens are single use")
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	require.NoError(t, h.svc.ForgotPassword(ctx, "bob@x.com"))
	token := resetTokenFrom(h.notifier.last().Data[domain.DataResetURL])

	h.advance(11 * time.Minute)
	_, err := h.svc.ResetPassword(ctx, token, "Newpass22@", "Newpass22@")

	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
}

func TestResetPassword_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ResetPassword(context.Background(), "tok", "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.svc.ResetPassword(context.Background(), "tok", "Newpass22@", "Newpass22#")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Passwords do not match"}, ve.Violations)
}

func TestForgotPassword_DeliveryFailureClearsToken(t *testing.T) {
	h := newHarness(t)
	u := h.users.seed(t, "Bob", "bob@x.com", "Rightpass1!", true)
	h.notifier.err = errSMTPDown

	err := h.svc.ForgotPassword(context.Background(), "bob@x.com")

	assert.ErrorIs(t, err, domain.ErrDelivery)
	stored := h.users.get(u.ID)
	assert.Empty(t, stored.PasswordResetHash)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestSeedAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.SeedAdmin(ctx, "Root", "Admin@x.com", "Adminpass1!"))
	require.NoError(t, h.svc.SeedAdmin(ctx, "Root", "admin@x.com", "Other1!pass"))

	admin, err := h.users.FindByEmail(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.IsVerified)
	assert.Equal(t, fakeHash("Adminpass1!"), admin.PasswordHash, "plain secret is hashed once")

	_, err = h.svc.Login(ctx, "admin@x.com", "Adminpass1!")
	assert.NoError(t, err)

	require.NoError(t, h.svc.SeedAdmin(ctx, "Root", "", ""), "unset credentials are a no-op")
}
