package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
	"github.com/instastick/storefront-auth/internal/infrastructure/security"
)

// ── users ────────────────────────────────────────────────────────────────────

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*domain.User
	nextID int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *fakeUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	c := cloneUser(u)
	c.ID = "u" + strconv.Itoa(r.nextID)
	r.byID[c.ID] = c
	return cloneUser(c), nil
}

func (r *fakeUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || !u.Active {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email && u.Active {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUsers) EmailTaken(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUsers) update(id string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *fakeUsers) RecordLoginFailure(_ context.Context, id string, f domain.LoginFailure) (*domain.User, error) {
	var out *domain.User
	err := r.update(id, func(u *domain.User) {
		f.Apply(u)
		out = cloneUser(u)
	})
	return out, err
}

func (r *fakeUsers) ResetLoginAttempts(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) {
		u.LoginAttempts = 0
		u.LockUntil = nil
	})
}

func (r *fakeUsers) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *domain.User) { u.RefreshTokenHash = hash })
}

func (r *fakeUsers) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = &changedAt
		u.PasswordResetHash = ""
		u.PasswordResetExpires = nil
		u.LoginAttempts = 0
		u.LockUntil = nil
	})
}

func (r *fakeUsers) SetPasswordReset(_ context.Context, id, hash string, expires time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordResetHash = hash
		u.PasswordResetExpires = &expires
	})
}

func (r *fakeUsers) ClearPasswordReset(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordResetHash = ""
		u.PasswordResetExpires = nil
	})
}

func (r *fakeUsers) FindByResetHash(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Active && hash != "" && u.PasswordResetHash == hash &&
			u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUsers) UpdateProfile(_ context.Context, id string, p ports.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if p.Email != nil {
		for otherID, other := range r.byID {
			if otherID != id && other.Email == *p.Email {
				return nil, domain.ErrEmailInUse
			}
		}
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Unverify {
		u.IsVerified = false
	}
	return cloneUser(u), nil
}

func (r *fakeUsers) SetAddresses(_ context.Context, id string, book []domain.Address) (*domain.User, error) {
	var out *domain.User
	err := r.update(id, func(u *domain.User) {
		u.Addresses = append([]domain.Address(nil), book...)
		out = cloneUser(u)
	})
	return out, err
}

func (r *fakeUsers) Deactivate(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) {
		u.Active = false
		u.RefreshTokenHash = ""
	})
}

func (r *fakeUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeUsers) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.User
	for _, u := range r.byID {
		if u.Active {
			all = append(all, cloneUser(u))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+f.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

// get reads the stored record, bypassing the active filter.
func (r *fakeUsers) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.byID[id])
}

// seed stores a user with the given plaintext password.
func (r *fakeUsers) seed(t *testing.T, name, email, password string, verified bool) *domain.User {
	t.Helper()
	u, err := r.Create(context.Background(), &domain.User{
		Name:         name,
		Email:        email,
		Role:         domain.RoleUser,
		IsVerified:   verified,
		Active:       true,
		PasswordHash: fakeHash(password),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// ── pending signups ──────────────────────────────────────────────────────────

type fakePending struct {
	mu      sync.Mutex
	byEmail map[string]*domain.PendingSignup
}

func newFakePending() *fakePending {
	return &fakePending{byEmail: make(map[string]*domain.PendingSignup)}
}

func (r *fakePending) Upsert(_ context.Context, p *domain.PendingSignup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	r.byEmail[p.Email] = &c
	return nil
}

func (r *fakePending) FindByEmail(_ context.Context, email string) (*domain.PendingSignup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrSignupNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakePending) IncrementAttempts(_ context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byEmail[email]
	if !ok {
		return 0, domain.ErrSignupNotFound
	}
	p.Attempts++
	return p.Attempts, nil
}

func (r *fakePending) ReplaceCode(_ context.Context, email, code string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byEmail[email]
	if !ok {
		return domain.ErrSignupNotFound
	}
	p.Code = code
	p.CodeExpires = expires
	p.Attempts = 0
	return nil
}

func (r *fakePending) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEmail, email)
	return nil
}

func (r *fakePending) get(email string) *domain.PendingSignup {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byEmail[email]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

func (r *fakePending) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail)
}

// ── collaborators ────────────────────────────────────────────────────────────

// fakeHasher is a reversible stand-in for bcrypt so tests can tell a hash
// from a double hash.
type fakeHasher struct{}

func fakeHash(pw string) string { return "hashed:" + pw }

func (fakeHasher) Hash(pw string) (string, error) { return fakeHash(pw), nil }

func (fakeHasher) Compare(pw, hash string) bool { return fakeHash(pw) == hash }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *fakeNotifier) last() domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeQueue struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (q *fakeQueue) Enqueue(n domain.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

func (q *fakeQueue) kinds() []domain.NotificationKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(q.items))
	for _, n := range q.items {
		out = append(out, n.Kind)
	}
	return out
}

var errSMTPDown = errors.New("smtp down")

// ── harness ──────────────────────────────────────────────────────────────────

type harness struct {
	svc      *AuthService
	users    *fakeUsers
	pending  *fakePending
	notifier *fakeNotifier
	queue    *fakeQueue
	tokens   *security.JWTIssuer
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:    newFakeUsers(),
		pending:  newFakePending(),
		notifier: &fakeNotifier{},
		queue:    &fakeQueue{},
		clock:    time.Now().UTC(),
	}
	h.tokens = security.NewJWTIssuer(security.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Clock:         func() time.Time { return h.clock },
	})
	policy := domain.DefaultAuthPolicy()
	policy.ResetURLBase = "https://shop.example/"
	h.svc = NewAuthService(h.users, h.pending, fakeHasher{}, h.tokens, h.notifier, h.queue, policy, zerolog.Nop())
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

// sentCode returns the code carried by the last OTP notification.
func (h *harness) sentCode(t *testing.T) string {
	t.Helper()
	n := h.notifier.last()
	if n.Kind != domain.NotifyOTP {
		t.Fatalf("last notification is %s, want otp", n.Kind)
	}
	return n.Data[domain.DataCode]
}

// wrongCode returns a six-digit code different from code.
func wrongCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

func resetTokenFrom(url string) string {
	_, token, _ := strings.Cut(url, "token=")
	return token
}
