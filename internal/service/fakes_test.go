package service

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fitmeta/fitmeta-api/internal/crypto"
	"github.com/fitmeta/fitmeta-api/internal/email"
	"github.com/fitmeta/fitmeta-api/internal/model"
	"github.com/fitmeta/fitmeta-api/internal/repository"
)

// memoryUsers is an in-memory UserRepository enforcing email uniqueness under a lock.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
	err   error
	// resetErr fails CompleteReset without touching the stored user.
	resetErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.HasResetToken() {
		c.SetResetToken(*u.ResetTokenHash, *u.ResetTokenExpiry)
	}
	return &c
}

func (m *memoryUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, addr string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == addr {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memoryUsers) SetResetToken(_ context.Context, id, digest string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.SetResetToken(digest, expiry)
	return nil
}

func (m *memoryUsers) ClearResetToken(_ context.Context, id, digest string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.HasResetToken() || *u.ResetTokenHash != digest {
		return false, nil
	}
	u.ClearResetToken()
	return true, nil
}

func (m *memoryUsers) CompleteReset(_ context.Context, id, digest, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return false, m.resetErr
	}
	u, ok := m.users[id]
	if !ok || !u.HasResetToken() || *u.ResetTokenHash != digest {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.ClearResetToken()
	return true, nil
}

// stored returns a copy of the persisted user with the given email.
func (m *memoryUsers) stored(t *testing.T, addr string) *model.User {
	t.Helper()
	u, err := m.GetByEmail(context.Background(), addr)
	require.NoError(t, err)
	return u
}

// recordingSender captures sent messages and optionally fails.
type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// lastToken extracts the token from the link in the most recent message.
func (r *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "no email sent")

	scanner := bufio.NewScanner(strings.NewReader(r.sent[len(r.sent)-1].TextBody))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "http") {
			continue
		}
		u, err := url.Parse(line)
		require.NoError(t, err)
		return u.Query().Get("token")
	}
	t.Fatal("no reset link in email body")
	return ""
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

type fixture struct {
	svc    *AuthService
	users  *memoryUsers
	mailer *recordingSender
	clock  *fakeClock
	tokens *crypto.TokenIssuer
	hasher *crypto.Argon2idHasher
}

func testHasher() *crypto.Argon2idHasher {
	return crypto.NewArgon2idHasher(crypto.HashParams{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newMemoryUsers()
	mailer := &recordingSender{}
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	hasher := testHasher()

	tokens, err := crypto.NewTokenIssuer(crypto.TokenConfig{
		Secret:   "test-secret",
		Issuer:   "fitmeta",
		Audience: "fitmeta-api",
		Expiry:   time.Hour,
	})
	require.NoError(t, err)

	resets, err := NewResetTokenStore(users, DefaultResetTokenTTL, WithClock(clock.Now))
	require.NoError(t, err)

	svc, err := NewAuthService(Deps{
		Users:        users,
		Hasher:       hasher,
		Tokens:       tokens,
		Resets:       resets,
		Mailer:       mailer,
		ResetURLBase: "https://app.fitmeta.test/reset-password",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	svc.now = clock.Now

	return &fixture{svc: svc, users: users, mailer: mailer, clock: clock, tokens: tokens, hasher: hasher}
}

func registerRequest(addr, password string) model.RegisterRequest {
	return model.RegisterRequest{
		FirstName:       "Alice",
		LastName:        "Souza",
		Email:           addr,
		BirthDate:       model.Date{Time: time.Date(1995, time.June, 1, 0, 0, 0, 0, time.UTC)},
		Password:        password,
		ConfirmPassword: password,
		Role:            model.RoleStudent,
	}
}
