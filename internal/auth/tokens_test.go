package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaaltube/backend/internal/email"
	"github.com/kaaltube/backend/internal/models"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUserStore(users ...models.User) *memUserStore {
	s := &memUserStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *memUserStore) FindByEmail(_ context.Context, emailAddr string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == emailAddr {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *memUserStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

func (s *memUserStore) SaveOTP(_ context.Context, userID, otpHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.OTPHash = otpHash
	user.OTPExpiresAt = &expiresAt
	s.users[userID] = user
	return nil
}

func (s *memUserStore) MarkVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Verified = true
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	s.users[userID] = user
	return nil
}

func (s *memUserStore) get(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureSender) last() (email.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return email.Message{}, false
	}
	return c.sent[len(c.sent)-1], true
}

func newTokenService(store *memUserStore) *TokenService {
	return NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour, store)
}

func TestTokenServiceIssueResolvesBack(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1", Email: "a@example.com"})
	svc := newTokenService(store)

	pair, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	assert.Equal(t, pair.RefreshToken, store.get("user-1").RefreshToken, "refresh token should be persisted on the account")
}

func TestTokenServiceRotateInvalidatesPrior(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1"})
	svc := newTokenService(store)

	first, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	// Signing is second-granular; move the clock so the rotated pair differs.
	svc.NowFunc = func() time.Time { return time.Now().UTC().Add(2 * time.Second) }

	second, err := svc.Rotate(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Rotate(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshSuperseded, "second use of a rotated token must be rejected")

	_, err = svc.Rotate(context.Background(), second.RefreshToken)
	assert.NoError(t, err, "current token should still rotate")
}

func TestTokenServiceRotateFailures(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1"})
	svc := newTokenService(store)

	_, err := svc.Rotate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	pair, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	// An access token must not pass refresh verification: distinct secrets.
	_, err = svc.Rotate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	svc.NowFunc = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceRotateUnknownUser(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1"})
	svc := newTokenService(store)

	pair, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	store.mu.Lock()
	delete(store.users, "user-1")
	store.mu.Unlock()

	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenServiceAccessExpiry(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1"})
	svc := newTokenService(store)

	pair, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	svc.NowFunc = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceRevoke(t *testing.T) {
	store := newMemUserStore(models.User{ID: "user-1"})
	svc := newTokenService(store)

	pair, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), "user-1"))
	assert.Empty(t, store.get("user-1").RefreshToken)

	_, err = svc.Rotate(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshSuperseded)
}
