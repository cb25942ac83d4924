package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/lcleaderboard/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the bearer token does not map to a live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session existed but outlived its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore persists issued sessions. Save must replace any session
// previously stored for the same username so an account never holds more
// than one live token.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// Session binds a bearer token to the account that owns it.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	// ExpiresAt is zero for sessions that live until logout or the next login.
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Manager issues, resolves and revokes session tokens backed by a SessionStore.
type Manager struct {
	ttl   time.Duration
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager. A ttl of zero issues sessions that never
// expire on their own.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		ttl:   ttl,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a fresh token for username, replacing any session the
// account already had.
func (m *Manager) Issue(ctx context.Context, username string) (models.SessionToken, error) {
	if username == "" {
		return models.SessionToken{}, errors.New("username must be provided")
	}

	token, err := randomToken()
	if err != nil {
		return models.SessionToken{}, err
	}

	now := m.now()
	session := Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
	}
	if m.ttl > 0 {
		session.ExpiresAt = now.Add(m.ttl)
	}

	if err := m.store.Save(ctx, session); err != nil {
		return models.SessionToken{}, err
	}

	return models.SessionToken{
		Token:     session.Token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Authenticate resolves a bearer token to the username that owns it.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return "", err
	}

	if session.Expired(m.now()) {
		_ = m.store.Delete(ctx, token)
		return "", ErrSessionExpired
	}

	return session.Username, nil
}

// Revoke removes the session identified by token. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
