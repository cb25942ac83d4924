package auth

import (
	"context"
	"sync"
)

// NewInMemorySessionStore returns a SessionStore backed by in-process maps.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]Session),
		byUser:   make(map[string]string),
	}
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byUser   map[string]string
}

// Save stores the session and drops the previous token of the same user.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.byUser[session.Username]; ok && previous != session.Token {
		delete(s.sessions, previous)
	}
	s.sessions[session.Token] = session
	s.byUser[session.Username] = session.Token
	return nil
}

// Find retrieves a session by token.
func (s *InMemorySessionStore) Find(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session associated with token.
func (s *InMemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	if s.byUser[session.Username] == token {
		delete(s.byUser, session.Username)
	}
	return nil
}

// Has reports whether a token exists. Useful for tests.
func (s *InMemorySessionStore) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[token]
	return ok
}
