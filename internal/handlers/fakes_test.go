package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lcleaderboard/backend/internal/auth"
	"github.com/lcleaderboard/backend/internal/models"
	"github.com/lcleaderboard/backend/internal/repositories"
)

type inMemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	friends  map[string][]string
	err      error
}

func newInMemoryAccountStore() *inMemoryAccountStore {
	return &inMemoryAccountStore{
		accounts: make(map[string]models.Account),
		friends:  make(map[string][]string),
	}
}

func (s *inMemoryAccountStore) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, exists := s.accounts[account.Username]; exists {
		return repositories.ErrConflict
	}
	s.accounts[account.Username] = account
	return nil
}

func (s *inMemoryAccountStore) FindByUsername(_ context.Context, username string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.Account{}, s.err
	}
	account, ok := s.accounts[username]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

func (s *inMemoryAccountStore) ListFriends(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string{}, s.friends[username]...), nil
}

func (s *inMemoryAccountStore) AddFriend(_ context.Context, username, friend string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, existing := range s.friends[username] {
		if existing == friend {
			return append([]string{}, s.friends[username]...), nil
		}
	}
	s.friends[username] = append(s.friends[username], friend)
	return append([]string{}, s.friends[username]...), nil
}

func (s *inMemoryAccountStore) RemoveFriend(_ context.Context, username, friend string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	kept := []string{}
	for _, existing := range s.friends[username] {
		if existing != friend {
			kept = append(kept, existing)
		}
	}
	s.friends[username] = kept
	return append([]string{}, kept...), nil
}

type stubLeaderboard struct {
	records  map[string]models.StatRecord
	received []string
}

func (s *stubLeaderboard) Build(_ context.Context, friends []string) []models.StatRecord {
	s.received = append([]string{}, friends...)
	out := make([]models.StatRecord, 0, len(friends))
	for _, friend := range friends {
		if record, ok := s.records[friend]; ok {
			out = append(out, record)
			continue
		}
		out = append(out, models.DegradedStatRecord(friend))
	}
	return out
}

type stubExporter struct {
	owner   string
	entries []models.StatRecord
	err     error
}

func (s *stubExporter) Export(_ context.Context, owner string, entries []models.StatRecord) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.owner = owner
	s.entries = entries
	return "snapshots/" + owner + "/latest.json", nil
}

type denyAllLimiter struct{ keys []string }

func (l *denyAllLimiter) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return false
}

var errStoreDown = errors.New("store unavailable")

func newSessionManager() *auth.Manager {
	return auth.NewManager(0, auth.NewInMemorySessionStore())
}

func jsonBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(body)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

// authenticatedRequest builds a request whose context already carries the
// username, as RequireSession would leave it.
func authenticatedRequest(method, target string, body io.Reader, username string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithUsername(req.Context(), username))
}
