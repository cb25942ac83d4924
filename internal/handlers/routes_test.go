package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lcleaderboard/backend/internal/leaderboard"
	"github.com/lcleaderboard/backend/internal/models"
)

func newTestRouter(t *testing.T, deps Dependencies) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	server := httptest.NewServer(NewRouter(deps, logger))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = jsonBody(t, body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRouterLeaderboardFlow(t *testing.T) {
	fetcher := leaderboard.FetcherFunc(func(_ context.Context, username string) models.StatRecord {
		switch username {
		case "lee215":
			return models.StatRecord{Username: username, TotalSolved: 30, Easy: 10, Medium: 10, Hard: 10}
		case "votrubac":
			return models.StatRecord{Username: username, TotalSolved: 50, Easy: 20, Medium: 20, Hard: 10}
		default:
			return models.DegradedStatRecord(username)
		}
	})
	server := newTestRouter(t, Dependencies{
		Accounts:    newInMemoryAccountStore(),
		Sessions:    newSessionManager(),
		Leaderboard: leaderboard.NewAggregator(fetcher, time.Second, 0),
	})

	resp := doJSON(t, http.MethodPost, server.URL+"/signup", "", credentialsRequest{Username: "alice", Password: "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup: expected 200 got %d", resp.StatusCode)
	}
	token := decodeResponse[authResponse](t, resp).Token

	resp = doJSON(t, http.MethodGet, server.URL+"/leaderboard", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: expected 200 got %d", resp.StatusCode)
	}
	if entries := decodeResponse[[]models.StatRecord](t, resp); entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty leaderboard got %v", entries)
	}

	for _, friend := range []string{"lee215", "ghost_user_404", "votrubac"} {
		resp = doJSON(t, http.MethodPost, server.URL+"/add-friend", token, friendRequest{Username: friend})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add-friend %s: expected 200 got %d", friend, resp.StatusCode)
		}
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/leaderboard", token, nil)
	entries := decodeResponse[[]models.StatRecord](t, resp)
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Username)
	}
	if strings.Join(got, ",") != "votrubac,lee215,ghost_user_404" {
		t.Fatalf("unexpected ranking %v", got)
	}
	if !entries[2].Failed || entries[2].TotalSolved != 0 {
		t.Fatalf("expected degraded entry for unknown user, got %+v", entries[2])
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/friends", token, nil)
	if friends := decodeResponse[friendsResponse](t, resp).Friends; len(friends) != 3 {
		t.Fatalf("expected 3 friends got %v", friends)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/leaderboard", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout got %d", resp.StatusCode)
	}
}

func TestRouterProtectedRoutesRequireSession(t *testing.T) {
	server := newTestRouter(t, Dependencies{
		Accounts:    newInMemoryAccountStore(),
		Sessions:    newSessionManager(),
		Leaderboard: &stubLeaderboard{},
		Snapshots:   &stubExporter{},
	})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/logout"},
		{http.MethodGet, "/friends"},
		{http.MethodPost, "/add-friend"},
		{http.MethodPost, "/remove-friend"},
		{http.MethodGet, "/leaderboard"},
		{http.MethodPost, "/leaderboard/snapshot"},
	}
	for _, route := range routes {
		for _, token := range []string{"", "forged"} {
			resp := doJSON(t, route.method, server.URL+route.path, token, friendRequest{Username: "x"})
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("%s %s token=%q: expected 401 got %d", route.method, route.path, token, resp.StatusCode)
			}
			if got := decodeResponse[map[string]string](t, resp)["error"]; got != "Unauthorized" {
				t.Fatalf("unexpected error %q", got)
			}
		}
	}
}

func TestRouterSnapshotRouteDisabledWithoutExporter(t *testing.T) {
	manager := newSessionManager()
	server := newTestRouter(t, Dependencies{
		Accounts:    newInMemoryAccountStore(),
		Sessions:    manager,
		Leaderboard: &stubLeaderboard{},
	})

	token, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/leaderboard/snapshot", token.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.StatusCode)
	}
}

func TestRouterCORSAndStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>leaderboard</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	server := newTestRouter(t, Dependencies{
		Accounts:  newInMemoryAccountStore(),
		Sessions:  newSessionManager(),
		StaticDir: dir,
	})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/login", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS origin got %q", got)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/", "", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "leaderboard") {
		t.Fatalf("expected index page got %d %q", resp.StatusCode, body)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", resp.StatusCode)
	}
}

type keyRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (k *keyRecorder) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = append(k.keys, key)
	return false
}

func (k *keyRecorder) recorded() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string{}, k.keys...)
}

func TestRouterRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	limiter := &keyRecorder{}
	server := newTestRouter(t, Dependencies{
		Accounts:    newInMemoryAccountStore(),
		Sessions:    newSessionManager(),
		AuthLimiter: limiter,
	})

	for _, forwarded := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"} {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/login", jsonBody(t, credentialsRequest{Username: "alice", Password: "pw"}))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("expected status 429 got %d", resp.StatusCode)
		}
	}

	keys := limiter.recorded()
	if len(keys) != 3 {
		t.Fatalf("expected 3 limiter calls got %v", keys)
	}
	for _, key := range keys {
		if key != keys[0] || strings.Contains(key, "192.0.2.") {
			t.Fatalf("expected one key per remote address, got %v", keys)
		}
	}
}

func TestRouterTrustProxyUsesForwardedClient(t *testing.T) {
	limiter := &keyRecorder{}
	server := newTestRouter(t, Dependencies{
		Accounts:    newInMemoryAccountStore(),
		Sessions:    newSessionManager(),
		AuthLimiter: limiter,
		TrustProxy:  true,
	})

	req, err := http.NewRequest(http.MethodPost, server.URL+"/signup", jsonBody(t, credentialsRequest{Username: "alice", Password: "pw"}))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Forwarded-For", "192.0.2.9")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	resp.Body.Close()

	if keys := limiter.recorded(); len(keys) != 1 || keys[0] != "signup:192.0.2.9" {
		t.Fatalf("unexpected limiter keys %v", keys)
	}
}
