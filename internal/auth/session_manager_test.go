package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerIssueAndAuthenticate(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(0, store)

	token, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.Token == "" {
		t.Fatalf("expected non-empty token: %+v", token)
	}
	if !token.ExpiresAt.IsZero() {
		t.Fatalf("expected no expiry without ttl, got %v", token.ExpiresAt)
	}

	username, err := manager.Authenticate(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if username != "alice" {
		t.Fatalf("expected alice got %q", username)
	}
}

func TestManagerIssueReplacesPreviousSession(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(0, store)

	first, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("expected a new token on every issue")
	}

	if _, err := manager.Authenticate(context.Background(), first.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old token rejected got %v", err)
	}
	if store.Has(first.Token) {
		t.Fatal("old token should have been removed")
	}
	if _, err := manager.Authenticate(context.Background(), second.Token); err != nil {
		t.Fatalf("authenticate new token: %v", err)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager := NewManager(0, NewInMemorySessionStore())
	if _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestManagerAuthenticateFailures(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(time.Minute, store)

	if _, err := manager.Authenticate(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}
	if _, err := manager.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}

	token, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }

	if _, err := manager.Authenticate(context.Background(), token.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expired got %v", err)
	}
	if store.Has(token.Token) {
		t.Fatal("expired session should have been removed")
	}
}

func TestManagerRevoke(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := NewManager(0, store)

	token, err := manager.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := manager.Revoke(context.Background(), token.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := manager.Authenticate(context.Background(), token.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}

	if err := manager.Revoke(context.Background(), token.Token); err != nil {
		t.Fatalf("revoking twice should be a no-op, got %v", err)
	}
	if err := manager.Revoke(context.Background(), ""); err != nil {
		t.Fatalf("revoking empty token should be a no-op, got %v", err)
	}
}

func TestUsernameContext(t *testing.T) {
	if _, ok := UsernameFromContext(context.Background()); ok {
		t.Fatal("expected no username on bare context")
	}
	ctx := WithUsername(context.Background(), "alice")
	username, ok := UsernameFromContext(ctx)
	if !ok || username != "alice" {
		t.Fatalf("expected alice got %q (%v)", username, ok)
	}
}
