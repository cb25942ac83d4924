package handlers

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestFriendHandlerAddIsIdempotent(t *testing.T) {
	store := newInMemoryAccountStore()
	handler := FriendHandler{Accounts: store}

	for _, friend := range []string{"lee215", "votrubac", "lee215"} {
		rec := httptest.NewRecorder()
		handler.Add(rec, authenticatedRequest(http.MethodPost, "/add-friend", jsonBody(t, friendRequest{Username: friend}), "alice"))
		if rec.Code != http.StatusOK {
			t.Fatalf("add %s: expected status 200 got %d", friend, rec.Code)
		}
		resp := decodeBody[friendsResponse](t, rec)
		if resp.Message != "Friend added" {
			t.Fatalf("unexpected message %q", resp.Message)
		}
	}

	if got := store.friends["alice"]; !reflect.DeepEqual(got, []string{"lee215", "votrubac"}) {
		t.Fatalf("unexpected friend set %v", got)
	}
}

func TestFriendHandlerRemove(t *testing.T) {
	store := newInMemoryAccountStore()
	store.friends["alice"] = []string{"lee215", "votrubac"}
	handler := FriendHandler{Accounts: store}

	for _, friend := range []string{"lee215", "never-added"} {
		rec := httptest.NewRecorder()
		handler.Remove(rec, authenticatedRequest(http.MethodPost, "/remove-friend", jsonBody(t, friendRequest{Username: friend}), "alice"))
		if rec.Code != http.StatusOK {
			t.Fatalf("remove %s: expected status 200 got %d", friend, rec.Code)
		}
		resp := decodeBody[friendsResponse](t, rec)
		if resp.Message != "Friend removed" || !reflect.DeepEqual(resp.Friends, []string{"votrubac"}) {
			t.Fatalf("unexpected response %+v", resp)
		}
	}
}

func TestFriendHandlerRemoveLastFriendReturnsEmptyList(t *testing.T) {
	store := newInMemoryAccountStore()
	store.friends["alice"] = []string{"lee215"}
	handler := FriendHandler{Accounts: store}

	rec := httptest.NewRecorder()
	handler.Remove(rec, authenticatedRequest(http.MethodPost, "/remove-friend", jsonBody(t, friendRequest{Username: "lee215"}), "alice"))

	if !strings.Contains(rec.Body.String(), `"friends":[]`) {
		t.Fatalf("expected empty friends array, got %s", rec.Body.String())
	}
}

func TestFriendHandlerValidation(t *testing.T) {
	handler := FriendHandler{Accounts: newInMemoryAccountStore()}

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing", `{}`, "Username required"},
		{"blank", `{"username":"  "}`, "Username required"},
		{"malformed", `not json`, "invalid request body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, action := range []http.HandlerFunc{handler.Add, handler.Remove} {
				req := authenticatedRequest(http.MethodPost, "/add-friend", strings.NewReader(tc.body), "alice")
				rec := httptest.NewRecorder()
				action(rec, req)

				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected status 400 got %d", rec.Code)
				}
				if got := decodeBody[map[string]string](t, rec)["error"]; got != tc.message {
					t.Fatalf("expected error %q got %q", tc.message, got)
				}
			}
		})
	}
}

func TestFriendHandlerList(t *testing.T) {
	store := newInMemoryAccountStore()
	store.friends["alice"] = []string{"lee215"}
	handler := FriendHandler{Accounts: store}

	rec := httptest.NewRecorder()
	handler.List(rec, authenticatedRequest(http.MethodGet, "/friends", nil, "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if resp := decodeBody[friendsResponse](t, rec); !reflect.DeepEqual(resp.Friends, []string{"lee215"}) {
		t.Fatalf("unexpected friends %v", resp.Friends)
	}

	rec = httptest.NewRecorder()
	handler.List(rec, authenticatedRequest(http.MethodGet, "/friends", nil, "bob"))
	if !strings.Contains(rec.Body.String(), `"friends":[]`) {
		t.Fatalf("expected empty list for bob, got %s", rec.Body.String())
	}
}

func TestFriendHandlerRequiresUsernameInContext(t *testing.T) {
	handler := FriendHandler{Accounts: newInMemoryAccountStore()}

	rec := httptest.NewRecorder()
	handler.Add(rec, httptest.NewRequest(http.MethodPost, "/add-friend", jsonBody(t, friendRequest{Username: "lee215"})))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestFriendHandlerStoreFailure(t *testing.T) {
	store := newInMemoryAccountStore()
	store.err = errStoreDown
	handler := FriendHandler{Accounts: store}

	rec := httptest.NewRecorder()
	handler.Add(rec, authenticatedRequest(http.MethodPost, "/add-friend", jsonBody(t, friendRequest{Username: "lee215"}), "alice"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["error"]; got != "Error adding friend" {
		t.Fatalf("unexpected error %q", got)
	}
}
