package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lcleaderboard/backend/internal/logging"
)

// FriendHandler manages the caller's friend set. Friend names are external
// LeetCode usernames and are never validated against the upstream.
type FriendHandler struct {
	Accounts AccountStore
}

type friendRequest struct {
	Username string `json:"username"`
}

type friendsResponse struct {
	Message string   `json:"message,omitempty"`
	Friends []string `json:"friends"`
}

// Add handles POST /add-friend. Adding an existing friend is a no-op.
func (h FriendHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	friend, ok := decodeFriend(w, r)
	if !ok {
		return
	}
	if h.Accounts == nil {
		logger.Error("account store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error adding friend"})
		return
	}

	friends, err := h.Accounts.AddFriend(ctx, username, friend)
	if err != nil {
		logger.Error("add friend failed", "error", err, "friend", friend)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error adding friend"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, friendsResponse{Message: "Friend added", Friends: friends})
}

// Remove handles POST /remove-friend. Removing an absent friend is a no-op.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	friend, ok := decodeFriend(w, r)
	if !ok {
		return
	}
	if h.Accounts == nil {
		logger.Error("account store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error removing friend"})
		return
	}

	friends, err := h.Accounts.RemoveFriend(ctx, username, friend)
	if err != nil {
		logger.Error("remove friend failed", "error", err, "friend", friend)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error removing friend"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, friendsResponse{Message: "Friend removed", Friends: friends})
}

// List handles GET /friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username, ok := currentUsername(w, r)
	if !ok {
		return
	}
	if h.Accounts == nil {
		logging.FromContext(ctx).Error("account store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error listing friends"})
		return
	}

	friends, err := h.Accounts.ListFriends(ctx, username)
	if err != nil {
		logging.FromContext(ctx).Error("list friends failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error listing friends"})
		return
	}
	if friends == nil {
		friends = []string{}
	}

	respondJSON(ctx, w, http.StatusOK, friendsResponse{Friends: friends})
}

func decodeFriend(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()

	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid friend payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return "", false
	}

	friend := strings.TrimSpace(req.Username)
	if friend == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Username required"})
		return "", false
	}
	return friend, true
}
