package handlers

import (
	"net/http"

	"github.com/lcleaderboard/backend/internal/logging"
	"github.com/lcleaderboard/backend/internal/models"
)

// LeaderboardHandler serves the caller's ranked friend stats.
type LeaderboardHandler struct {
	Accounts  AccountStore
	Builder   LeaderboardBuilder
	Snapshots SnapshotExporter
}

type snapshotResponse struct {
	Message  string `json:"message"`
	Location string `json:"location"`
}

// Get handles GET /leaderboard. Upstream failures degrade individual entries
// and never fail the request.
func (h LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, ok := h.build(w, r)
	if !ok {
		return
	}
	respondJSON(ctx, w, http.StatusOK, entries)
}

// Snapshot handles POST /leaderboard/snapshot by building the leaderboard and
// archiving it to object storage.
func (h LeaderboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Snapshots == nil {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "snapshots are not enabled"})
		return
	}

	username, ok := currentUsername(w, r)
	if !ok {
		return
	}

	entries, ok := h.build(w, r)
	if !ok {
		return
	}

	location, err := h.Snapshots.Export(ctx, username, entries)
	if err != nil {
		logger.Error("snapshot export failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error saving snapshot"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, snapshotResponse{Message: "Snapshot saved", Location: location})
}

func (h LeaderboardHandler) build(w http.ResponseWriter, r *http.Request) ([]models.StatRecord, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	username, ok := currentUsername(w, r)
	if !ok {
		return nil, false
	}
	if h.Accounts == nil || h.Builder == nil {
		logger.Error("leaderboard dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasBuilder", h.Builder != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error fetching data"})
		return nil, false
	}

	friends, err := h.Accounts.ListFriends(ctx, username)
	if err != nil {
		logger.Error("leaderboard friend lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error fetching data"})
		return nil, false
	}

	entries := h.Builder.Build(ctx, friends)
	if entries == nil {
		entries = []models.StatRecord{}
	}
	return entries, true
}
