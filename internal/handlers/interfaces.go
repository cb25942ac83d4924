package handlers

import (
	"context"

	"github.com/lcleaderboard/backend/internal/models"
)

// AccountStore captures the persistence operations required by the auth and
// friend handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	ListFriends(ctx context.Context, username string) ([]string, error)
	AddFriend(ctx context.Context, username, friend string) ([]string, error)
	RemoveFriend(ctx context.Context, username, friend string) ([]string, error)
}

// SessionManager issues, resolves and revokes bearer tokens.
type SessionManager interface {
	Issue(ctx context.Context, username string) (models.SessionToken, error)
	Authenticate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// LeaderboardBuilder ranks the stats of a friend list.
type LeaderboardBuilder interface {
	Build(ctx context.Context, friends []string) []models.StatRecord
}

// SnapshotExporter archives a built leaderboard and returns its location.
type SnapshotExporter interface {
	Export(ctx context.Context, owner string, entries []models.StatRecord) (string, error)
}
