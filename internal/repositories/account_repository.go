package repositories

import (
	"context"

	"github.com/lcleaderboard/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts and their
// friend sets.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	ListFriends(ctx context.Context, username string) ([]string, error)
	AddFriend(ctx context.Context, username, friend string) ([]string, error)
	RemoveFriend(ctx context.Context, username, friend string) ([]string, error)
}
