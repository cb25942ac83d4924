package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lcleaderboard/backend/internal/db"
	"github.com/lcleaderboard/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresAccountRepository provides PostgreSQL-backed persistence for
// accounts and friend sets.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account. A taken username yields ErrConflict.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (username, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4)
    `, account.Username, account.Password, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByUsername fetches an account by its exact username.
func (r *PostgresAccountRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT username, password_hash, created_at, updated_at
        FROM accounts
        WHERE username = $1
    `, username)

	var account models.Account
	if err := row.Scan(&account.Username, &account.Password, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account by username: %w", err)
	}

	return account, nil
}

// ListFriends returns the friend set of username in the order entries were added.
func (r *PostgresAccountRepository) ListFriends(ctx context.Context, username string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := accountExists(ctx, conn, username); err != nil {
		return nil, err
	}

	return listFriends(ctx, conn, username)
}

// AddFriend inserts friend into the set of username. Adding an existing
// member is a no-op. The updated set is returned.
func (r *PostgresAccountRepository) AddFriend(ctx context.Context, username, friend string) ([]string, error) {
	return r.mutateFriends(ctx, username, `
        INSERT INTO account_friends (username, friend)
        VALUES ($1, $2)
        ON CONFLICT (username, friend) DO NOTHING
    `, friend)
}

// RemoveFriend deletes friend from the set of username. Removing a
// non-member is a no-op. The updated set is returned.
func (r *PostgresAccountRepository) RemoveFriend(ctx context.Context, username, friend string) ([]string, error) {
	return r.mutateFriends(ctx, username, `
        DELETE FROM account_friends
        WHERE username = $1 AND friend = $2
    `, friend)
}

func (r *PostgresAccountRepository) mutateFriends(ctx context.Context, username, statement, friend string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin friend update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := accountExists(ctx, tx, username); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, statement, username, friend); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update friend set: %w", err)
	}

	friends, err := listFriends(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit friend update: %w", err)
	}

	return friends, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func accountExists(ctx context.Context, q querier, username string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists); err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func listFriends(ctx context.Context, q querier, username string) ([]string, error) {
	rows, err := q.Query(ctx, `
        SELECT friend
        FROM account_friends
        WHERE username = $1
        ORDER BY added_at, friend
    `, username)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	friends := make([]string, 0)
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, friend)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return friends, nil
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
