package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lcleaderboard/backend/internal/auth"
	"github.com/lcleaderboard/backend/internal/db"
)

// PostgresSessionStore persists session tokens to PostgreSQL. The unique
// username column keeps one live session per account.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores the session, replacing any previous session of the same account.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	expiresAt := sql.NullTime{}
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Valid: true, Time: session.ExpiresAt.UTC()}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (token, username, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (username)
        DO UPDATE SET token = EXCLUDED.token, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
    `, session.Token, session.Username, session.CreatedAt.UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads a session by its token.
func (s *PostgresSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT token, username, created_at, expires_at
        FROM sessions
        WHERE token = $1
    `, token)

	var (
		session   auth.Session
		expiresAt sql.NullTime
	)
	if err := row.Scan(&session.Token, &session.Username, &session.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.CreatedAt = session.CreatedAt.UTC()
	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time.UTC()
	}
	return session, nil
}

// Delete removes a session by its token.
func (s *PostgresSessionStore) Delete(ctx context.Context, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE token = $1
    `, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
