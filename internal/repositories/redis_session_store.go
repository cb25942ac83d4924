package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lcleaderboard/backend/internal/auth"
)

const (
	redisKeyPrefix = "lcl:session:"
	// redisMaxAttempts bounds optimistic retries when a concurrent login or
	// logout touches the same account.
	redisMaxAttempts = 10
)

// RedisSessionStore keeps sessions in redis. Each session is a hash under
// its token plus a pointer key from the username to the live token.
type RedisSessionStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionStore constructs a session store on top of client.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

func tokenKey(token string) string   { return redisKeyPrefix + token }
func userKey(username string) string { return redisKeyPrefix + "user:" + username }

// Save stores the session and drops the previous token of the same account.
func (s *RedisSessionStore) Save(ctx context.Context, session auth.Session) error {
	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("save session: already expired")
		}
	}

	pointer := userKey(session.Username)
	err := s.watch(ctx, pointer, func(tx *redis.Tx) error {
		previous, err := tx.Get(ctx, pointer).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("lookup previous session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != session.Token {
				pipe.Del(ctx, tokenKey(previous))
			}
			pipe.HSet(ctx, tokenKey(session.Token),
				"username", session.Username,
				"created_at", session.CreatedAt.UTC().UnixMilli(),
				"expires_at", expiresMillis(session.ExpiresAt),
			)
			pipe.Set(ctx, pointer, session.Token, ttl)
			if ttl > 0 {
				pipe.Expire(ctx, tokenKey(session.Token), ttl)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// Find loads a session by its token.
func (s *RedisSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	values, err := s.client.HGetAll(ctx, tokenKey(token)).Result()
	if err != nil {
		return auth.Session{}, fmt.Errorf("load session: %w", err)
	}
	username, ok := values["username"]
	if !ok || username == "" {
		return auth.Session{}, auth.ErrSessionNotFound
	}

	session := auth.Session{Token: token, Username: username}
	if created, err := strconv.ParseInt(values["created_at"], 10, 64); err == nil {
		session.CreatedAt = time.UnixMilli(created).UTC()
	}
	if expires, err := strconv.ParseInt(values["expires_at"], 10, 64); err == nil && expires > 0 {
		session.ExpiresAt = time.UnixMilli(expires).UTC()
	}
	return session, nil
}

// Delete removes a session and, when it is still the live one, the pointer
// from its username.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	username, err := s.client.HGet(ctx, tokenKey(token), "username").Result()
	if errors.Is(err, redis.Nil) {
		return auth.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	pointer := userKey(username)
	err = s.watch(ctx, pointer, func(tx *redis.Tx) error {
		live, err := tx.Get(ctx, pointer).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("lookup live session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, tokenKey(token))
			if live == token {
				pipe.Del(ctx, pointer)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// watch runs fn under WATCH on key and retries when another client changes
// the key before fn's transaction commits.
func (s *RedisSessionStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for attempt := 0; attempt < redisMaxAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func expiresMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

var _ auth.SessionStore = (*RedisSessionStore)(nil)
