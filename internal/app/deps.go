package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lcleaderboard/backend/internal/auth"
	"github.com/lcleaderboard/backend/internal/config"
	"github.com/lcleaderboard/backend/internal/db"
	"github.com/lcleaderboard/backend/internal/handlers"
	"github.com/lcleaderboard/backend/internal/leaderboard"
	"github.com/lcleaderboard/backend/internal/leetcode"
	"github.com/lcleaderboard/backend/internal/middleware"
	"github.com/lcleaderboard/backend/internal/repositories"
	"github.com/lcleaderboard/backend/internal/storage"
)

// fetchGrace lets the client report its own timeout outcome before the
// aggregator abandons a lookup.
const fetchGrace = time.Second

type cleanupFunc func(ctx context.Context) error

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, cleanupFunc, error) {
	var closers []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	sessionStore, closeStore, err := buildSessionStore(pool, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	client := leetcode.NewClient(
		cfg.LeetCode.Endpoint,
		cfg.LeetCode.Timeout,
		leetcode.NewLimiter(cfg.LeetCode.RPS, cfg.LeetCode.Burst),
	)
	// A build shares one budget so queued lookups still fit the server's
	// write timeout.
	lookupBudget := cfg.LeetCode.Timeout + fetchGrace
	aggregator := leaderboard.NewAggregator(client, lookupBudget, cfg.Leaderboard.Concurrency).
		WithBuildTimeout(lookupBudget)

	deps := handlers.Dependencies{
		Accounts:    repositories.NewPostgresAccountRepository(pool),
		Sessions:    auth.NewManager(cfg.SessionTTL, sessionStore),
		Leaderboard: aggregator,
		AuthLimiter: middleware.NewAuthRateLimiter(cfg.AuthRateLimit),
		HealthCheck: poolHealthCheck(pool),
		StaticDir:   cfg.StaticDir,
		TrustProxy:  cfg.TrustProxy,
	}

	if cfg.ObjectStore.Enabled() {
		objectStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure snapshot storage: %w", err)
		}
		deps.Snapshots = leaderboard.NewExporter(objectStore)
		logger.Info("leaderboard snapshots enabled", "bucket", cfg.ObjectStore.Bucket)
	}

	logger.Info("dependencies ready",
		"sessionBackend", cfg.SessionBackend,
		"leetcodeEndpoint", client.Endpoint,
		"fetchTimeout", client.Timeout,
		"concurrency", cfg.Leaderboard.Concurrency,
	)

	return deps, cleanup, nil
}

func buildSessionStore(pool db.Pool, cfg config.Config) (auth.SessionStore, func() error, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres, "":
		return repositories.NewPostgresSessionStore(pool), nil, nil
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return repositories.NewRedisSessionStore(client), client.Close, nil
	case config.SessionBackendMemory:
		return auth.NewInMemorySessionStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func poolHealthCheck(pool db.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()
		return conn.Ping(ctx)
	}
}
