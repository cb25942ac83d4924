package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcleaderboard/backend/internal/config"
	"github.com/lcleaderboard/backend/internal/db"
	"github.com/lcleaderboard/backend/internal/handlers"
	"github.com/lcleaderboard/backend/internal/httpserver"
	"github.com/lcleaderboard/backend/internal/logging"
)

// Run bootstraps the leaderboard backend. args[0] selects the command.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	logger.Info("starting leaderboard service", "logLevel", cfg.LogLevel, "sessionBackend", cfg.SessionBackend)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(cleanupCtx); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	srv := httpserver.New(cfg.AppPort, handlers.NewRouter(deps, logger), cfg.LeetCode.Timeout)

	logger.Info("starting http server", "addr", srv.Addr())

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
