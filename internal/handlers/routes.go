package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lcleaderboard/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts    AccountStore
	Sessions    SessionManager
	Leaderboard LeaderboardBuilder
	// Snapshots is nil when no object store is configured.
	Snapshots   SnapshotExporter
	AuthLimiter RateLimiter
	HealthCheck func(ctx context.Context) error
	// StaticDir is served at the root when it names an existing directory.
	StaticDir   string
	// TrustProxy rewrites the remote address from forwarding headers. Enable
	// it only behind a proxy that overwrites them.
	TrustProxy  bool
}

// NewRouter builds the HTTP handler tree with logging, CORS and session
// middleware applied.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	health := HealthHandler{Check: deps.HealthCheck}
	authHandler := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	friends := FriendHandler{Accounts: deps.Accounts}
	leaderboard := LeaderboardHandler{Accounts: deps.Accounts, Builder: deps.Leaderboard, Snapshots: deps.Snapshots}

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", health.Handle)
	r.Post("/signup", authHandler.SignUp)
	r.Post("/login", authHandler.Login)

	r.Group(func(protected chi.Router) {
		protected.Use(RequireSession(deps.Sessions))

		protected.Post("/logout", authHandler.Logout)
		protected.Get("/friends", friends.List)
		protected.Post("/add-friend", friends.Add)
		protected.Post("/remove-friend", friends.Remove)
		protected.Get("/leaderboard", leaderboard.Get)
		if deps.Snapshots != nil {
			protected.Post("/leaderboard/snapshot", leaderboard.Snapshot)
		}
	})

	if dir := deps.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			logger.Warn("static directory unavailable", "dir", dir)
		}
	}

	return r
}
