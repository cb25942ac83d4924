package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown and dependency cleanup.
var ShutdownTimeout = 10 * time.Second

const (
	readHeaderTimeout = 5 * time.Second
	// writeMargin covers session lookup, friend loading and encoding on top
	// of the slowest upstream fetch.
	writeMargin = 5 * time.Second
)

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. fetchTimeout is the
// per-lookup upstream bound; the write timeout is derived from it so a slow
// leaderboard is never cut off mid-response.
func New(port int, handler http.Handler, fetchTimeout time.Duration) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      WriteTimeout(fetchTimeout),
			IdleTimeout:       time.Minute,
		},
	}
}

// WriteTimeout returns the response deadline used for a given fetch timeout.
func WriteTimeout(fetchTimeout time.Duration) time.Duration {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return fetchTimeout + writeMargin
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
