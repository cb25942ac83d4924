package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lcleaderboard/backend/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Check verifies backing services. Nil reports healthy.
	Check func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Check(checkCtx); err != nil {
			logging.FromContext(ctx).Error("health check failed", "error", err)
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
