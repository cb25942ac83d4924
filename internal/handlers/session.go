package handlers

import (
	"net/http"
	"strings"

	"github.com/lcleaderboard/backend/internal/auth"
	"github.com/lcleaderboard/backend/internal/logging"
)

// RequireSession rejects requests without a live bearer session and stores
// the authenticated username in the request context.
func RequireSession(sessions SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			if sessions == nil {
				logger.Error("session manager unavailable")
				respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			username, err := sessions.Authenticate(ctx, token)
			if err != nil {
				logger.Warn("session rejected", "error", err)
				respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}

			ctx = auth.WithUsername(ctx, username)
			ctx = logging.WithLogger(ctx, logger.With("username", username))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUsername returns the account resolved by RequireSession.
func currentUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok || username == "" {
		respondJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return "", false
	}
	return username, true
}
