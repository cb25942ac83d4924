package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lcleaderboard/backend/internal/auth"
	"github.com/lcleaderboard/backend/internal/logging"
	"github.com/lcleaderboard/backend/internal/models"
	"github.com/lcleaderboard/backend/internal/repositories"
)

// AuthHandler implements account signup, login and logout.
type AuthHandler struct {
	Accounts AccountStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// SignUp handles POST /signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "signup") {
		logger.Warn("signup rate limited", "client", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	if h.Accounts == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasSessions", h.Sessions != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during signup"})
		return
	}

	req, ok := decodeCredentials(w, r, "signup")
	if !ok {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during signup"})
		return
	}

	now := h.now()
	account := models.Account{
		Username:  req.Username,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup username taken", "username", req.Username)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Username already taken"})
			return
		}
		logger.Error("signup failed to create account", "error", err, "username", req.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during signup"})
		return
	}

	token, err := h.Sessions.Issue(ctx, account.Username)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "username", account.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during signup"})
		return
	}

	logger.Info("account created", "username", account.Username)
	respondJSON(ctx, w, http.StatusOK, newAuthResponse("Signup successful", token))
}

// Login handles POST /login requests. Each successful login replaces the
// account's previous session.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "client", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	if h.Accounts == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasSessions", h.Sessions != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during login"})
		return
	}

	req, ok := decodeCredentials(w, r, "login")
	if !ok {
		return
	}

	account, err := h.Accounts.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login account lookup failed", "error", err, "username", req.Username)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during login"})
			return
		}
		logger.Warn("login unknown account", "username", req.Username)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "username", account.Username)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	token, err := h.Sessions.Issue(ctx, account.Username)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "username", account.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during login"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, newAuthResponse("Login successful", token))
}

// Logout handles POST /logout. It must run behind RequireSession.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during logout"})
		return
	}

	token, _ := bearerToken(r)
	if err := h.Sessions.Revoke(ctx, token); err != nil {
		logger.Error("logout failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "Error during logout"})
		return
	}

	if username, ok := auth.UsernameFromContext(ctx); ok {
		logger.Info("session revoked", "username", username)
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authUser struct {
	Username string `json:"username"`
}

type authResponse struct {
	Message string   `json:"message"`
	User    authUser `json:"user"`
	Token   string   `json:"token"`
}

func newAuthResponse(message string, token models.SessionToken) authResponse {
	return authResponse{
		Message: message,
		User:    authUser{Username: token.Username},
		Token:   token.Token,
	}
}

// decodeCredentials reads a username/password body and writes the 400
// response itself when the body is unusable.
func decodeCredentials(w http.ResponseWriter, r *http.Request, action string) (credentialsRequest, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid "+action+" payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return credentialsRequest{}, false
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		logger.Warn(action+" missing credentials", "username", req.Username)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Username and password required"})
		return credentialsRequest{}, false
	}

	return req, true
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
