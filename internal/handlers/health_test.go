package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandlerHandle(t *testing.T) {
	handler := HealthHandler{}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}
	if got := decodeBody[map[string]string](t, rec)["status"]; got != "ok" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestHealthHandlerReportsFailedCheck(t *testing.T) {
	handler := HealthHandler{Check: func(context.Context) error { return errors.New("db down") }}

	rec := httptest.NewRecorder()
	handler.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
}
