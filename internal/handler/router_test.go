package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/revela-app/revela/backend/internal/config"
	"github.com/revela-app/revela/backend/internal/handler"
	"github.com/revela-app/revela/backend/internal/service/registry"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := registry.New(config.SessionConfig{
		TTL:          30 * time.Minute,
		MaxActive:    16,
		HistoryLimit: 5,
		SampleRows:   5,
	})
	t.Cleanup(reg.Stop)
	return handler.NewRouter(reg, nil)
}

func TestRouterCreateAndHealth(t *testing.T) {
	r := setupRouter(t)

	body, _ := json.Marshal(map[string]any{
		"sessionId": "s1",
		"payload": map[string]string{
			"type": "table",
			"html": "<table><tr><th>A</th></tr><tr><td>1</td></tr></table>",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterStreamWithoutAI(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/stream?message=hi", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRouterWebSocketWithoutAI(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
