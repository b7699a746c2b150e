package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revela-app/revela/backend/internal/config"
	"github.com/revela-app/revela/backend/internal/service/registry"
)

const peopleTable = `<table>
	<tr><th>Name</th><th>Age</th></tr>
	<tr><td>Alice</td><td>30</td></tr>
</table>`

func setupRouter() (*chi.Mux, *registry.Registry) {
	reg := registry.New(config.SessionConfig{
		TTL:          30 * time.Minute,
		MaxActive:    16,
		HistoryLimit: 5,
		SampleRows:   5,
	})
	handler := New(reg, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, reg
}

func createBody(id string) []byte {
	payload, _ := json.Marshal(map[string]any{
		"sessionId": id,
		"url":       "https://example.com",
		"payload":   map[string]string{"type": "table", "html": peopleTable},
	})
	return payload
}

func postJSON(r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSession(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	resp := postJSON(r, "/sessions", createBody("s1"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		SessionID string `json:"sessionId"`
		Summary   struct {
			RowCount    int      `json:"rowCount"`
			ColumnCount int      `json:"columnCount"`
			Columns     []string `json:"columns"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Summary.RowCount != 1 || out.Summary.ColumnCount != 2 {
		t.Fatalf("unexpected summary: %+v", out.Summary)
	}
}

func TestCreateSessionDuplicate(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	if resp := postJSON(r, "/sessions", createBody("dup")); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if resp := postJSON(r, "/sessions", createBody("dup")); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestCreateSessionInvalidPayload(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	payload, _ := json.Marshal(map[string]any{
		"sessionId": "bad",
		"payload":   map[string]string{"type": "table"},
	})
	if resp := postJSON(r, "/sessions", payload); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionMissingID(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	payload, _ := json.Marshal(map[string]any{
		"payload": map[string]string{"type": "table", "html": peopleTable},
	})
	if resp := postJSON(r, "/sessions", payload); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetSession(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	postJSON(r, "/sessions", createBody("s1"))

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/unknown", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAskUnknownSession(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	body, _ := json.Marshal(map[string]string{"message": "what is this?"})
	if resp := postJSON(r, "/sessions/never-created/ask", body); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAskWithoutAI(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	postJSON(r, "/sessions", createBody("s1"))

	body, _ := json.Marshal(map[string]string{"message": "hello"})
	if resp := postJSON(r, "/sessions/s1/ask", body); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	postJSON(r, "/sessions", createBody("s1"))

	statuses := []string{"ended", "already_gone"}
	for _, want := range statuses {
		req := httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		var out map[string]string
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out["status"] != want {
			t.Fatalf("expected status %q, got %q", want, out["status"])
		}
	}
}

func TestHealth(t *testing.T) {
	r, reg := setupRouter()
	defer reg.Stop()

	for i := 0; i < 3; i++ {
		postJSON(r, "/sessions", createBody(fmt.Sprintf("s-%d", i)))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"activeSessions"`
		AIEnabled      bool   `json:"aiEnabled"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != "ok" || out.ActiveSessions != 3 {
		t.Fatalf("unexpected health: %+v", out)
	}
	if out.AIEnabled {
		t.Fatal("aiEnabled should be false without a model")
	}
}
