// Package analysis exposes the session lifecycle over HTTP.
package analysis

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/revela-app/revela/backend/internal/model/capture"
	"github.com/revela-app/revela/backend/internal/service/insight"
	"github.com/revela-app/revela/backend/internal/service/registry"
	"github.com/revela-app/revela/backend/pkg/utils"
)

// Handler serves session creation, questions, teardown and health.
type Handler struct {
	reg        *registry.Registry
	insightSvc *insight.Service
}

// New creates the handler. insightSvc may be nil when the model is not
// configured; question endpoints then answer 503.
func New(reg *registry.Registry, insightSvc *insight.Service) *Handler {
	return &Handler{reg: reg, insightSvc: insightSvc}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Post("/sessions/quick", h.handleQuickInsight)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Delete("/sessions/{sessionID}", h.handleEnd)
	r.Post("/sessions/{sessionID}/ask", h.handleAsk)
	r.Get("/health", h.handleHealth)
}

type createRequest struct {
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url"`
	Payload   capture.Payload `json:"payload"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sum, err := h.reg.Create(r.Context(), req.SessionID, req.Payload, req.URL)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"sessionId": req.SessionID,
		"summary":   sum,
	})
}

func (h *Handler) handleQuickInsight(w http.ResponseWriter, r *http.Request) {
	if h.insightSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai unavailable")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := h.insightSvc.QuickInsight(r.Context(), req.Payload, req.URL)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"insight": text})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.reg.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondMappedError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"type":      sess.Kind,
		"url":       sess.SourceURL,
		"createdAt": sess.CreatedAt,
		"summary":   sess.Summary.Clone(),
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	status := "ended"
	if h.reg.End(chi.URLParam(r, "sessionID")) {
		status = "already_gone"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": status})
}

type askRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sess, err := h.reg.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondMappedError(w, err)
		return
	}

	if h.insightSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai unavailable")
		return
	}

	answer, err := h.insightSvc.Respond(r.Context(), sess, req.Message)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": h.reg.ActiveCount(),
		"aiEnabled":      h.insightSvc != nil,
	})
}

func respondMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrParse):
		utils.RespondError(w, http.StatusBadRequest, "invalid data")
	case errors.Is(err, registry.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found or expired")
	case errors.Is(err, registry.ErrAlreadyExists):
		utils.RespondError(w, http.StatusConflict, "session already exists")
	case errors.Is(err, registry.ErrCapacity):
		utils.RespondError(w, http.StatusTooManyRequests, "session capacity exceeded")
	case errors.Is(err, insight.ErrInference):
		utils.RespondError(w, http.StatusBadGateway, "analysis failed, retry")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
