// Package stream serves answers over Server-Sent Events.
package stream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/revela-app/revela/backend/internal/service/insight"
	"github.com/revela-app/revela/backend/internal/service/registry"
	"github.com/revela-app/revela/backend/pkg/utils"
)

// Handler streams model output chunk by chunk for one question.
type Handler struct {
	reg        *registry.Registry
	insightSvc *insight.Service
}

// New creates the stream handler.
func New(reg *registry.Registry, insightSvc *insight.Service) *Handler {
	return &Handler{reg: reg, insightSvc: insightSvc}
}

// Response is one SSE frame.
type Response struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStream answers the message for sessionID, emitting start, chunk and
// end events.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request, sessionID, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	sess, err := h.reg.Get(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found or expired")
		return err
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, Response{Event: "start", SessionID: sessionID})

	_, err = h.insightSvc.StreamRespond(r.Context(), sess, message, func(chunk string) error {
		utils.SendSSEChunk(w, flusher, Response{Event: "chunk", SessionID: sessionID, Content: chunk})
		return nil
	})
	if err != nil {
		reason := "analysis failed, retry"
		if errors.Is(err, registry.ErrNotFound) {
			reason = "session not found or expired"
		}
		utils.SendSSEChunk(w, flusher, Response{Event: "error", SessionID: sessionID, Error: reason})
		return err
	}

	utils.SendSSEChunk(w, flusher, Response{Event: "end", SessionID: sessionID, Finished: true})
	return nil
}
