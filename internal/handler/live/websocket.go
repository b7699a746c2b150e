// Package live serves an interactive ask loop over a websocket, for clients
// that keep a panel open against one session.
package live

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/revela-app/revela/backend/internal/logging"
	"github.com/revela-app/revela/backend/internal/service/insight"
	"github.com/revela-app/revela/backend/internal/service/registry"
)

// Handler upgrades connections and relays questions to the insight service.
type Handler struct {
	reg        *registry.Registry
	insightSvc *insight.Service
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

// New creates the websocket handler.
func New(reg *registry.Registry, insightSvc *insight.Service) *Handler {
	return &Handler{
		reg:        reg,
		insightSvc: insightSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logging.Component("live"),
	}
}

type inboundMessage struct {
	Message string `json:"message"`
}

type outboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HandleWebSocket runs the ask loop: each inbound message is answered with
// streamed chunk frames followed by a final answer frame. The connection
// closes when the session disappears.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.reg.Get(sessionID); err != nil {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("session", sessionID).Msg("websocket opened")

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("session", sessionID).Msg("websocket read failed")
			}
			return
		}
		if in.Message == "" {
			h.send(conn, outboundMessage{Type: "error", SessionID: sessionID, Error: "message is required"})
			continue
		}

		sess, err := h.reg.Get(sessionID)
		if err != nil {
			h.send(conn, outboundMessage{Type: "error", SessionID: sessionID, Error: "session not found or expired"})
			return
		}

		answer, err := h.insightSvc.StreamRespond(r.Context(), sess, in.Message, func(chunk string) error {
			return h.send(conn, outboundMessage{Type: "chunk", SessionID: sessionID, Content: chunk})
		})
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				h.send(conn, outboundMessage{Type: "error", SessionID: sessionID, Error: "session not found or expired"})
				return
			}
			h.send(conn, outboundMessage{Type: "error", SessionID: sessionID, Error: "analysis failed, retry"})
			continue
		}

		h.send(conn, outboundMessage{Type: "answer", SessionID: sessionID, Content: answer})
	}
}

func (h *Handler) send(conn *websocket.Conn, msg outboundMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn().Err(err).Msg("websocket write failed")
		return err
	}
	return nil
}
