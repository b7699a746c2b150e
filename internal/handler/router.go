package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/revela-app/revela/backend/internal/handler/analysis"
	"github.com/revela-app/revela/backend/internal/handler/live"
	"github.com/revela-app/revela/backend/internal/handler/stream"
	"github.com/revela-app/revela/backend/internal/logging"
	"github.com/revela-app/revela/backend/internal/service/insight"
	"github.com/revela-app/revela/backend/internal/service/registry"
	"github.com/revela-app/revela/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. insightSvc may be nil when
// the model is not configured.
func NewRouter(reg *registry.Registry, insightSvc *insight.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	analysisHandler := analysis.New(reg, insightSvc)

	var streamHandler *stream.Handler
	var liveHandler *live.Handler
	if insightSvc != nil {
		streamHandler = stream.New(reg, insightSvc)
		liveHandler = live.New(reg, insightSvc)
	}

	log := logging.Component("router")

	r.Route("/api", func(api chi.Router) {
		analysisHandler.RegisterRoutes(api)

		api.Get("/sessions/{sessionID}/stream", func(w http.ResponseWriter, r *http.Request) {
			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai unavailable")
				return
			}
			sessionID := chi.URLParam(r, "sessionID")
			message := r.URL.Query().Get("message")
			if message == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}
			if err := streamHandler.HandleStream(w, r, sessionID, message); err != nil {
				log.Warn().Err(err).Str("session", sessionID).Msg("stream request failed")
			}
		})

		api.Get("/sessions/{sessionID}/ws", func(w http.ResponseWriter, r *http.Request) {
			if liveHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai unavailable")
				return
			}
			liveHandler.HandleWebSocket(w, r)
		})
	})

	return r
}
