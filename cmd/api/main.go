package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/revela-app/revela/backend/internal/config"
	"github.com/revela-app/revela/backend/internal/handler"
	"github.com/revela-app/revela/backend/internal/logging"
	"github.com/revela-app/revela/backend/internal/service/insight"
	"github.com/revela-app/revela/backend/internal/service/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file before anything reads the environment.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := logging.Component("main")
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logging.Component("main")
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	reg := registry.New(cfg.Session)
	if err := reg.StartReaper(cfg.Session.SweepInterval); err != nil {
		log.Fatal().Err(err).Msg("failed to start reaper")
	}
	defer reg.Stop()

	var insightSvc *insight.Service
	if cfg.AI.Enabled() {
		insightSvc, err = insight.NewService(ctx, cfg.AI, reg, cfg.Session.HistoryLimit)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize insight service, continuing without AI")
		} else {
			log.Info().Str("model", cfg.AI.Model).Msg("insight service initialized")
		}
	} else {
		log.Info().Msg("ark credentials not configured, question endpoints disabled")
	}

	router := handler.NewRouter(reg, insightSvc)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("revela backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
