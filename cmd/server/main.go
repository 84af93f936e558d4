// Command server runs the Truco game server: websocket transport, SQLite
// persistence and an optional NATS event bridge.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"truco/internal/app"
	"truco/internal/config"
	"truco/internal/lobby"
	"truco/internal/ports"
	natsport "truco/internal/ports/nats"
	"truco/internal/ports/sqlite"
	"truco/internal/ports/ws"
	"truco/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	logger := log.With().Str("service", "truco").Logger()

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer store.Close()

	var publisher ports.EventPublisher
	if cfg.NATSURL != "" {
		pub, err := natsport.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("connect broker")
		}
		defer pub.Close()
		publisher = pub
	}

	registry := session.NewRegistry(logger)
	coord := lobby.NewCoordinator(logger)
	starter := lobby.NewStarter(coord, registry, store, store, publisher, logger)
	svc := app.NewService(registry, coord, starter, logger)
	handler := ws.NewHandler(svc, coord, store, cfg.AllowOrigins, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.With(chimw.Timeout(10*time.Second)).Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	// no timeout here, connections live as long as the match
	r.Get("/ws", handler.ServeWS)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("starting truco server")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
