package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/bus"
	"github.com/dkriel/bidrelay/internal/config"
	"github.com/dkriel/bidrelay/internal/relay"
	"github.com/dkriel/bidrelay/internal/session"
	"github.com/dkriel/bidrelay/internal/store"
	"github.com/dkriel/bidrelay/internal/upstream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(os.Getenv("RELAY_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(cfg.LogLevel)

	client := upstream.NewClient(cfg.APIBaseURL, cfg.APIUsername, cfg.APIPassword)
	st := store.New()
	registry := session.NewRegistry()

	var mirror *bus.Mirror
	if cfg.NATSURL != "" {
		mirror, err = bus.NewMirror(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("broadcast mirror unavailable, continuing without it")
			mirror = nil
		}
	}

	b := bus.New(registry, mirror)
	coordinator := relay.New(client, st, registry, b, clockwork.NewRealClock(),
		time.Duration(cfg.TickSeconds)*time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seedCtx, seedCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := coordinator.Seed(seedCtx); err != nil {
		// Boot with an empty view; the next create or query repopulates.
		log.Error().Err(err).Msg("failed to seed auction store from system of record")
	}
	seedCancel()

	wsHandler := session.NewHandler(session.DefaultConfig(), coordinator.Enqueue, coordinator.HandleDisconnect)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: c.Handler(mux),
	}

	go coordinator.Run(ctx)
	go runConsole(coordinator, cancel)

	go func() {
		log.Info().Int("port", cfg.ListenPort).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")
	coordinator.Shutdown()
	mirror.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server closed")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
