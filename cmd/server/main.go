package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/mgarridos/babel/internal/adapters/http"
	"github.com/mgarridos/babel/internal/config"
	"github.com/mgarridos/babel/internal/room"
	"github.com/mgarridos/babel/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	var st store.Store
	if cfg.Database.Host == "" {
		log.Warn().Msg("no database configured, room records will not survive restarts")
		st = store.NewMemory()
	} else {
		pg, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database, falling back to memory store")
			st = store.NewMemory()
		} else {
			st = pg
		}
	}
	defer st.Close()

	serverID := ulid.Make().String()
	rooms := room.NewManager(st, room.Options{
		ServerID:              serverID,
		MaxPeers:              cfg.MaxPeers,
		ResetRoomStateOnEmpty: cfg.ResetRoomStateOnEmpty,
	})

	r := router.SetupRouter(ctx, cfg, rooms, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("server_id", serverID).Msg("Babel signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
