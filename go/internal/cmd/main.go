package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *storage
	switch cfg.StoreDriver {
	case StorePostgres:
		var database *sql.DB
		database, err = setupDatabase(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("setup database")
		}
		defer database.Close()
		store, err = postgresStorage(database, cfg.Database.DSN())
	default:
		log.Warn().Msg("using in-memory store, game state is lost on restart")
		store = memoryStorage()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("setup storage")
	}

	services, err := setupServices(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("setup services")
	}
	defer services.Close()

	workerErrs := services.Start(ctx)
	server := setupServer(cfg, services)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", string(cfg.StoreDriver)).
			Str("broadcast_mode", string(cfg.BroadcastMode)).
			Msg("rankparty server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server exited unexpectedly")
	case err := <-workerErrs:
		log.Error().Err(err).Msg("worker exited unexpectedly")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}
