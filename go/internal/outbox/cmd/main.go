// Command outbox-relay moves committed room events from the Postgres outbox
// to NATS JetStream for gateways running with BROADCAST_MODE=jetstream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/rankparty/go/internal/dbconfig"
	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/mcdev12/rankparty/go/internal/schema"
)

type relayConfig struct {
	db              dbconfig.Config
	jetStream       outbox.JetStreamConfig
	relay           outbox.RelayConfig
	healthAddr      string
	healthThreshold time.Duration
}

func loadRelayConfig() relayConfig {
	cfg := relayConfig{
		db:              dbconfig.NewConfigFromEnv(),
		jetStream:       outbox.DefaultJetStreamConfig(),
		relay:           outbox.DefaultRelayConfig(),
		healthAddr:      ":8081",
		healthThreshold: 10 * time.Minute,
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.jetStream.URL = url
	}
	if addr := os.Getenv("HEALTH_ADDR"); addr != "" {
		cfg.healthAddr = addr
	}
	if d, err := time.ParseDuration(os.Getenv("FALLBACK_INTERVAL")); err == nil && d > 0 {
		cfg.relay.FallbackInterval = d
	}
	if d, err := time.ParseDuration(os.Getenv("HEALTH_THRESHOLD")); err == nil && d > 0 {
		cfg.healthThreshold = d
	}
	return cfg
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadRelayConfig()); err != nil {
		log.Fatal().Err(err).Msg("outbox relay failed")
	}
	log.Info().Msg("graceful shutdown complete")
}

func run(ctx context.Context, cfg relayConfig) error {
	db, err := sql.Open("postgres", cfg.db.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	cfg.db.ApplyPool(db)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	// the relay may start before any server, so it owns the outbox trigger too
	if err := schema.Apply(ctx, db); err != nil {
		return err
	}
	log.Info().Str("database", cfg.db.Target()).Msg("connected to database")

	publisher, err := outbox.NewJetStreamPublisher(cfg.jetStream)
	if err != nil {
		return fmt.Errorf("create JetStream publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = cfg.db.DSN()
	ltCfg.NotifyChannel = schema.NotifyChannel
	listener, err := outbox.NewListener(ltCfg)
	if err != nil {
		return fmt.Errorf("create outbox listener: %w", err)
	}

	repo := outbox.NewRepository(db)
	relay := outbox.NewRelay(repo, publisher, listener.Wake(), clockwork.NewRealClock(), cfg.relay)

	mux := http.NewServeMux()
	mux.Handle("/health", outbox.NewHealthChecker(relay, db, repo, publisher.Conn(), cfg.healthThreshold))
	healthServer := &http.Server{Addr: cfg.healthAddr, Handler: mux}

	errCh := make(chan error, 3)
	go func() { errCh <- listener.Start(ctx) }()
	go func() { errCh <- relay.Start(ctx) }()
	go func() {
		log.Info().Str("addr", cfg.healthAddr).Msg("serving relay health")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr == nil && ctx.Err() == nil {
			runErr = errors.New("relay stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown")
	}
	return runErr
}
