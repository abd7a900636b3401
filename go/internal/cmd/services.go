package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/auth"
	"github.com/mcdev12/rankparty/go/internal/gateway"
	"github.com/mcdev12/rankparty/go/internal/memstore"
	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/schema"
	"github.com/mcdev12/rankparty/go/internal/teams"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Rooms          *rooms.Service
	Teams          *teams.Service
	PreSubmissions *presubmissions.Service
	Rounds         *rounds.Service
	Pairing        *pairing.Service
	Gateway        *gateway.Service
	Relay          *outbox.Relay
	Health         *outbox.HealthChecker

	workers []worker
	closers []func() error
}

// worker is a long-running component started alongside the HTTP server
type worker struct {
	name  string
	start func(ctx context.Context) error
}

// storage is one backend for every repository plus the outbox
type storage struct {
	rooms          rooms.Repository
	teams          teams.Repository
	presubmissions presubmissions.Repository
	rounds         rounds.Repository
	pairing        pairing.Repository
	outbox         outbox.Store
	pending        outbox.PendingCounter
	pinger         outbox.Pinger
	wake           <-chan string
	listener       *outbox.Listener
}

func memoryStorage() *storage {
	store := memstore.New()
	return &storage{
		rooms:          store.Rooms(),
		teams:          store.Teams(),
		presubmissions: store.PreSubmissions(),
		rounds:         store.Rounds(),
		pairing:        store.Pairing(),
		outbox:         store,
		pending:        store,
		pinger:         store,
		wake:           store.Wake(),
	}
}

func postgresStorage(database *sql.DB, dsn string) (*storage, error) {
	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	ltCfg.NotifyChannel = schema.NotifyChannel
	listener, err := outbox.NewListener(ltCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox listener: %w", err)
	}

	outboxRepo := outbox.NewRepository(database)
	return &storage{
		rooms:          rooms.NewRepository(database),
		teams:          teams.NewRepository(database),
		presubmissions: presubmissions.NewRepository(database),
		rounds:         rounds.NewRepository(database),
		pairing:        pairing.NewRepository(database),
		outbox:         outboxRepo,
		pending:        outboxRepo,
		pinger:         database,
		wake:           listener.Wake(),
		listener:       listener,
	}, nil
}

func setupServices(cfg *Config, store *storage) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → App layer → Service layer → Gateway
	clock := clockwork.NewRealClock()
	admin := auth.NewAdminVerifier(cfg.AdminSecretHash)
	if cfg.AdminSecretHash == "" {
		log.Warn().Msg("ADMIN_SECRET_HASH not set, admin pairing endpoints are disabled")
	}

	services := &Services{}

	// Rooms
	roomsApp := rooms.NewApp(store.rooms, cfg.Game, clock)
	services.Rooms = rooms.NewService(roomsApp)

	// Teams
	teamsApp := teams.NewApp(store.teams, clock)
	services.Teams = teams.NewService(teamsApp, roomsApp)

	// Pre-event submissions
	preSubmissionsApp := presubmissions.NewApp(store.presubmissions, clock)
	services.PreSubmissions = presubmissions.NewService(preSubmissionsApp, roomsApp)

	// Rounds
	roundsApp := rounds.NewApp(store.rounds, clock)
	services.Rounds = rounds.NewService(roundsApp, roomsApp)
	if delay := cfg.autoAdvanceDelay(); delay > 0 {
		advancer := roundsApp.EnableAutoAdvance(delay)
		services.closers = append(services.closers, func() error {
			advancer.Stop()
			return nil
		})
		log.Info().Dur("delay", delay).Msg("auto-advance enabled")
	}

	// Pairing
	pairingApp := pairing.NewApp(store.pairing, clock, cfg.Game.PairingCodeTTL)
	services.Pairing = pairing.NewService(pairingApp, roomsApp, admin)

	// Gateway
	gwCfg := gateway.DefaultConfig()
	gwCfg.BroadcastMode = cfg.BroadcastMode
	gwCfg.PublicURL = cfg.PublicURL
	if cfg.NATSURL != "" {
		gwCfg.JetStreamConfig.Connection.URL = cfg.NATSURL
	}
	if cfg.ConsumerName != "" {
		gwCfg.JetStreamConfig.ConsumerName = cfg.ConsumerName
	}
	gw, err := gateway.NewService(gwCfg, roomsApp, roundsApp, pairingApp)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	services.Gateway = gw

	// Outbox relay: in process straight to the gateway, or out to JetStream
	var (
		publisher outbox.Publisher
		natsConn  *nats.Conn
	)
	if local := gw.Publisher(); local != nil {
		publisher = local
	} else {
		jsCfg := outbox.DefaultJetStreamConfig()
		if cfg.NATSURL != "" {
			jsCfg.URL = cfg.NATSURL
		}
		jsPublisher, err := outbox.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.closers = append(services.closers, jsPublisher.Close)
		publisher = jsPublisher
		natsConn = jsPublisher.Conn()
	}

	relayCfg := outbox.DefaultRelayConfig()
	relayCfg.FallbackInterval = cfg.FallbackInterval
	relayCfg.BatchSize = cfg.RelayBatchSize
	services.Relay = outbox.NewRelay(store.outbox, publisher, store.wake, clock, relayCfg)
	services.Health = outbox.NewHealthChecker(services.Relay, store.pinger, store.pending, natsConn, cfg.HealthThreshold)

	if store.listener != nil {
		services.workers = append(services.workers, worker{name: "outbox listener", start: store.listener.Start})
	}
	services.workers = append(services.workers,
		worker{name: "outbox relay", start: services.Relay.Start},
		worker{name: "gateway", start: services.Gateway.Start},
	)

	return services, nil
}

// Start runs every worker in the background. Errors are sent on the returned
// channel; a nil error from a worker is not reported.
func (s *Services) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, len(s.workers))
	for _, w := range s.workers {
		go func(w worker) {
			log.Info().Str("worker", w.name).Msg("starting worker")
			if err := w.start(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", w.name, err)
			}
		}(w)
	}
	return errCh
}

// Close releases resources in reverse creation order
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close service resource")
		}
	}
}
