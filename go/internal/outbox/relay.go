package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/rs/zerolog/log"
)

type RelayConfig struct {
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	BatchSize        int // Max events to fetch per batch
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		FallbackInterval: 5 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		BatchSize:        100,
	}
}

// Relay moves committed outbox rows to a Publisher. It wakes on event IDs
// from a notification source and sweeps for anything missed on a ticker.
type Relay struct {
	store     Store
	publisher Publisher
	wake      <-chan string
	clock     clockwork.Clock
	cfg       RelayConfig

	mu            sync.Mutex
	running       bool
	processed     uint64
	lastEventTime time.Time
}

// NewRelay builds a relay. An empty string on wake requests a full sweep.
func NewRelay(store Store, publisher Publisher, wake <-chan string, clock clockwork.Clock, cfg RelayConfig) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		wake:      wake,
		clock:     clock,
		cfg:       cfg,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log.Info().
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	// pick up anything written while no relay was running
	if err := r.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	fallbackTicker := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return nil
		case extra, ok := <-r.wake:
			if !ok {
				return nil
			}
			if err := r.handleNotification(ctx, extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			if err := r.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		}
	}
}

// Stats returns the number of published events and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastEventTime
}

// Running reports whether Start is looping.
func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// handleNotification publishes the event named by extra.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	if extra == "" {
		return r.processUnsent(ctx)
	}
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := r.store.FetchByID(ctx, id)
	if err != nil {
		// already delivered by a sweep
		log.Debug().Err(err).Str("event_id", extra).Msg("outbox event not pending")
		return nil
	}

	if err := r.publishWithRetry(ctx, *event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	log.Debug().Str("event_id", extra).Msg("published and marked event as sent")
	return nil
}

// processUnsent publishes pending events oldest first. It stops at the first
// failure so a room never sees events out of order.
func (r *Relay) processUnsent(ctx context.Context) error {
	unsent, err := r.store.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	for _, event := range unsent {
		if err := r.publishWithRetry(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish event")
			return err
		}
	}
	return nil
}

// publishWithRetry attempts to publish with a linear backoff, then marks the event sent.
func (r *Relay) publishWithRetry(ctx context.Context, event models.OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if err := r.store.MarkSent(ctx, event.ID); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark outbox event as sent")
			return err
		}

		r.mu.Lock()
		r.processed++
		r.lastEventTime = r.clock.Now()
		r.mu.Unlock()

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
