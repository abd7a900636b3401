package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		PingInterval: 90 * time.Second,
	}
}

// Listener turns Postgres notifications on the outbox channel into relay
// wake-ups. Each notification carries the inserted event ID.
type Listener struct {
	listener *pq.Listener
	cfg      ListenerConfig
	wake     chan string
}

func NewListener(cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		listener: l,
		cfg:      cfg,
		wake:     make(chan string, 256),
	}, nil
}

// Wake is the channel the relay reads from.
func (l *Listener) Wake() <-chan string {
	return l.wake
}

// Start forwards notifications until ctx is done.
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.listener.Close()
		case note := <-l.listener.Notify:
			extra := ""
			if note != nil {
				extra = note.Extra
			}
			// nil note: the connection was re-established and notifications
			// may have been lost, so ask for a sweep
			select {
			case l.wake <- extra:
			default:
				log.Warn().Str("event_id", extra).Msg("relay wake channel full, dropping notification")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}
