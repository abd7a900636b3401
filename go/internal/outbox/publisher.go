package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Message headers carried on every relayed room event.
const (
	HeaderEventType = "Rankparty-Event-Type"
	HeaderRoomCode  = "Rankparty-Room-Code"
	HeaderCreatedAt = "Rankparty-Created-At"
)

// JetStreamConfig describes the NATS connection and the stream room events
// are relayed into. Gateways consume from the same stream.
type JetStreamConfig struct {
	URL           string
	ClientName    string
	MaxReconnects int
	ReconnectWait time.Duration

	StreamName    string
	SubjectPrefix string
	MaxAge        time.Duration
	Replicas      int
	// DuplicateWindow bounds how long a redelivered outbox row is
	// recognised by its event id.
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		ClientName:      "rankparty",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		StreamName:      "ROOM_EVENTS",
		SubjectPrefix:   "room.events",
		MaxAge:          12 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Subject returns the subject an event for roomCode is published on:
// <prefix>.<ROOMCODE>.<event-type>.
func (c JetStreamConfig) Subject(roomCode, eventType string) string {
	return strings.Join([]string{c.SubjectPrefix, strings.ToUpper(roomCode), eventType}, ".")
}

// RoomFilter returns the subject filter matching every event of one room,
// or of all rooms when roomCode is empty.
func (c JetStreamConfig) RoomFilter(roomCode string) string {
	if roomCode == "" {
		return c.SubjectPrefix + ".>"
	}
	return c.SubjectPrefix + "." + strings.ToUpper(roomCode) + ".>"
}

func (c JetStreamConfig) stream() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.StreamName,
		Description: "Room events relayed from the Postgres outbox",
		Subjects:    []string{c.RoomFilter("")},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      c.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    c.Replicas,
		Duplicates:  c.DuplicateWindow,
	}
}

// Connect dials NATS with reconnect handling and connection logging. The
// relay publisher and the gateway consumer both connect through here.
func Connect(cfg JetStreamConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("client", cfg.ClientName).Msg("NATS connection lost")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("client", cfg.ClientName).Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err).Str("client", cfg.ClientName)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// JetStreamPublisher delivers outbox rows to the room event stream. Each
// message id is the outbox row id, so a row published twice (relay crash
// between publish and MarkSent, or two relays) is stored once.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects and creates or updates the room event
// stream.
func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, err := js.CreateOrUpdateStream(ctx, cfg.stream())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	log.Info().
		Str("stream", stream.CachedInfo().Config.Name).
		Strs("subjects", stream.CachedInfo().Config.Subjects).
		Msg("room event stream ready")

	return &JetStreamPublisher{nc: nc, js: js, config: cfg}, nil
}

// Conn exposes the NATS connection for health checks.
func (p *JetStreamPublisher) Conn() *nats.Conn {
	return p.nc
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EventType, err)
	}

	msg := nats.NewMsg(p.config.Subject(event.RoomCode, event.EventType))
	msg.Data = data
	msg.Header.Set(HeaderEventType, event.EventType)
	msg.Header.Set(HeaderRoomCode, event.RoomCode)
	msg.Header.Set(HeaderCreatedAt, event.CreatedAt.UTC().Format(time.RFC3339Nano))

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s for room %s: %w", event.EventType, event.RoomCode, err)
	}

	if ack.Duplicate {
		log.Debug().Str("event_id", event.ID.String()).Msg("event already in stream")
		return nil
	}
	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", event.ID.String()).
		Uint64("seq", ack.Sequence).
		Msg("relayed room event")
	return nil
}

// Close drains pending publishes before closing the connection.
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
