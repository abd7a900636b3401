package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConsumerConfig configures the gateway's subscription to the room
// event stream. Every gateway replica needs its own ConsumerName: replicas
// sharing a durable would split the fan-out between them.
type JetStreamConsumerConfig struct {
	Connection   outbox.JetStreamConfig
	ConsumerName string
	MaxDeliver   int
	AckWait      time.Duration
	// InactiveThreshold removes the consumer once its gateway has been gone
	// this long.
	InactiveThreshold time.Duration
}

// DefaultJetStreamConsumerConfig names the consumer after the host so
// replicas on different machines do not collide.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	name := "room-gateway"
	if host, err := os.Hostname(); err == nil && host != "" {
		name += "-" + host
	}
	return JetStreamConsumerConfig{
		Connection:        outbox.DefaultJetStreamConfig(),
		ConsumerName:      name,
		MaxDeliver:        3,
		AckWait:           10 * time.Second,
		InactiveThreshold: time.Hour,
	}
}

// EventConsumer reads room events from JetStream and hands them to the
// connection manager.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	consumer          jetstream.Consumer
	config            JetStreamConsumerConfig
}

func NewEventConsumer(cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, err := outbox.Connect(config.Connection)
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
	consumer, err := js.CreateOrUpdateConsumer(ctx, config.Connection.StreamName, jetstream.ConsumerConfig{
		Durable:       config.ConsumerName,
		Description:   "room gateway fan-out",
		FilterSubject: config.Connection.RoomFilter(""),
		// joining clients get a room-state snapshot, so history is never replayed
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        config.MaxDeliver,
		AckWait:           config.AckWait,
		InactiveThreshold: config.InactiveThreshold,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer %s on %s: %w", config.ConsumerName, config.Connection.StreamName, err)
	}
	log.Info().
		Str("consumer", config.ConsumerName).
		Str("stream", config.Connection.StreamName).
		Msg("gateway consumer ready")

	return &EventConsumer{connectionManager: cm, nc: nc, consumer: consumer, config: config}, nil
}

// Start delivers messages until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	iter, err := ec.consumer.Messages()
	if err != nil {
		return fmt.Errorf("open message iterator: %w", err)
	}
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				log.Info().Str("consumer", ec.config.ConsumerName).Msg("event consumer stopped")
				return nil
			}
			log.Warn().Err(err).Msg("fetch room event")
			continue
		}
		ec.handle(msg)
	}
}

func (ec *EventConsumer) handle(msg jetstream.Msg) {
	roomCode, err := ec.deliver(msg.Data())
	if err != nil {
		// redelivery cannot fix a malformed envelope
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping room event")
		if err := msg.Term(); err != nil {
			log.Warn().Err(err).Msg("terminate room event")
		}
		return
	}
	if err := msg.Ack(); err != nil {
		log.Warn().Err(err).Str("room_code", roomCode).Msg("ack room event")
	}
}

func (ec *EventConsumer) deliver(data []byte) (string, error) {
	var envelope outbox.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	event, err := EventFromEnvelope(envelope)
	if err != nil {
		return envelope.RoomCode, err
	}
	ec.connectionManager.BroadcastToRoom(event.RoomCode, event)
	return event.RoomCode, nil
}

func (ec *EventConsumer) Stop() error {
	if ec.nc == nil || ec.nc.IsClosed() {
		return nil
	}
	return ec.nc.Drain()
}
