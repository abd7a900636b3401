// Package gateway terminates client WebSocket connections, groups them by
// room, routes their requests into the game apps and fans committed events
// back out to every connection of the room.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/rs/zerolog/log"
)

// BroadcastMode selects how committed events reach this gateway
type BroadcastMode string

const (
	// BroadcastLocal delivers relayed events in process
	BroadcastLocal BroadcastMode = "local"
	// BroadcastJetStream consumes relayed events from NATS JetStream
	BroadcastJetStream BroadcastMode = "jetstream"
)

// Service is the realtime gateway: WebSocket connections, request dispatch
// and event broadcasting
type Service struct {
	connectionManager *ConnectionManager
	dispatcher        *Dispatcher
	wsHandler         *WebSocketHandler
	qrHandler         *QRHandler
	eventConsumer     *EventConsumer
	localPublisher    *LocalPublisher
	mode              BroadcastMode
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	BroadcastMode    BroadcastMode
	JetStreamConfig  JetStreamConsumerConfig
	PublicURL        string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		BroadcastMode:    BroadcastLocal,
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, rooms RoomApp, rounds RoundApp, pairing PairingApp) (*Service, error) {
	dispatcher := NewDispatcher(rooms, rounds, pairing)
	connectionManager := NewConnectionManager(config.ConnectionConfig, dispatcher)
	dispatcher.SetManager(connectionManager)

	s := &Service{
		connectionManager: connectionManager,
		dispatcher:        dispatcher,
		wsHandler:         NewWebSocketHandler(connectionManager),
		qrHandler:         NewQRHandler(config.PublicURL),
		mode:              config.BroadcastMode,
	}

	switch config.BroadcastMode {
	case BroadcastLocal, "":
		s.mode = BroadcastLocal
		s.localPublisher = NewLocalPublisher(connectionManager)
	case BroadcastJetStream:
		eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = eventConsumer
	default:
		return nil, fmt.Errorf("unknown broadcast mode %q", config.BroadcastMode)
	}

	return s, nil
}

// Publisher returns the in-process publisher for the outbox relay, or nil
// when events arrive over JetStream
func (s *Service) Publisher() outbox.Publisher {
	if s.localPublisher == nil {
		return nil
	}
	return s.localPublisher
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Str("broadcast_mode", string(s.mode)).Msg("starting room gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("room gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and QR HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.qrHandler.RegisterRoutes(mux)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
