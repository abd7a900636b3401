package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// Store is what the relay needs from the outbox table
type Store interface {
	FetchUnsent(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// Publisher delivers a committed outbox event to its subscribers.
type Publisher interface {
	Publish(ctx context.Context, event models.OutboxEvent) error
}

// Envelope is the wire format of an event on the message bus
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomID    string          `json:"roomId"`
	RoomCode  string          `json:"roomCode"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an outbox event for the bus
func NewEnvelope(event models.OutboxEvent) Envelope {
	return Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		RoomID:    event.RoomID.String(),
		RoomCode:  event.RoomCode,
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(event.Payload),
	}
}
