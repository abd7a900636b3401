package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a room event written in the same transaction as the state
// change it describes, published only after commit.
type OutboxEvent struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	RoomCode  string     `json:"room_code"`
	EventType string     `json:"event_type"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
