package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a client instance identified by an opaque token.
// It is paired to at most one team or one participant.
type Device struct {
	ID            uuid.UUID  `json:"id"`
	RoomID        uuid.UUID  `json:"room_id"`
	Token         string     `json:"-"`
	TeamID        *uuid.UUID `json:"team_id,omitempty"`
	ParticipantID *uuid.UUID `json:"participant_id,omitempty"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TeamPairingCode is a short-lived code a device can use to claim a team.
type TeamPairingCode struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	TeamID    uuid.UUID `json:"team_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
