package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus defines the status of a round.
type RoundStatus string

const (
	RoundStatusWaiting  RoundStatus = "WAITING"
	RoundStatusActive   RoundStatus = "ACTIVE"
	RoundStatusClosed   RoundStatus = "CLOSED"
	RoundStatusRevealed RoundStatus = "REVEALED"
)

// Round is one question being played in a room.
type Round struct {
	ID          uuid.UUID   `json:"id"`
	RoomID      uuid.UUID   `json:"room_id"`
	QuestionID  uuid.UUID   `json:"question_id"`
	RoundNumber int         `json:"round_number"`
	Status      RoundStatus `json:"status"`
	Mode        PlayMode    `json:"mode"`
	Community   Top3        `json:"community_top3"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
	RevealedAt  *time.Time  `json:"revealed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
