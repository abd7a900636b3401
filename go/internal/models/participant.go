package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a person in the room who can be ranked.
// Hosts are rankable but never join a team.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	Name        string    `json:"name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	IsHost      bool      `json:"is_host"`
	IsGuest     bool      `json:"is_guest"`
	InviteToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
