package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusSetup     RoomStatus = "SETUP"
	RoomStatusPreEvent  RoomStatus = "PRE_EVENT"
	RoomStatusLiveEvent RoomStatus = "LIVE_EVENT"
	RoomStatusCompleted RoomStatus = "COMPLETED"
)

// PlayMode decides who submits live rankings in a round.
type PlayMode string

const (
	PlayModeTeam       PlayMode = "TEAM"
	PlayModeIndividual PlayMode = "INDIVIDUAL"
)

// Valid reports whether m is a known play mode.
func (m PlayMode) Valid() bool {
	return m == PlayModeTeam || m == PlayModeIndividual
}

// Room represents one game session.
type Room struct {
	ID                uuid.UUID  `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Status            RoomStatus `json:"status"`
	CurrentRoundIndex int        `json:"current_round_index"`
	Epoch             int        `json:"epoch"`
	PlayMode          PlayMode   `json:"play_mode"`
	RosterLocked      bool       `json:"roster_locked"`
	TeamsLocked       bool       `json:"teams_locked"`
	PreEventLocked    bool       `json:"pre_event_locked"`
	HostToken         string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
