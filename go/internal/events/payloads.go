package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// Event payload types that are shared between the app packages and the gateway

// ParticipantDeletedPayload is the payload for a participant-deleted event
type ParticipantDeletedPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
}

// LockPayload is the payload for the roster, teams and pre-event lock events
type LockPayload struct {
	Locked bool `json:"locked"`
}

// TeamsUpdatedPayload is the payload for a teams-updated event
type TeamsUpdatedPayload struct {
	Teams []models.Team `json:"teams"`
}

// GameStatePayload is the payload for a game-state-updated event
type GameStatePayload struct {
	Room models.Room `json:"room"`
}

// RoundStartedPayload is the payload for a round-started event
type RoundStartedPayload struct {
	Round    models.Round    `json:"round"`
	Question models.Question `json:"question"`
}

// RoundClosedPayload is the payload for a round-closed event
type RoundClosedPayload struct {
	Round models.Round `json:"round"`
}

// CommunityEntry is one slot of the revealed community ranking
type CommunityEntry struct {
	Position int    `json:"position"`
	Choice   string `json:"choice"`
	Label    string `json:"label"`
	Points   int    `json:"points"`
}

// RoundRevealedPayload is the payload for a round-revealed event
type RoundRevealedPayload struct {
	Round         models.Round            `json:"round"`
	CommunityTop3 []CommunityEntry        `json:"community_top3"`
	Scores        []models.RoundScore     `json:"scores"`
	Standings     []models.AggregateScore `json:"standings"`
}

// RoundsResetPayload is the payload for a rounds-reset event
type RoundsResetPayload struct {
	Epoch int `json:"epoch"`
}

// GameCompletedPayload is the payload for a game-completed event
type GameCompletedPayload struct {
	Standings []models.AggregateScore `json:"standings"`
}

// DevicesUpdatedPayload is the payload for a devices-updated event
type DevicesUpdatedPayload struct {
	Reason  string          `json:"reason"`
	Devices []models.Device `json:"devices"`
}

// SubmissionReceivedPayload is the payload for a submission-received event
type SubmissionReceivedPayload struct {
	RoundID     uuid.UUID            `json:"round_id"`
	Kind        models.SubmitterKind `json:"kind"`
	SubmitterID uuid.UUID            `json:"submitter_id"`
}

// RoomStatePayload is the snapshot sent when a client joins a room
type RoomStatePayload struct {
	Room            models.Room          `json:"room"`
	Participants    []models.Participant `json:"participants"`
	Questions       []models.Question    `json:"questions"`
	Teams           []models.Team        `json:"teams"`
	Devices         []models.Device      `json:"devices"`
	CurrentRound    *models.Round        `json:"current_round,omitempty"`
	ConnectionCount int                  `json:"connection_count"`
}

// ConnectionCountPayload is the payload for a connection-count event
type ConnectionCountPayload struct {
	Count int `json:"count"`
}

// ErrorPayload is sent to the originating connection when a request fails
type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// DevicePairedPayload is the payload for a device-paired event
type DevicePairedPayload struct {
	Device models.Device `json:"device"`
}

// TeamPairingCodePayload is the payload for a team-pairing-code event
type TeamPairingCodePayload struct {
	TeamID    uuid.UUID `json:"team_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
