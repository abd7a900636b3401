package teams

import (
	"github.com/google/uuid"
)

// CreateTeamRequest represents a request to create a new team
type CreateTeamRequest struct {
	RoomID         uuid.UUID   `json:"room_id"`
	Name           string      `json:"name"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}
