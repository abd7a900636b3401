package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamSize is the number of participants in every team.
const TeamSize = 2

// Team represents a pair of participants playing together on one device.
type Team struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    uuid.UUID   `json:"room_id"`
	Name      string      `json:"name"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// HasMember reports whether participantID belongs to the team.
func (t Team) HasMember(participantID uuid.UUID) bool {
	for _, id := range t.MemberIDs {
		if id == participantID {
			return true
		}
	}
	return false
}
