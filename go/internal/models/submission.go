package models

import (
	"time"

	"github.com/google/uuid"
)

// PreSubmission is a participant's ranking given before the live event.
type PreSubmission struct {
	ID            uuid.UUID `json:"id"`
	RoomID        uuid.UUID `json:"room_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	Ranking       Ranking   `json:"ranking"`
	CreatedAt     time.Time `json:"created_at"`
}

// SubmitterKind tags who a live submission or score belongs to.
type SubmitterKind string

const (
	SubmitterTeam       SubmitterKind = "TEAM"
	SubmitterIndividual SubmitterKind = "INDIVIDUAL"
)

// SubmitterKindFor returns the submitter kind scored in a round of mode m.
func SubmitterKindFor(m PlayMode) SubmitterKind {
	if m == PlayModeIndividual {
		return SubmitterIndividual
	}
	return SubmitterTeam
}

// Submission is a live ranking for an active round, from a team or a participant.
type Submission struct {
	ID          uuid.UUID     `json:"id"`
	RoundID     uuid.UUID     `json:"round_id"`
	Kind        SubmitterKind `json:"kind"`
	SubmitterID uuid.UUID     `json:"submitter_id"`
	Ranking     Ranking       `json:"ranking"`
	SubmittedAt time.Time     `json:"submitted_at"`
}
