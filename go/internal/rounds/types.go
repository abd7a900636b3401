package rounds

import (
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// StartRoundRequest represents a request to start or reactivate a round.
// QuestionID may be nil to use the question at position RoundNumber.
// Mode defaults to the room's play mode.
type StartRoundRequest struct {
	RoomID      uuid.UUID       `json:"room_id"`
	QuestionID  uuid.UUID       `json:"question_id"`
	RoundNumber int             `json:"round_number"`
	Mode        models.PlayMode `json:"mode,omitempty"`
}

// SubmitRequest represents a live ranking from a paired device
type SubmitRequest struct {
	RoundID     uuid.UUID            `json:"round_id"`
	Kind        models.SubmitterKind `json:"kind"`
	SubmitterID uuid.UUID            `json:"submitter_id"`
	DeviceToken string               `json:"device_token"`
	Ranking     models.Ranking       `json:"ranking"`
}

// RevealResult is everything a reveal computed and stored
type RevealResult struct {
	Round         models.Round            `json:"round"`
	CommunityTop3 []events.CommunityEntry `json:"community_top3"`
	Scores        []models.RoundScore     `json:"scores"`
	Standings     []models.AggregateScore `json:"standings"`
	GameCompleted bool                    `json:"game_completed"`
	NextRound     *models.Round           `json:"next_round,omitempty"`
}

// Scoreboard is the standings after the latest reveal
type Scoreboard struct {
	RoomID    uuid.UUID               `json:"room_id"`
	Standings []models.AggregateScore `json:"standings"`
	Rounds    []models.Round          `json:"rounds"`
}
