package presubmissions

import (
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// Entry is one question's ranking in a save request
type Entry struct {
	QuestionID uuid.UUID      `json:"question_id"`
	Ranking    models.Ranking `json:"ranking"`
}

// SaveRequest represents a participant saving their pre-event rankings
type SaveRequest struct {
	RoomCode    string  `json:"room_code"`
	InviteToken string  `json:"invite_token"`
	Entries     []Entry `json:"entries"`
}

// AdminSaveRequest represents a host entering a ranking on behalf of a participant
type AdminSaveRequest struct {
	RoomID          uuid.UUID      `json:"room_id"`
	ParticipantName string         `json:"participant_name"`
	QuestionID      uuid.UUID      `json:"question_id"`
	Ranking         models.Ranking `json:"ranking"`
}

// Progress is a participant's pre-event state
type Progress struct {
	Participant models.Participant     `json:"participant"`
	Submissions []models.PreSubmission `json:"submissions"`
	Questions   []models.Question      `json:"questions"`
	Locked      bool                   `json:"locked"`
}
