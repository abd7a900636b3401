package rooms

import (
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// CreateRoomRequest represents a request to create a new room
type CreateRoomRequest struct {
	Name         string             `json:"name"`
	Code         string             `json:"code,omitempty"`
	PlayMode     models.PlayMode    `json:"play_mode,omitempty"`
	Participants []ParticipantInput `json:"participants"`
	Questions    []QuestionInput    `json:"questions,omitempty"`
	TemplateID   string             `json:"template_id,omitempty"`
}

// ParticipantInput describes a participant to add
type ParticipantInput struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	IsHost    bool    `json:"is_host"`
	IsGuest   bool    `json:"is_guest"`
}

// QuestionInput describes a question to add
type QuestionInput struct {
	Text         string   `json:"text"`
	Category     string   `json:"category"`
	FixedOptions []string `json:"fixed_options,omitempty"`
}

// UpdateParticipantRequest changes the fields that are set
type UpdateParticipantRequest struct {
	ParticipantID uuid.UUID `json:"id"`
	Name          *string   `json:"name,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	IsGuest       *bool     `json:"is_guest,omitempty"`
}

// GameStateUpdate changes the room status and/or round index
type GameStateUpdate struct {
	Status            *models.RoomStatus `json:"status,omitempty"`
	CurrentRoundIndex *int               `json:"current_round_index,omitempty"`
}

// CreatedRoom is the result of CreateRoom. HostToken is only revealed here.
type CreatedRoom struct {
	Room         models.Room          `json:"room"`
	HostToken    string               `json:"host_token"`
	Participants []models.Participant `json:"participants"`
	Questions    []models.Question    `json:"questions"`
	Invites      []Invite             `json:"invites"`
}

// Invite pairs a participant with the token of their pre-event link
type Invite struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	InviteToken   string    `json:"invite_token"`
}

// GameState is the full read model of a room
type GameState struct {
	Room         models.Room          `json:"room"`
	Participants []models.Participant `json:"participants"`
	Questions    []models.Question    `json:"questions"`
	Teams        []models.Team        `json:"teams"`
	Devices      []models.Device      `json:"devices"`
	Rounds       []models.Round       `json:"rounds"`
	CurrentRound *models.Round        `json:"current_round,omitempty"`
	TotalRounds  int                  `json:"total_rounds"`
}
