package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/outbox"
)

// RoomEvent is the structure of every server to client message
type RoomEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RoomCode  string          `json:"room_code"` // Room code, empty for replies before a join
	Type      events.Type     `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// NewRoomEvent marshals payload into an event for roomCode
func NewRoomEvent(roomCode string, t events.Type, payload any) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// EventFromEnvelope converts a relayed outbox envelope into a room event.
// Unknown event types are rejected so clients only see the documented set.
func EventFromEnvelope(env outbox.Envelope) (*RoomEvent, error) {
	t := events.Type(env.EventType)
	if !events.Known(t) {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	if env.RoomCode == "" {
		return nil, fmt.Errorf("event %s has no room code", env.EventID)
	}
	return &RoomEvent{
		ID:        env.EventID,
		RoomCode:  env.RoomCode,
		Type:      t,
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, nil
}

// EventFromOutbox converts a committed outbox row into a room event
func EventFromOutbox(event models.OutboxEvent) (*RoomEvent, error) {
	return EventFromEnvelope(outbox.NewEnvelope(event))
}

// MessageType is the type of a client to server message
type MessageType string

const (
	MessageJoinRoom      MessageType = "join-room"
	MessageHostAction    MessageType = "host-action"
	MessageSubmitRanking MessageType = "submit-ranking"
	MessagePairDevice    MessageType = "pair-device"
)

// ClientMessage is the envelope of every client to server message
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JoinRoomData subscribes a connection to a room
type JoinRoomData struct {
	RoomCode    string `json:"roomCode"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// HostActionData carries a host command. HostToken is checked on every call.
type HostActionData struct {
	RoomCode  string          `json:"roomCode"`
	HostToken string          `json:"hostToken"`
	Action    HostAction      `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RankingsData is a live ranking by participant ID or option label
type RankingsData struct {
	Rank1ID string `json:"rank1Id"`
	Rank2ID string `json:"rank2Id"`
	Rank3ID string `json:"rank3Id"`
}

// Ranking returns the entries in rank order
func (r RankingsData) Ranking() models.Ranking {
	return models.Ranking{r.Rank1ID, r.Rank2ID, r.Rank3ID}
}

// SubmitRankingData is a live ranking from a paired device. Exactly one of
// TeamID and ParticipantID is set.
type SubmitRankingData struct {
	RoomCode      string       `json:"roomCode"`
	RoundID       string       `json:"roundId"`
	TeamID        string       `json:"teamId,omitempty"`
	ParticipantID string       `json:"participantId,omitempty"`
	DeviceToken   string       `json:"deviceToken"`
	Rankings      RankingsData `json:"rankings"`
}

// PairDeviceData pairs a device by team code, team or participant
type PairDeviceData struct {
	RoomCode      string `json:"roomCode"`
	DeviceToken   string `json:"deviceToken"`
	PairingCode   string `json:"pairingCode,omitempty"`
	TeamID        string `json:"teamId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
}

// HostAction names a host command
type HostAction string

const (
	ActionAddParticipant          HostAction = "add-participant"
	ActionUpdateParticipant       HostAction = "update-participant"
	ActionDeleteParticipant       HostAction = "delete-participant"
	ActionLockRoster              HostAction = "lock-roster"
	ActionLockTeams               HostAction = "lock-teams"
	ActionLockPreEvent            HostAction = "lock-pre-event"
	ActionOpenPreEvent            HostAction = "open-pre-event"
	ActionGenerateTeamPairingCode HostAction = "generate-team-pairing-code"
	ActionStartRound              HostAction = "start-round"
	ActionCloseRound              HostAction = "close-round"
	ActionRevealResults           HostAction = "reveal-results"
	ActionResetRounds             HostAction = "reset-rounds"
	ActionClearPairings           HostAction = "clear-pairings"
)

type addParticipantPayload struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	IsGuest   bool    `json:"isGuest"`
}

type updateParticipantPayload struct {
	ParticipantID string  `json:"participantId"`
	Name          *string `json:"name,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	IsGuest       *bool   `json:"isGuest,omitempty"`
}

type participantPayload struct {
	ParticipantID string `json:"participantId"`
}

// lockPayload defaults to locking when Locked is absent
type lockPayload struct {
	Locked *bool `json:"locked,omitempty"`
}

func (p lockPayload) value() bool {
	return p.Locked == nil || *p.Locked
}

type teamPayload struct {
	TeamID string `json:"teamId"`
}

type startRoundPayload struct {
	RoundNumber int             `json:"roundNumber"`
	QuestionID  string          `json:"questionId,omitempty"`
	Mode        models.PlayMode `json:"mode,omitempty"`
}

type roundPayload struct {
	RoundID string `json:"roundId,omitempty"`
}
