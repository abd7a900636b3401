package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
	"github.com/rs/zerolog/log"
)

// RoomApp defines what the gateway needs from the session store
type RoomApp interface {
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error)
	Snapshot(ctx context.Context, code string) (*events.RoomStatePayload, error)
	AddParticipant(ctx context.Context, roomID uuid.UUID, in rooms.ParticipantInput) (*models.Participant, error)
	UpdateParticipant(ctx context.Context, roomID uuid.UUID, req rooms.UpdateParticipantRequest) (*models.Participant, error)
	DeleteParticipant(ctx context.Context, roomID, participantID uuid.UUID) error
	SetRosterLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error)
	SetTeamsLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error)
	SetPreEventLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error)
	OpenPreEvent(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
}

// RoundApp defines what the gateway needs from the round state machine
type RoundApp interface {
	StartRound(ctx context.Context, req rounds.StartRoundRequest) (*models.Round, error)
	CloseRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	CloseAndReveal(ctx context.Context, roundID uuid.UUID) (*rounds.RevealResult, error)
	RevealTarget(ctx context.Context, roomID uuid.UUID, roundID uuid.UUID) (*models.Round, error)
	ResetRounds(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	SubmitRanking(ctx context.Context, req rounds.SubmitRequest) (*models.Submission, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
}

// PairingApp defines what the gateway needs from the device pairing registry
type PairingApp interface {
	PairDeviceToTeam(ctx context.Context, deviceToken string, teamID, roomID uuid.UUID) (*models.Device, error)
	PairDeviceToParticipant(ctx context.Context, deviceToken string, participantID, roomID uuid.UUID) (*models.Device, error)
	PairWithCode(ctx context.Context, roomID uuid.UUID, deviceToken, code string) (*models.Device, error)
	GenerateTeamPairingCode(ctx context.Context, roomID, teamID uuid.UUID) (*models.TeamPairingCode, error)
	ClearAllPairings(ctx context.Context, roomID uuid.UUID) (int, error)
	TouchDevice(ctx context.Context, deviceToken string) (*models.Device, error)
}

// Dispatcher routes client messages into the apps. State changes reach
// clients through the outbox; the dispatcher itself only replies with
// snapshots, pairing confirmations and errors.
type Dispatcher struct {
	rooms   RoomApp
	rounds  RoundApp
	pairing PairingApp
	cm      *ConnectionManager
}

// NewDispatcher creates a dispatcher. Attach it to a manager with SetManager.
func NewDispatcher(rooms RoomApp, rounds RoundApp, pairing PairingApp) *Dispatcher {
	return &Dispatcher{
		rooms:   rooms,
		rounds:  rounds,
		pairing: pairing,
	}
}

// SetManager sets the manager replies are sent through
func (d *Dispatcher) SetManager(cm *ConnectionManager) {
	d.cm = cm
}

// Handle decodes and executes one client message. Failures are sent back to
// the originating connection as an error event.
func (d *Dispatcher) Handle(ctx context.Context, c *Connection, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		d.replyError(c, "", apperr.Validationf("malformed message"))
		return
	}

	var roomCode string
	var err error
	switch msg.Type {
	case MessageJoinRoom:
		var data JoinRoomData
		if err = decode(msg.Data, &data); err == nil {
			roomCode = data.RoomCode
			err = d.joinRoom(ctx, c, data)
		}
	case MessageHostAction:
		var data HostActionData
		if err = decode(msg.Data, &data); err == nil {
			roomCode = data.RoomCode
			err = d.hostAction(ctx, data)
		}
	case MessageSubmitRanking:
		var data SubmitRankingData
		if err = decode(msg.Data, &data); err == nil {
			roomCode = data.RoomCode
			err = d.submitRanking(ctx, data)
		}
	case MessagePairDevice:
		var data PairDeviceData
		if err = decode(msg.Data, &data); err == nil {
			roomCode = data.RoomCode
			err = d.pairDevice(ctx, c, data)
		}
	default:
		err = apperr.Validationf("unknown message type %q", msg.Type)
	}

	if err != nil {
		logRejected(c, msg.Type, roomCode, err)
		d.replyError(c, normalizeCode(roomCode), err)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperr.Validationf("message data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Validationf("malformed message data")
	}
	return nil
}

func logRejected(c *Connection, t MessageType, roomCode string, err error) {
	evt := log.Debug()
	switch apperr.KindOf(err) {
	case apperr.KindAuthorization:
		evt = log.Warn()
	case apperr.KindStorage:
		evt = log.Error()
	}
	evt.Err(err).
		Str("connection_id", c.ID).
		Str("message_type", string(t)).
		Str("room_code", roomCode).
		Str("kind", string(apperr.KindOf(err))).
		Msg("client message rejected")
}

func (d *Dispatcher) replyError(c *Connection, roomCode string, err error) {
	event, buildErr := NewRoomEvent(roomCode, events.TypeError, events.ErrorPayload{
		Message: apperr.PublicMessage(err),
		Kind:    string(apperr.KindOf(err)),
	})
	if buildErr != nil {
		log.Error().Err(buildErr).Msg("failed to build error event")
		return
	}
	d.cm.SendTo(c, event)
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Connection, data JoinRoomData) error {
	code := normalizeCode(data.RoomCode)
	if code == "" {
		return apperr.Validationf("room code is required")
	}
	if _, err := d.rooms.GetRoom(ctx, code); err != nil {
		return err
	}
	if _, err := d.pairing.TouchDevice(ctx, data.DeviceToken); err != nil {
		return err
	}
	// Snapshot after subscribing so no committed change falls between the two
	count := d.cm.Join(c, code, data.DeviceToken)
	snapshot, err := d.rooms.Snapshot(ctx, code)
	if err != nil {
		return err
	}
	snapshot.ConnectionCount = count

	event, err := NewRoomEvent(code, events.TypeRoomState, snapshot)
	if err != nil {
		return err
	}
	d.cm.SendTo(c, event)
	return nil
}

func (d *Dispatcher) hostAction(ctx context.Context, data HostActionData) error {
	if data.HostToken == "" {
		return apperr.Unauthorizedf("host token is required")
	}
	// Verified on every action, never remembered per connection
	room, err := d.rooms.VerifyHost(ctx, data.RoomCode, data.HostToken)
	if err != nil {
		return err
	}

	log.Info().
		Str("room_code", room.Code).
		Str("action", string(data.Action)).
		Msg("host action")

	switch data.Action {
	case ActionAddParticipant:
		var p addParticipantPayload
		if err := decode(data.Payload, &p); err != nil {
			return err
		}
		_, err = d.rooms.AddParticipant(ctx, room.ID, rooms.ParticipantInput{
			Name:      p.Name,
			AvatarURL: p.AvatarURL,
			IsGuest:   p.IsGuest,
		})
	case ActionUpdateParticipant:
		var p updateParticipantPayload
		if err := decode(data.Payload, &p); err != nil {
			return err
		}
		id, err := rpcutil.ParseID("participantId", p.ParticipantID)
		if err != nil {
			return err
		}
		_, err = d.rooms.UpdateParticipant(ctx, room.ID, rooms.UpdateParticipantRequest{
			ParticipantID: id,
			Name:          p.Name,
			AvatarURL:     p.AvatarURL,
			IsGuest:       p.IsGuest,
		})
		return err
	case ActionDeleteParticipant:
		var p participantPayload
		if err := decode(data.Payload, &p); err != nil {
			return err
		}
		id, err := rpcutil.ParseID("participantId", p.ParticipantID)
		if err != nil {
			return err
		}
		return d.rooms.DeleteParticipant(ctx, room.ID, id)
	case ActionLockRoster, ActionLockTeams, ActionLockPreEvent:
		locked, err := lockValue(data.Payload)
		if err != nil {
			return err
		}
		switch data.Action {
		case ActionLockRoster:
			_, err = d.rooms.SetRosterLocked(ctx, room.ID, locked)
		case ActionLockTeams:
			_, err = d.rooms.SetTeamsLocked(ctx, room.ID, locked)
		default:
			_, err = d.rooms.SetPreEventLocked(ctx, room.ID, locked)
		}
		return err
	case ActionOpenPreEvent:
		_, err = d.rooms.OpenPreEvent(ctx, room.ID)
	case ActionGenerateTeamPairingCode:
		var p teamPayload
		if err := decode(data.Payload, &p); err != nil {
			return err
		}
		teamID, err := rpcutil.ParseID("teamId", p.TeamID)
		if err != nil {
			return err
		}
		_, err = d.pairing.GenerateTeamPairingCode(ctx, room.ID, teamID)
		return err
	case ActionStartRound:
		return d.startRound(ctx, room, data.Payload)
	case ActionCloseRound:
		round, err := d.targetRound(ctx, room, data.Payload)
		if err != nil {
			return err
		}
		_, err = d.rounds.CloseRound(ctx, round.ID)
		return err
	case ActionRevealResults:
		round, err := d.targetRound(ctx, room, data.Payload)
		if err != nil {
			return err
		}
		_, err = d.rounds.CloseAndReveal(ctx, round.ID)
		return err
	case ActionResetRounds:
		_, err = d.rounds.ResetRounds(ctx, room.ID)
	case ActionClearPairings:
		_, err = d.pairing.ClearAllPairings(ctx, room.ID)
	default:
		return apperr.Validationf("unknown host action %q", data.Action)
	}
	return err
}

// lockValue reads a lock action payload. No payload locks; one that does
// not decode is rejected so a mistyped flag never flips a lock.
func lockValue(raw json.RawMessage) (bool, error) {
	var p lockPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return false, apperr.Validationf("malformed message data")
		}
	}
	return p.value(), nil
}

func (d *Dispatcher) startRound(ctx context.Context, room *models.Room, raw json.RawMessage) error {
	var p startRoundPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	req := rounds.StartRoundRequest{
		RoomID:      room.ID,
		RoundNumber: p.RoundNumber,
		Mode:        p.Mode,
	}
	if p.QuestionID != "" {
		id, err := rpcutil.ParseID("questionId", p.QuestionID)
		if err != nil {
			return err
		}
		req.QuestionID = id
	}
	_, err := d.rounds.StartRound(ctx, req)
	return err
}

// targetRound resolves the round of a close or reveal action: the one named
// in the payload, else the newest round that is not revealed yet.
func (d *Dispatcher) targetRound(ctx context.Context, room *models.Room, raw json.RawMessage) (*models.Round, error) {
	var p roundPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, apperr.Validationf("malformed message data")
		}
	}
	roundID := uuid.Nil
	if p.RoundID != "" {
		id, err := rpcutil.ParseID("roundId", p.RoundID)
		if err != nil {
			return nil, err
		}
		roundID = id
	}
	return d.rounds.RevealTarget(ctx, room.ID, roundID)
}

func (d *Dispatcher) submitRanking(ctx context.Context, data SubmitRankingData) error {
	room, err := d.rooms.GetRoom(ctx, data.RoomCode)
	if err != nil {
		return err
	}
	roundID, err := rpcutil.ParseID("roundId", data.RoundID)
	if err != nil {
		return err
	}
	round, err := d.rounds.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.RoomID != room.ID {
		return apperr.NotFoundf("round not found")
	}

	req := rounds.SubmitRequest{
		RoundID:     round.ID,
		DeviceToken: data.DeviceToken,
		Ranking:     data.Rankings.Ranking(),
	}
	switch {
	case data.TeamID != "" && data.ParticipantID != "":
		return apperr.Validationf("submit for a team or a participant, not both")
	case data.TeamID != "":
		req.Kind = models.SubmitterTeam
		req.SubmitterID, err = rpcutil.ParseID("teamId", data.TeamID)
	case data.ParticipantID != "":
		req.Kind = models.SubmitterIndividual
		req.SubmitterID, err = rpcutil.ParseID("participantId", data.ParticipantID)
	default:
		return apperr.Validationf("teamId or participantId is required")
	}
	if err != nil {
		return err
	}
	_, err = d.rounds.SubmitRanking(ctx, req)
	return err
}

func (d *Dispatcher) pairDevice(ctx context.Context, c *Connection, data PairDeviceData) error {
	room, err := d.rooms.GetRoom(ctx, data.RoomCode)
	if err != nil {
		return err
	}

	var device *models.Device
	switch {
	case data.PairingCode != "":
		device, err = d.pairing.PairWithCode(ctx, room.ID, data.DeviceToken, data.PairingCode)
	case data.TeamID != "":
		teamID, parseErr := rpcutil.ParseID("teamId", data.TeamID)
		if parseErr != nil {
			return parseErr
		}
		device, err = d.pairing.PairDeviceToTeam(ctx, data.DeviceToken, teamID, room.ID)
	case data.ParticipantID != "":
		participantID, parseErr := rpcutil.ParseID("participantId", data.ParticipantID)
		if parseErr != nil {
			return parseErr
		}
		device, err = d.pairing.PairDeviceToParticipant(ctx, data.DeviceToken, participantID, room.ID)
	default:
		return apperr.Validationf("pairingCode, teamId or participantId is required")
	}
	if err != nil {
		return err
	}

	// The device's own connection learns its assignment without waiting for
	// the relayed room broadcast.
	d.cm.BindDevice(c, data.DeviceToken)
	event, err := NewRoomEvent(room.Code, events.TypeDevicePaired, events.DevicePairedPayload{Device: *device})
	if err != nil {
		return err
	}
	d.cm.SendTo(c, event)
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
