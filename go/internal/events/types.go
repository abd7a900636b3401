// Package events names the realtime events and builds outbox rows for them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// Type is the wire name of a server to client event.
type Type string

const (
	TypeRoomState          Type = "room-state"
	TypeParticipantAdded   Type = "participant-added"
	TypeParticipantUpdated Type = "participant-updated"
	TypeParticipantDeleted Type = "participant-deleted"
	TypeRosterLocked       Type = "roster-locked"
	TypeTeamsLocked        Type = "teams-locked"
	TypeTeamsUpdated       Type = "teams-updated"
	TypePreEventLocked     Type = "pre-event-locked"
	TypeGameStateUpdated   Type = "game-state-updated"
	TypeRoundStarted       Type = "round-started"
	TypeRoundClosed        Type = "round-closed"
	TypeRoundRevealed      Type = "round-revealed"
	TypeRoundsReset        Type = "rounds-reset"
	TypeGameCompleted      Type = "game-completed"
	TypeDevicesUpdated     Type = "devices-updated"
	TypeDevicePaired       Type = "device-paired"
	TypeSubmissionReceived Type = "submission-received"
	TypeTeamPairingCode    Type = "team-pairing-code"
	TypeConnectionCount    Type = "connection-count"
	TypeError              Type = "error"
)

// Known reports whether t is a server event the gateway may relay.
func Known(t Type) bool {
	switch t {
	case TypeRoomState, TypeParticipantAdded, TypeParticipantUpdated, TypeParticipantDeleted,
		TypeRosterLocked, TypeTeamsLocked, TypeTeamsUpdated, TypeGameStateUpdated, TypePreEventLocked, TypeRoundStarted, TypeRoundClosed,
		TypeRoundRevealed, TypeRoundsReset, TypeGameCompleted, TypeDevicesUpdated, TypeDevicePaired,
		TypeSubmissionReceived, TypeTeamPairingCode, TypeConnectionCount, TypeError:
		return true
	}
	return false
}

// NewOutboxEvent marshals payload into an outbox row for room.
func NewOutboxEvent(room models.Room, t Type, payload any) (models.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return models.OutboxEvent{
		ID:        uuid.New(),
		RoomID:    room.ID,
		RoomCode:  room.Code,
		EventType: string(t),
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Writer stores outbox rows, normally inside the transaction that made the change.
type Writer interface {
	InsertOutbox(ctx context.Context, event models.OutboxEvent) error
}

// Emit builds an outbox row for room and writes it with w.
func Emit(ctx context.Context, w Writer, room models.Room, t Type, payload any) error {
	event, err := NewOutboxEvent(room, t, payload)
	if err != nil {
		return err
	}
	if err := w.InsertOutbox(ctx, event); err != nil {
		return fmt.Errorf("failed to write %s event: %w", t, err)
	}
	return nil
}
