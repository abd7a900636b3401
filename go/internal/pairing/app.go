// Package pairing binds devices to teams or participants. A team or
// participant has at most one device and a device serves at most one of them.
package pairing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/randcode"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/rs/zerolog/log"
)

// DefaultCodeTTL is how long a team pairing code stays valid
const DefaultCodeTTL = time.Minute

const codeAttempts = 10

// Tx is what the pairing registry needs inside a transaction
type Tx interface {
	rooms.Tx
	LockTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	LockParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	LockDevice(ctx context.Context, token string) (*models.Device, error)
	// GetDeviceByTeam and GetDeviceByParticipant return nil when nothing is paired.
	GetDeviceByTeam(ctx context.Context, teamID uuid.UUID) (*models.Device, error)
	GetDeviceByParticipant(ctx context.Context, participantID uuid.UUID) (*models.Device, error)
	InsertDevice(ctx context.Context, d models.Device) error
	UpdateDevice(ctx context.Context, d models.Device) error
	UnpairRoomDevices(ctx context.Context, roomID uuid.UUID) (int, error)
	// FindReusablePairingCode returns nil when the team has no unused code valid at now.
	FindReusablePairingCode(ctx context.Context, teamID uuid.UUID, now time.Time) (*models.TeamPairingCode, error)
	LockPairingCode(ctx context.Context, code string) (*models.TeamPairingCode, error)
	InsertPairingCode(ctx context.Context, c models.TeamPairingCode) error
	MarkPairingCodeUsed(ctx context.Context, id uuid.UUID) error
}

// Repository defines what the pairing app layer needs from the store
type Repository interface {
	rooms.Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// App is the device pairing registry
type App struct {
	repo    Repository
	clock   clockwork.Clock
	codeTTL time.Duration
}

// NewApp creates a new pairing App
func NewApp(repo Repository, clock clockwork.Clock, codeTTL time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &App{
		repo:    repo,
		clock:   clock,
		codeTTL: codeTTL,
	}
}

// PairDeviceToTeam gives deviceToken exclusive control of teamID. The team row
// is locked for the check and the write, so of two devices racing for an empty
// team exactly one wins and the other gets a StateConflict.
func (a *App) PairDeviceToTeam(ctx context.Context, deviceToken string, teamID, roomID uuid.UUID) (*models.Device, error) {
	if err := validateToken(deviceToken); err != nil {
		return nil, err
	}
	var device *models.Device
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		var err error
		device, err = a.pairTeam(ctx, tx, deviceToken, teamID, roomID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pair device to team: %w", err)
	}
	log.Info().Str("team_id", teamID.String()).Str("device_id", device.ID.String()).Msg("device paired to team")
	return device, nil
}

func (a *App) pairTeam(ctx context.Context, tx Tx, token string, teamID, roomID uuid.UUID) (*models.Device, error) {
	room, err := tx.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.RoomID != room.ID {
		return nil, apperr.NotFoundf("team not found")
	}

	holder, err := tx.GetDeviceByTeam(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	if holder != nil {
		if holder.Token == token {
			return holder, nil
		}
		return nil, apperr.Conflictf("team %s already has a device", team.Name)
	}

	return a.bind(ctx, tx, *room, token, func(d *models.Device) {
		d.TeamID = &team.ID
		d.ParticipantID = nil
	})
}

// PairDeviceToParticipant is PairDeviceToTeam for individual play.
func (a *App) PairDeviceToParticipant(ctx context.Context, deviceToken string, participantID, roomID uuid.UUID) (*models.Device, error) {
	if err := validateToken(deviceToken); err != nil {
		return nil, err
	}
	var device *models.Device
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		p, err := tx.LockParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if p.RoomID != room.ID {
			return apperr.NotFoundf("participant not found")
		}
		holder, err := tx.GetDeviceByParticipant(ctx, p.ID)
		if err != nil {
			return err
		}
		if holder != nil {
			if holder.Token == deviceToken {
				device = holder
				return nil
			}
			return apperr.Conflictf("%s already has a device", p.Name)
		}
		device, err = a.bind(ctx, tx, *room, deviceToken, func(d *models.Device) {
			d.ParticipantID = &p.ID
			d.TeamID = nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pair device to participant: %w", err)
	}
	log.Info().Str("participant_id", participantID.String()).Str("device_id", device.ID.String()).Msg("device paired to participant")
	return device, nil
}

// PairWithCode redeems a team pairing code for deviceToken.
func (a *App) PairWithCode(ctx context.Context, roomID uuid.UUID, deviceToken, code string) (*models.Device, error) {
	if err := validateToken(deviceToken); err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !randcode.Valid(code, randcode.Length) {
		return nil, apperr.Validationf("pairing code must be %d letters or digits", randcode.Length)
	}

	var device *models.Device
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		pc, err := tx.LockPairingCode(ctx, code)
		if err != nil {
			return err
		}
		if pc.RoomID != roomID {
			return apperr.NotFoundf("pairing code not found")
		}
		if pc.Used {
			return apperr.Conflictf("pairing code was already used")
		}
		if !a.clock.Now().Before(pc.ExpiresAt) {
			return apperr.Conflictf("pairing code expired")
		}
		device, err = a.pairTeam(ctx, tx, deviceToken, pc.TeamID, roomID)
		if err != nil {
			return err
		}
		return tx.MarkPairingCodeUsed(ctx, pc.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pair device with code: %w", err)
	}
	return device, nil
}

// bind creates or repoints the device of token in room and emits the device events.
func (a *App) bind(ctx context.Context, tx Tx, room models.Room, token string, assign func(*models.Device)) (*models.Device, error) {
	now := a.clock.Now().UTC()
	device, err := tx.LockDevice(ctx, token)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		device = &models.Device{
			ID:         uuid.New(),
			RoomID:     room.ID,
			Token:      token,
			LastSeenAt: now,
			CreatedAt:  now,
		}
		assign(device)
		if err := tx.InsertDevice(ctx, *device); err != nil {
			return nil, conflictOnDuplicate(err)
		}
	case err != nil:
		return nil, err
	default:
		previousRoom := device.RoomID
		device.RoomID = room.ID
		device.LastSeenAt = now
		assign(device)
		if err := tx.UpdateDevice(ctx, *device); err != nil {
			return nil, conflictOnDuplicate(err)
		}
		if previousRoom != room.ID {
			if old, err := tx.GetRoom(ctx, previousRoom); err == nil {
				if err := emitDevices(ctx, tx, *old, "moved"); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := events.Emit(ctx, tx, room, events.TypeDevicePaired, events.DevicePairedPayload{Device: *device}); err != nil {
		return nil, err
	}
	if err := emitDevices(ctx, tx, room, "paired"); err != nil {
		return nil, err
	}
	return device, nil
}

// UnpairDevice clears the pairing of deviceToken. Unknown or unpaired devices are a no-op.
func (a *App) UnpairDevice(ctx context.Context, deviceToken string) error {
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		device, err := tx.LockDevice(ctx, deviceToken)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return a.clear(ctx, tx, device, "unpaired")
	})
	if err != nil {
		return fmt.Errorf("failed to unpair device: %w", err)
	}
	return nil
}

// UnpairTeam clears whatever device is paired to teamID.
func (a *App) UnpairTeam(ctx context.Context, teamID uuid.UUID) error {
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.LockTeam(ctx, teamID); err != nil {
			return err
		}
		device, err := tx.GetDeviceByTeam(ctx, teamID)
		if err != nil || device == nil {
			return err
		}
		return a.clear(ctx, tx, device, "team-unpaired")
	})
	if err != nil {
		return fmt.Errorf("failed to unpair team: %w", err)
	}
	log.Info().Str("team_id", teamID.String()).Msg("team unpaired")
	return nil
}

func (a *App) clear(ctx context.Context, tx Tx, device *models.Device, reason string) error {
	if device.TeamID == nil && device.ParticipantID == nil {
		return nil
	}
	device.TeamID = nil
	device.ParticipantID = nil
	device.LastSeenAt = a.clock.Now().UTC()
	if err := tx.UpdateDevice(ctx, *device); err != nil {
		return err
	}
	room, err := tx.GetRoom(ctx, device.RoomID)
	if err != nil {
		return err
	}
	return emitDevices(ctx, tx, *room, reason)
}

// ClearAllPairings unpairs every device of the room and returns how many were paired.
func (a *App) ClearAllPairings(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		n, err = tx.UnpairRoomDevices(ctx, roomID)
		if err != nil {
			return err
		}
		return emitDevices(ctx, tx, *room, "cleared")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear pairings: %w", err)
	}
	log.Info().Str("room_id", roomID.String()).Int("unpaired", n).Msg("cleared all pairings")
	return n, nil
}

// GenerateTeamPairingCode returns a code a device can redeem to claim the
// team. An unused code that has not expired is handed out again.
func (a *App) GenerateTeamPairingCode(ctx context.Context, roomID, teamID uuid.UUID) (*models.TeamPairingCode, error) {
	var pc *models.TeamPairingCode
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.RoomID != room.ID {
			return apperr.NotFoundf("team not found")
		}

		now := a.clock.Now().UTC()
		pc, err = tx.FindReusablePairingCode(ctx, team.ID, now)
		if err != nil {
			return err
		}
		if pc == nil {
			code, err := a.freeCode(ctx, tx)
			if err != nil {
				return err
			}
			pc = &models.TeamPairingCode{
				ID:        uuid.New(),
				RoomID:    room.ID,
				TeamID:    team.ID,
				Code:      code,
				ExpiresAt: now.Add(a.codeTTL),
				CreatedAt: now,
			}
			if err := tx.InsertPairingCode(ctx, *pc); err != nil {
				return err
			}
		}
		return events.Emit(ctx, tx, *room, events.TypeTeamPairingCode, events.TeamPairingCodePayload{
			TeamID:    team.ID,
			Code:      pc.Code,
			ExpiresAt: pc.ExpiresAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pairing code: %w", err)
	}
	return pc, nil
}

func (a *App) freeCode(ctx context.Context, tx Tx) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randcode.New(randcode.Length)
		if err != nil {
			return "", err
		}
		_, err = tx.LockPairingCode(ctx, code)
		if apperr.Is(err, apperr.KindNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", apperr.Conflictf("could not allocate a free pairing code")
}

// TouchDevice records that deviceToken was seen. Unknown devices return nil.
func (a *App) TouchDevice(ctx context.Context, deviceToken string) (*models.Device, error) {
	if deviceToken == "" {
		return nil, nil
	}
	var device *models.Device
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		d, err := tx.LockDevice(ctx, deviceToken)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		d.LastSeenAt = a.clock.Now().UTC()
		device = d
		return tx.UpdateDevice(ctx, *d)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to touch device: %w", err)
	}
	return device, nil
}

// ListDevices lists the devices of a room
func (a *App) ListDevices(ctx context.Context, roomID uuid.UUID) ([]models.Device, error) {
	devices, err := a.repo.ListDevices(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// GetDevice retrieves a device by token
func (a *App) GetDevice(ctx context.Context, deviceToken string) (*models.Device, error) {
	device, err := a.repo.GetDeviceByToken(ctx, deviceToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func emitDevices(ctx context.Context, tx Tx, room models.Room, reason string) error {
	devices, err := tx.ListDevices(ctx, room.ID)
	if err != nil {
		return err
	}
	return events.Emit(ctx, tx, room, events.TypeDevicesUpdated, events.DevicesUpdatedPayload{
		Reason:  reason,
		Devices: devices,
	})
}

// conflictOnDuplicate reports a lost race on the one-device-per-team index as a pairing conflict.
func conflictOnDuplicate(err error) error {
	if apperr.Is(err, apperr.KindStateConflict) {
		return apperr.Conflictf("team or participant already has a device")
	}
	return err
}

func validateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Validationf("device token is required")
	}
	if len(token) > 128 {
		return apperr.Validationf("device token is too long")
	}
	return nil
}
