package teams

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/rs/zerolog/log"
)

const maxTeamNameLength = 50

// Tx is what the team app layer needs inside a transaction
type Tx interface {
	rooms.Tx
	InsertTeam(ctx context.Context, team models.Team) error
	DeleteTeam(ctx context.Context, id uuid.UUID) error
}

// Repository defines what the app layer needs from the repository
type Repository interface {
	rooms.Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// App handles teams business logic
type App struct {
	repo  Repository
	clock clockwork.Clock
}

// NewApp creates a new teams App
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// CreateTeam creates a team of exactly two non-host participants who are not
// on another team yet.
func (a *App) CreateTeam(ctx context.Context, req CreateTeamRequest) (*models.Team, error) {
	if err := a.validateCreateTeamRequest(&req); err != nil {
		return nil, err
	}

	team := models.Team{
		ID:        uuid.New(),
		RoomID:    req.RoomID,
		Name:      req.Name,
		MemberIDs: req.ParticipantIDs,
		CreatedAt: a.clock.Now().UTC(),
	}

	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		if room.TeamsLocked {
			return apperr.Conflictf("teams are locked")
		}

		for _, pid := range req.ParticipantIDs {
			p, err := tx.GetParticipant(ctx, pid)
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validationf("participant %s not found", pid)
			}
			if err != nil {
				return err
			}
			if p.RoomID != req.RoomID {
				return apperr.Validationf("participant %s is not in this room", pid)
			}
			if p.IsHost {
				return apperr.Validationf("host %s cannot join a team", p.Name)
			}
		}

		existing, err := tx.ListTeams(ctx, req.RoomID)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if strings.EqualFold(t.Name, req.Name) {
				return apperr.Conflictf("team %q already exists", req.Name)
			}
			for _, pid := range req.ParticipantIDs {
				if t.HasMember(pid) {
					return apperr.Conflictf("participant %s is already on team %s", pid, t.Name)
				}
			}
		}

		if err := tx.InsertTeam(ctx, team); err != nil {
			return err
		}
		return a.emitTeams(ctx, tx, *room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	log.Info().Str("team", team.Name).Str("room_id", req.RoomID.String()).Msg("created team")
	return &team, nil
}

// DeleteTeam removes a team while teams are unlocked
func (a *App) DeleteTeam(ctx context.Context, roomID, teamID uuid.UUID) error {
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.TeamsLocked {
			return apperr.Conflictf("teams are locked")
		}
		team, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.RoomID != roomID {
			return apperr.NotFoundf("team not found")
		}
		if err := tx.DeleteTeam(ctx, teamID); err != nil {
			return err
		}
		return a.emitTeams(ctx, tx, *room)
	})
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// ListTeams lists the teams of a room
func (a *App) ListTeams(ctx context.Context, roomID uuid.UUID) ([]models.Team, error) {
	teams, err := a.repo.ListTeams(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (a *App) emitTeams(ctx context.Context, tx Tx, room models.Room) error {
	teams, err := tx.ListTeams(ctx, room.ID)
	if err != nil {
		return err
	}
	return events.Emit(ctx, tx, room, events.TypeTeamsUpdated, events.TeamsUpdatedPayload{Teams: teams})
}

func (a *App) validateCreateTeamRequest(req *CreateTeamRequest) error {
	if req.RoomID == uuid.Nil {
		return apperr.Validationf("room_id is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxTeamNameLength {
		return apperr.Validationf("team name must be 1 to %d characters", maxTeamNameLength)
	}
	if len(req.ParticipantIDs) != models.TeamSize {
		return apperr.Validationf("a team needs exactly %d participants, got %d", models.TeamSize, len(req.ParticipantIDs))
	}
	if req.ParticipantIDs[0] == req.ParticipantIDs[1] {
		return apperr.Validationf("team members must be different participants")
	}
	return nil
}
