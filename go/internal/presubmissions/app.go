package presubmissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/scoring"
	"github.com/rs/zerolog/log"
)

// Tx is what the pre-submission app layer needs inside a transaction
type Tx interface {
	rooms.Tx
	ListPreSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.PreSubmission, error)
	DeletePreSubmissions(ctx context.Context, participantID uuid.UUID, questionIDs []uuid.UUID) error
	InsertPreSubmission(ctx context.Context, s models.PreSubmission) error
}

// Repository defines what the app layer needs from the repository
type Repository interface {
	rooms.Reader
	ListPreSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.PreSubmission, error)
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// App handles pre-event ranking business logic
type App struct {
	repo  Repository
	clock clockwork.Clock
}

// NewApp creates a new pre-submission App
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// Save replaces the participant's rankings for the given questions. Existing
// rows are deleted and the new ones inserted in one transaction.
func (a *App) Save(ctx context.Context, req SaveRequest) ([]models.PreSubmission, error) {
	if req.InviteToken == "" {
		return nil, apperr.Unauthorizedf("invite token is required")
	}
	if len(req.Entries) == 0 {
		return nil, apperr.Validationf("no rankings to save")
	}

	var saved []models.PreSubmission
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, participant, err := a.resolveInvite(ctx, tx, req.RoomCode, req.InviteToken)
		if err != nil {
			return err
		}
		room, err = tx.LockRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		if room.PreEventLocked {
			return apperr.Conflictf("pre-event submissions are locked")
		}

		saved, err = a.replace(ctx, tx, *room, *participant, req.Entries, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save pre-submissions: %w", err)
	}

	log.Info().
		Str("room_code", req.RoomCode).
		Int("count", len(saved)).
		Msg("saved pre-submissions")
	return saved, nil
}

// AdminSave stores one ranking on behalf of a participant found by name.
// The pre-event lock does not apply to the host.
func (a *App) AdminSave(ctx context.Context, req AdminSaveRequest) (*models.PreSubmission, error) {
	name := strings.TrimSpace(req.ParticipantName)
	if name == "" {
		return nil, apperr.Validationf("participant name is required")
	}

	var saved []models.PreSubmission
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		participants, err := tx.ListParticipants(ctx, room.ID)
		if err != nil {
			return err
		}
		var participant *models.Participant
		for i := range participants {
			if strings.EqualFold(participants[i].Name, name) {
				participant = &participants[i]
				break
			}
		}
		if participant == nil {
			return apperr.NotFoundf("participant %q not found", name)
		}

		saved, err = a.replace(ctx, tx, *room, *participant, []Entry{{QuestionID: req.QuestionID, Ranking: req.Ranking}}, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save pre-submission: %w", err)
	}
	return &saved[0], nil
}

// replace validates entries and swaps the participant's stored rankings.
// excludeSelf forbids a participant from ranking themselves.
func (a *App) replace(ctx context.Context, tx Tx, room models.Room, participant models.Participant, entries []Entry, excludeSelf bool) ([]models.PreSubmission, error) {
	questions, err := tx.ListQuestions(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	participants, err := tx.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	seen := make(map[uuid.UUID]bool)
	questionIDs := make([]uuid.UUID, 0, len(entries))
	subs := make([]models.PreSubmission, 0, len(entries))
	for _, e := range entries {
		q, ok := byID[e.QuestionID]
		if !ok {
			return nil, apperr.Validationf("question %s is not in this room", e.QuestionID)
		}
		if seen[e.QuestionID] {
			return nil, apperr.Validationf("question %s appears more than once", e.QuestionID)
		}
		seen[e.QuestionID] = true

		choices := scoring.Choices(q, participants)
		if excludeSelf && !q.HasFixedOptions() {
			delete(choices, participant.ID.String())
		}
		if err := scoring.ValidateRanking(e.Ranking, choices); err != nil {
			return nil, fmt.Errorf("question %q: %w", q.Text, err)
		}

		questionIDs = append(questionIDs, q.ID)
		subs = append(subs, models.PreSubmission{
			ID:            uuid.New(),
			RoomID:        room.ID,
			ParticipantID: participant.ID,
			QuestionID:    q.ID,
			Ranking:       e.Ranking,
			CreatedAt:     now,
		})
	}

	if err := tx.DeletePreSubmissions(ctx, participant.ID, questionIDs); err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := tx.InsertPreSubmission(ctx, s); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// Progress returns the participant's saved rankings and the questions to answer
func (a *App) Progress(ctx context.Context, roomCode, inviteToken string) (*Progress, error) {
	room, participant, err := a.resolveInvite(ctx, a.repo, roomCode, inviteToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load pre-submissions: %w", err)
	}
	subs, err := a.repo.ListPreSubmissionsByParticipant(ctx, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pre-submissions: %w", err)
	}
	questions, err := a.repo.ListQuestions(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return &Progress{
		Participant: *participant,
		Submissions: subs,
		Questions:   questions,
		Locked:      room.PreEventLocked,
	}, nil
}

func (a *App) resolveInvite(ctx context.Context, r rooms.Reader, roomCode, inviteToken string) (*models.Room, *models.Participant, error) {
	room, err := r.GetRoomByCode(ctx, strings.ToUpper(strings.TrimSpace(roomCode)))
	if err != nil {
		return nil, nil, err
	}
	participant, err := r.GetParticipantByInviteToken(ctx, inviteToken)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil, apperr.Unauthorizedf("invalid invite token")
	}
	if err != nil {
		return nil, nil, err
	}
	if participant.RoomID != room.ID {
		return nil, nil, apperr.Unauthorizedf("invalid invite token")
	}
	return room, participant, nil
}
