package rounds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/scoring"
	"github.com/rs/zerolog/log"
)

// Tx is what the round state machine needs inside a transaction
type Tx interface {
	rooms.Tx
	LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetRoundByNumber(ctx context.Context, roomID uuid.UUID, number int) (*models.Round, error)
	// FindActiveRound returns nil when no round of the room is ACTIVE.
	FindActiveRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error)
	InsertRound(ctx context.Context, round models.Round) error
	UpdateRound(ctx context.Context, round models.Round) error
	DeleteRoomRounds(ctx context.Context, roomID uuid.UUID) error
	ListPreSubmissionsByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.PreSubmission, error)
	UpsertSubmission(ctx context.Context, s models.Submission) error
	ListSubmissions(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error)
	ReplaceRoundScores(ctx context.Context, roundID uuid.UUID, scores []models.RoundScore) error
	ListRevealedRoundScores(ctx context.Context, roomID uuid.UUID) ([]models.RoundScore, error)
	ReplaceAggregates(ctx context.Context, roomID uuid.UUID, aggregates []models.AggregateScore) error
}

// Repository defines what the round app layer needs from the store
type Repository interface {
	rooms.Reader
	ListAggregates(ctx context.Context, roomID uuid.UUID) ([]models.AggregateScore, error)
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// App is the round state machine. It is the only writer of round and room status
// once the event is live.
type App struct {
	repo     Repository
	clock    clockwork.Clock
	advancer *AutoAdvancer
}

// NewApp creates a new round App
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// EnableAutoAdvance makes every reveal that leaves a WAITING round schedule
// its start after delay. A delay of zero leaves auto advance off.
func (a *App) EnableAutoAdvance(delay time.Duration) *AutoAdvancer {
	a.advancer = NewAutoAdvancer(a, a.clock, delay)
	return a.advancer
}

// StartRound activates a round: a new one, the pre-created WAITING one, or a
// CLOSED one that is reopened. The room row is locked for the whole check and
// write, so concurrent starts in one room serialize and at most one round is
// ACTIVE.
func (a *App) StartRound(ctx context.Context, req StartRoundRequest) (*models.Round, error) {
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, apperr.Validationf("unknown play mode %q", req.Mode)
	}

	var round models.Round
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		if room.Status == models.RoomStatusCompleted {
			return apperr.Conflictf("game is completed")
		}
		active, err := tx.FindActiveRound(ctx, room.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflictf("round %d is already active", active.RoundNumber)
		}

		questions, err := tx.ListQuestions(ctx, room.ID)
		if err != nil {
			return err
		}
		if req.RoundNumber < 1 || req.RoundNumber > len(questions) {
			return apperr.Validationf("round number %d out of range 1..%d", req.RoundNumber, len(questions))
		}
		if req.RoundNumber-1 < room.CurrentRoundIndex {
			return apperr.Conflictf("round %d is behind the current round %d", req.RoundNumber, room.CurrentRoundIndex+1)
		}
		question, err := resolveQuestion(questions, req)
		if err != nil {
			return err
		}
		if err := rooms.ValidateTransition(room.Status, models.RoomStatusLiveEvent); err != nil {
			return err
		}

		now := a.clock.Now().UTC()
		mode := req.Mode
		if mode == "" {
			mode = room.PlayMode
		}

		existing, err := tx.GetRoundByNumber(ctx, room.ID, req.RoundNumber)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			round = models.Round{
				ID:          uuid.New(),
				RoomID:      room.ID,
				QuestionID:  question.ID,
				RoundNumber: req.RoundNumber,
				Status:      models.RoundStatusActive,
				Mode:        mode,
				StartedAt:   &now,
				CreatedAt:   now,
			}
			if err := tx.InsertRound(ctx, round); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if existing.QuestionID != question.ID {
				return apperr.Conflictf("round %d is already bound to another question", req.RoundNumber)
			}
			if err := ValidateTransition(existing.Status, models.RoundStatusActive); err != nil {
				return err
			}
			// the submitter kind is fixed once a round has been played
			if existing.Status == models.RoundStatusWaiting {
				existing.Mode = mode
			}
			existing.Status = models.RoundStatusActive
			existing.StartedAt = &now
			existing.ClosedAt = nil
			if err := tx.UpdateRound(ctx, *existing); err != nil {
				return err
			}
			round = *existing
		}

		room.Status = models.RoomStatusLiveEvent
		room.CurrentRoundIndex = req.RoundNumber - 1
		room.UpdatedAt = now
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeRoundStarted, events.RoundStartedPayload{Round: round, Question: question})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start round: %w", err)
	}
	if a.advancer != nil {
		a.advancer.Cancel(req.RoomID)
	}

	log.Info().
		Str("room_id", req.RoomID.String()).
		Int("round", round.RoundNumber).
		Str("mode", string(round.Mode)).
		Msg("round started")
	return &round, nil
}

// StartNextRound starts the lowest numbered WAITING round of the room.
func (a *App) StartNextRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error) {
	rounds, err := a.repo.ListRounds(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	for _, r := range rounds {
		if r.Status == models.RoundStatusWaiting {
			return a.StartRound(ctx, StartRoundRequest{RoomID: roomID, QuestionID: r.QuestionID, RoundNumber: r.RoundNumber})
		}
	}
	return nil, apperr.Conflictf("no waiting round to start")
}

func resolveQuestion(questions []models.Question, req StartRoundRequest) (models.Question, error) {
	if req.QuestionID == uuid.Nil {
		return questions[req.RoundNumber-1], nil
	}
	for _, q := range questions {
		if q.ID == req.QuestionID {
			return q, nil
		}
	}
	return models.Question{}, apperr.Validationf("question %s is not in this room", req.QuestionID)
}

// CloseRound stops accepting submissions for an ACTIVE round.
func (a *App) CloseRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	var round *models.Round
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, locked, err := lockRoundAndRoom(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(locked.Status, models.RoundStatusClosed); err != nil {
			return err
		}
		now := a.clock.Now().UTC()
		locked.Status = models.RoundStatusClosed
		locked.ClosedAt = &now
		if err := tx.UpdateRound(ctx, *locked); err != nil {
			return err
		}
		round = locked
		return events.Emit(ctx, tx, *room, events.TypeRoundClosed, events.RoundClosedPayload{Round: *locked})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close round: %w", err)
	}
	log.Info().Str("round_id", roundID.String()).Int("round", round.RoundNumber).Msg("round closed")
	return round, nil
}

// RevealRound scores a CLOSED round and updates the standings in one
// transaction. The status check under the round lock makes a second reveal
// fail with a StateConflict before anything is recomputed.
func (a *App) RevealRound(ctx context.Context, roundID uuid.UUID) (*RevealResult, error) {
	var result *RevealResult
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, round, err := lockRoundAndRoom(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(round.Status, models.RoundStatusRevealed); err != nil {
			return err
		}

		question, err := tx.GetQuestion(ctx, round.QuestionID)
		if err != nil {
			return err
		}
		pres, err := tx.ListPreSubmissionsByQuestion(ctx, question.ID)
		if err != nil {
			return err
		}
		rankings := make([]models.Ranking, len(pres))
		for i, p := range pres {
			rankings[i] = p.Ranking
		}
		top := scoring.AggregateCommunityRanking(rankings)

		kind := models.SubmitterKindFor(round.Mode)
		subs, err := tx.ListSubmissions(ctx, round.ID)
		if err != nil {
			return err
		}
		scores := make([]models.RoundScore, 0, len(subs))
		for _, s := range subs {
			if s.Kind != kind {
				continue
			}
			scores = append(scores, models.RoundScore{
				RoundID:     round.ID,
				Kind:        s.Kind,
				SubmitterID: s.SubmitterID,
				Points:      scoring.ScoreSubmission(s.Ranking, top),
			})
		}
		if err := tx.ReplaceRoundScores(ctx, round.ID, scores); err != nil {
			return err
		}

		now := a.clock.Now().UTC()
		round.Status = models.RoundStatusRevealed
		round.RevealedAt = &now
		round.Community = top
		if err := tx.UpdateRound(ctx, *round); err != nil {
			return err
		}

		participants, err := tx.ListParticipants(ctx, room.ID)
		if err != nil {
			return err
		}
		teams, err := tx.ListTeams(ctx, room.ID)
		if err != nil {
			return err
		}
		revealed, err := tx.ListRevealedRoundScores(ctx, room.ID)
		if err != nil {
			return err
		}
		standings := Standings(room.ID, round.RoundNumber, kind, revealed, teams, participants)
		if err := tx.ReplaceAggregates(ctx, room.ID, standings); err != nil {
			return err
		}

		result = &RevealResult{
			Round:         *round,
			CommunityTop3: communityEntries(top, rankings, participants),
			Scores:        scores,
			Standings:     standings,
		}

		questions, err := tx.ListQuestions(ctx, room.ID)
		if err != nil {
			return err
		}
		if round.RoundNumber >= len(questions) {
			if room.Status != models.RoomStatusCompleted {
				if err := rooms.ValidateTransition(room.Status, models.RoomStatusCompleted); err != nil {
					return err
				}
				room.Status = models.RoomStatusCompleted
			}
			result.GameCompleted = true
		} else {
			next, err := a.ensureNextRound(ctx, tx, *room, questions[round.RoundNumber], round.RoundNumber+1, now)
			if err != nil {
				return err
			}
			result.NextRound = next
		}

		room.UpdatedAt = now
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		if err := events.Emit(ctx, tx, *room, events.TypeRoundRevealed, events.RoundRevealedPayload{
			Round:         result.Round,
			CommunityTop3: result.CommunityTop3,
			Scores:        result.Scores,
			Standings:     result.Standings,
		}); err != nil {
			return err
		}
		if result.GameCompleted {
			return events.Emit(ctx, tx, *room, events.TypeGameCompleted, events.GameCompletedPayload{Standings: standings})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reveal round: %w", err)
	}
	if result.NextRound != nil && result.NextRound.Status == models.RoundStatusWaiting && a.advancer.Enabled() {
		a.advancer.Schedule(result.Round.RoomID)
	}

	log.Info().
		Str("round_id", roundID.String()).
		Int("round", result.Round.RoundNumber).
		Int("scores", len(result.Scores)).
		Bool("game_completed", result.GameCompleted).
		Msg("round revealed")
	return result, nil
}

// CloseAndReveal reveals a round, closing it first if it is still ACTIVE.
func (a *App) CloseAndReveal(ctx context.Context, roundID uuid.UUID) (*RevealResult, error) {
	round, err := a.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status == models.RoundStatusActive {
		if _, err := a.CloseRound(ctx, roundID); err != nil {
			return nil, err
		}
	}
	return a.RevealRound(ctx, roundID)
}

// ensureNextRound pre-creates the following round in WAITING unless it exists.
func (a *App) ensureNextRound(ctx context.Context, tx Tx, room models.Room, question models.Question, number int, now time.Time) (*models.Round, error) {
	next, err := tx.GetRoundByNumber(ctx, room.ID, number)
	if err == nil {
		return next, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	round := models.Round{
		ID:          uuid.New(),
		RoomID:      room.ID,
		QuestionID:  question.ID,
		RoundNumber: number,
		Status:      models.RoundStatusWaiting,
		Mode:        room.PlayMode,
		CreatedAt:   now,
	}
	if err := tx.InsertRound(ctx, round); err != nil {
		return nil, err
	}
	return &round, nil
}

// SubmitRanking stores a live ranking for an ACTIVE round. The device must be
// paired to the submitting team or participant.
func (a *App) SubmitRanking(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	if req.DeviceToken == "" {
		return nil, apperr.Unauthorizedf("device token is required")
	}
	if req.Kind != models.SubmitterTeam && req.Kind != models.SubmitterIndividual {
		return nil, apperr.Validationf("unknown submitter kind %q", req.Kind)
	}

	var sub models.Submission
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		round, err := tx.LockRound(ctx, req.RoundID)
		if err != nil {
			return err
		}
		if round.Status != models.RoundStatusActive {
			return apperr.Conflictf("round %d is %s, submissions are closed", round.RoundNumber, round.Status)
		}
		if want := models.SubmitterKindFor(round.Mode); req.Kind != want {
			return apperr.Conflictf("round %d only accepts %s submissions", round.RoundNumber, want)
		}
		room, err := tx.GetRoom(ctx, round.RoomID)
		if err != nil {
			return err
		}

		if err := checkSubmitter(ctx, tx, *round, req); err != nil {
			return err
		}

		question, err := tx.GetQuestion(ctx, round.QuestionID)
		if err != nil {
			return err
		}
		participants, err := tx.ListParticipants(ctx, round.RoomID)
		if err != nil {
			return err
		}
		if err := scoring.ValidateRanking(req.Ranking, scoring.Choices(*question, participants)); err != nil {
			return err
		}

		sub = models.Submission{
			ID:          uuid.New(),
			RoundID:     round.ID,
			Kind:        req.Kind,
			SubmitterID: req.SubmitterID,
			Ranking:     req.Ranking,
			SubmittedAt: a.clock.Now().UTC(),
		}
		if err := tx.UpsertSubmission(ctx, sub); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeSubmissionReceived, events.SubmissionReceivedPayload{
			RoundID:     round.ID,
			Kind:        sub.Kind,
			SubmitterID: sub.SubmitterID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit ranking: %w", err)
	}
	return &sub, nil
}

func checkSubmitter(ctx context.Context, tx Tx, round models.Round, req SubmitRequest) error {
	device, err := tx.GetDeviceByToken(ctx, req.DeviceToken)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Unauthorizedf("device is not paired")
	}
	if err != nil {
		return err
	}

	switch req.Kind {
	case models.SubmitterTeam:
		team, err := tx.GetTeam(ctx, req.SubmitterID)
		if err != nil {
			return err
		}
		if team.RoomID != round.RoomID {
			return apperr.NotFoundf("team not found")
		}
		if device.TeamID == nil || *device.TeamID != team.ID {
			return apperr.Unauthorizedf("device is not paired to team %s", team.Name)
		}
	default:
		p, err := tx.GetParticipant(ctx, req.SubmitterID)
		if err != nil {
			return err
		}
		if p.RoomID != round.RoomID {
			return apperr.NotFoundf("participant not found")
		}
		if device.ParticipantID == nil || *device.ParticipantID != p.ID {
			return apperr.Unauthorizedf("device is not paired to %s", p.Name)
		}
	}
	return nil
}

// ResetRounds discards every round, submission and score of the room and
// starts a new epoch in PRE_EVENT.
func (a *App) ResetRounds(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room *models.Room
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		var err error
		room, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status == models.RoomStatusSetup {
			return apperr.Conflictf("room has not started")
		}
		if room.Status != models.RoomStatusPreEvent {
			if err := rooms.ValidateTransition(room.Status, models.RoomStatusPreEvent); err != nil {
				return err
			}
		}
		active, err := tx.FindActiveRound(ctx, roomID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflictf("round %d is active, close it before resetting", active.RoundNumber)
		}

		if err := tx.DeleteRoomRounds(ctx, roomID); err != nil {
			return err
		}
		if err := tx.ReplaceAggregates(ctx, roomID, nil); err != nil {
			return err
		}

		room.Status = models.RoomStatusPreEvent
		room.CurrentRoundIndex = 0
		room.Epoch++
		room.UpdatedAt = a.clock.Now().UTC()
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeRoundsReset, events.RoundsResetPayload{Epoch: room.Epoch})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset rounds: %w", err)
	}
	if a.advancer != nil {
		a.advancer.Cancel(roomID)
	}
	log.Info().Str("room_code", room.Code).Int("epoch", room.Epoch).Msg("rounds reset")
	return room, nil
}

// GetRound retrieves a round by ID
func (a *App) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	round, err := a.repo.GetRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// ListRounds lists the rounds of a room by number
func (a *App) ListRounds(ctx context.Context, roomID uuid.UUID) ([]models.Round, error) {
	rounds, err := a.repo.ListRounds(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return rounds, nil
}

// RevealTarget returns the round a reveal-results action refers to: the
// given one, else the newest round that is not revealed yet.
func (a *App) RevealTarget(ctx context.Context, roomID uuid.UUID, roundID uuid.UUID) (*models.Round, error) {
	if roundID != uuid.Nil {
		round, err := a.GetRound(ctx, roundID)
		if err != nil {
			return nil, err
		}
		if round.RoomID != roomID {
			return nil, apperr.NotFoundf("round not found")
		}
		return round, nil
	}
	rounds, err := a.ListRounds(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := len(rounds) - 1; i >= 0; i-- {
		if s := rounds[i].Status; s == models.RoundStatusActive || s == models.RoundStatusClosed {
			return &rounds[i], nil
		}
	}
	return nil, apperr.NotFoundf("no round to reveal")
}

// Scores returns the standings after the latest reveal.
func (a *App) Scores(ctx context.Context, roomID uuid.UUID) (*Scoreboard, error) {
	standings, err := a.repo.ListAggregates(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load standings: %w", err)
	}
	rounds, err := a.ListRounds(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &Scoreboard{RoomID: roomID, Standings: standings, Rounds: rounds}, nil
}

func lockRoundAndRoom(ctx context.Context, tx Tx, roundID uuid.UUID) (*models.Room, *models.Round, error) {
	round, err := tx.GetRound(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	// room first, then round, the same order StartRound uses
	room, err := tx.LockRoom(ctx, round.RoomID)
	if err != nil {
		return nil, nil, err
	}
	locked, err := tx.LockRound(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	return room, locked, nil
}

// Standings sums revealed round scores per submitter and ranks each kind by
// total descending, then name. Equal totals share a rank. Every team (or
// non-host participant) of the scored kind appears, with zero if it never
// scored.
func Standings(roomID uuid.UUID, throughRound int, current models.SubmitterKind, revealed []models.RoundScore, teams []models.Team, participants []models.Participant) []models.AggregateScore {
	type key struct {
		kind models.SubmitterKind
		id   uuid.UUID
	}
	totals := make(map[key]int)
	kinds := map[models.SubmitterKind]bool{current: true}
	for _, s := range revealed {
		totals[key{s.Kind, s.SubmitterID}] += s.Points
		kinds[s.Kind] = true
	}

	names := make(map[key]string)
	if kinds[models.SubmitterTeam] {
		for _, t := range teams {
			k := key{models.SubmitterTeam, t.ID}
			names[k] = t.Name
			if _, ok := totals[k]; !ok {
				totals[k] = 0
			}
		}
	}
	if kinds[models.SubmitterIndividual] {
		for _, p := range participants {
			if p.IsHost {
				continue
			}
			k := key{models.SubmitterIndividual, p.ID}
			names[k] = p.Name
			if _, ok := totals[k]; !ok {
				totals[k] = 0
			}
		}
	}

	out := make([]models.AggregateScore, 0, len(totals))
	for k, total := range totals {
		name, ok := names[k]
		if !ok {
			name = k.id.String()
		}
		out = append(out, models.AggregateScore{
			RoomID:       roomID,
			Kind:         k.kind,
			SubmitterID:  k.id,
			Name:         name,
			Total:        total,
			ThroughRound: throughRound,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SubmitterID.String() < out[j].SubmitterID.String()
	})

	for i := range out {
		switch {
		case i == 0 || out[i].Kind != out[i-1].Kind:
			out[i].Rank = 1
		case out[i].Total == out[i-1].Total:
			out[i].Rank = out[i-1].Rank
		default:
			out[i].Rank = rankWithinKind(out, i)
		}
	}
	return out
}

// rankWithinKind is the 1-based position of out[i] among entries of its kind.
func rankWithinKind(out []models.AggregateScore, i int) int {
	pos := 1
	for j := i - 1; j >= 0 && out[j].Kind == out[i].Kind; j-- {
		pos++
	}
	return pos
}

func communityEntries(top models.Top3, rankings []models.Ranking, participants []models.Participant) []events.CommunityEntry {
	points := make(map[string]int)
	for _, s := range scoring.Tally(rankings) {
		points[s.Choice] = s.Points
	}
	labels := make(map[string]string, len(participants))
	for _, p := range participants {
		labels[p.ID.String()] = p.Name
	}

	entries := make([]events.CommunityEntry, 0, len(top))
	for pos, choice := range top {
		if choice == "" {
			continue
		}
		label, ok := labels[choice]
		if !ok {
			label = choice
		}
		entries = append(entries, events.CommunityEntry{
			Position: pos + 1,
			Choice:   choice,
			Label:    label,
			Points:   points[choice],
		})
	}
	return entries
}
