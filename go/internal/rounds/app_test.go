package rounds_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rounds"
)

type teamGame struct {
	*gametest.Game
	room       *gametest.Room
	red, blue  models.Team
	q1, q2     models.Question
	redDevice  string
	blueDevice string
}

// newTeamGame builds a two-question team game whose first question has the
// community ranking Cat, Dan, Bob.
func newTeamGame(t *testing.T) *teamGame {
	t.Helper()
	ctx := context.Background()
	g := &teamGame{Game: gametest.New(t), redDevice: "device-red", blueDevice: "device-blue"}
	g.room = g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Who sleeps in?", "Who cooks?")
	g.q1, g.q2 = g.room.Questions[0], g.room.Questions[1]
	g.red = g.Team(t, g.room, "Red", "Ann", "Bob")
	g.blue = g.Team(t, g.room, "Blue", "Cat", "Dan")

	if _, err := g.Rooms.OpenPreEvent(ctx, g.room.ID()); err != nil {
		t.Fatalf("OpenPreEvent()=%v", err)
	}
	g.PreSubmit(t, g.room, "Ann", g.q1, g.room.Ranking(t, "Cat", "Dan", "Bob"))
	g.PreSubmit(t, g.room, "Bob", g.q1, g.room.Ranking(t, "Cat", "Dan", "Ann"))
	g.PreSubmit(t, g.room, "Dan", g.q1, g.room.Ranking(t, "Cat", "Bob", "Ann"))

	if _, err := g.Pairing.PairDeviceToTeam(ctx, g.redDevice, g.red.ID, g.room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(red)=%v", err)
	}
	if _, err := g.Pairing.PairDeviceToTeam(ctx, g.blueDevice, g.blue.ID, g.room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(blue)=%v", err)
	}
	g.Events(t)
	return g
}

func (g *teamGame) start(t *testing.T, number int) *models.Round {
	t.Helper()
	round, err := g.Rounds.StartRound(context.Background(), rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: number})
	if err != nil {
		t.Fatalf("StartRound(%d)=%v", number, err)
	}
	return round
}

func (g *teamGame) submit(t *testing.T, round *models.Round, team models.Team, device string, ranking models.Ranking) error {
	t.Helper()
	_, err := g.Rounds.SubmitRanking(context.Background(), rounds.SubmitRequest{
		RoundID:     round.ID,
		Kind:        models.SubmitterTeam,
		SubmitterID: team.ID,
		DeviceToken: device,
		Ranking:     ranking,
	})
	return err
}

func (g *teamGame) closeAndReveal(t *testing.T, round *models.Round) *rounds.RevealResult {
	t.Helper()
	ctx := context.Background()
	if _, err := g.Rounds.CloseRound(ctx, round.ID); err != nil {
		t.Fatalf("CloseRound()=%v", err)
	}
	result, err := g.Rounds.RevealRound(ctx, round.ID)
	if err != nil {
		t.Fatalf("RevealRound()=%v", err)
	}
	return result
}

func standing(t *testing.T, standings []models.AggregateScore, team models.Team) models.AggregateScore {
	t.Helper()
	for _, s := range standings {
		if s.SubmitterID == team.ID {
			return s
		}
	}
	t.Fatalf("team %s missing from standings %+v", team.Name, standings)
	return models.AggregateScore{}
}

func TestFullTeamGame(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)

	round := g.start(t, 1)
	if round.Status != models.RoundStatusActive || round.QuestionID != g.q1.ID {
		t.Fatalf("StartRound(1)=%+v, want ACTIVE round for the first question", round)
	}
	room, err := g.Rooms.GetRoomByID(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("GetRoomByID()=%v", err)
	}
	if room.Status != models.RoomStatusLiveEvent || room.CurrentRoundIndex != 0 {
		t.Fatalf("room after start = %s index %d, want LIVE_EVENT index 0", room.Status, room.CurrentRoundIndex)
	}

	if err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob")); err != nil {
		t.Fatalf("submit(red)=%v", err)
	}
	if err := g.submit(t, round, g.blue, g.blueDevice, g.room.Ranking(t, "Bob", "Cat", "Ann")); err != nil {
		t.Fatalf("submit(blue)=%v", err)
	}

	first := g.closeAndReveal(t, round)
	want := models.Top3{g.room.P(t, "Cat").ID.String(), g.room.P(t, "Dan").ID.String(), g.room.P(t, "Bob").ID.String()}
	if first.Round.Community != want {
		t.Fatalf("Community=%v, want %v", first.Round.Community, want)
	}
	if first.GameCompleted {
		t.Fatalf("GameCompleted after round 1 of 2")
	}
	if first.NextRound == nil || first.NextRound.RoundNumber != 2 || first.NextRound.Status != models.RoundStatusWaiting {
		t.Fatalf("NextRound=%+v, want WAITING round 2", first.NextRound)
	}
	if got := standing(t, first.Standings, g.red); got.Total != 9 || got.Rank != 1 {
		t.Fatalf("red=%+v, want total 9 rank 1", got)
	}
	if got := standing(t, first.Standings, g.blue); got.Total != 2 || got.Rank != 2 {
		t.Fatalf("blue=%+v, want total 2 rank 2", got)
	}

	second, err := g.Rounds.StartNextRound(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("StartNextRound()=%v", err)
	}
	if second.ID != first.NextRound.ID || second.Status != models.RoundStatusActive {
		t.Fatalf("StartNextRound()=%+v, want the waiting round activated", second)
	}
	// nobody pre-submitted the second question, so nothing can score
	if err := g.submit(t, second, g.red, g.redDevice, g.room.Ranking(t, "Ann", "Bob", "Cat")); err != nil {
		t.Fatalf("submit(red)=%v", err)
	}
	last := g.closeAndReveal(t, second)
	if !last.GameCompleted || last.NextRound != nil {
		t.Fatalf("last reveal GameCompleted=%v NextRound=%v, want completed", last.GameCompleted, last.NextRound)
	}
	if got := standing(t, last.Standings, g.red); got.Total != 9 || got.ThroughRound != 2 {
		t.Fatalf("red=%+v, want total 9 through round 2", got)
	}

	room, err = g.Rooms.GetRoomByID(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("GetRoomByID()=%v", err)
	}
	if room.Status != models.RoomStatusCompleted {
		t.Fatalf("room status=%s, want COMPLETED", room.Status)
	}

	board, err := g.Rounds.Scores(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("Scores()=%v", err)
	}
	if len(board.Standings) != 2 || len(board.Rounds) != 2 {
		t.Fatalf("Scores()=%d standings %d rounds, want 2 and 2", len(board.Standings), len(board.Rounds))
	}

	events := g.Events(t)
	if events[len(events)-1] != "game-completed" {
		t.Fatalf("last event=%s, want game-completed (all: %v)", events[len(events)-1], events)
	}
}

func TestStartRoundConcurrent(t *testing.T) {
	g := newTeamGame(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Rounds.StartRound(context.Background(), rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !apperr.Is(err, apperr.KindStateConflict):
			t.Fatalf("StartRound()=%v, want StateConflict", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d starts succeeded, want 1", ok)
	}

	list, err := g.Rounds.ListRounds(context.Background(), g.room.ID())
	if err != nil {
		t.Fatalf("ListRounds()=%v", err)
	}
	if len(list) != 1 || list[0].Status != models.RoundStatusActive {
		t.Fatalf("ListRounds()=%+v, want one ACTIVE round", list)
	}
}

func TestStartRoundWhileActive(t *testing.T) {
	g := newTeamGame(t)
	g.start(t, 1)

	_, err := g.Rounds.StartRound(context.Background(), rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 2})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("StartRound(2)=%v, want StateConflict", err)
	}
}

func TestStartRoundValidation(t *testing.T) {
	g := newTeamGame(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  rounds.StartRoundRequest
		kind apperr.Kind
	}{
		{"zero", rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 0}, apperr.KindValidation},
		{"past end", rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 3}, apperr.KindValidation},
		{"bad mode", rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 1, Mode: "DUO"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Rounds.StartRound(ctx, tt.req)
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("StartRound()=%v, want %s", err, tt.kind)
			}
		})
	}
}

func TestRestartWithAnotherQuestionIsRejected(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)
	if _, err := g.Rounds.CloseRound(ctx, round.ID); err != nil {
		t.Fatalf("CloseRound()=%v", err)
	}
	_, err := g.Rounds.StartRound(ctx, rounds.StartRoundRequest{RoomID: g.room.ID(), RoundNumber: 1, QuestionID: g.q2.ID})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("StartRound() with another question = %v, want StateConflict", err)
	}
}

func TestRevealTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)
	if err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob")); err != nil {
		t.Fatalf("submit()=%v", err)
	}
	g.closeAndReveal(t, round)
	g.Events(t)

	_, err := g.Rounds.RevealRound(ctx, round.ID)
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("second RevealRound()=%v, want StateConflict", err)
	}
	if events := g.Events(t); len(events) != 0 {
		t.Fatalf("second reveal emitted %v", events)
	}

	board, err := g.Rounds.Scores(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("Scores()=%v", err)
	}
	if got := standing(t, board.Standings, g.red); got.Total != 9 {
		t.Fatalf("red total=%d after a second reveal, want 9", got.Total)
	}
}

func TestConcurrentRevealScoresOnce(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)
	if err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob")); err != nil {
		t.Fatalf("submit()=%v", err)
	}
	if _, err := g.Rounds.CloseRound(ctx, round.ID); err != nil {
		t.Fatalf("CloseRound()=%v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Rounds.RevealRound(ctx, round.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !apperr.Is(err, apperr.KindStateConflict) {
			t.Fatalf("RevealRound()=%v, want StateConflict", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d reveals succeeded, want 1", ok)
	}
}

func TestCloseWaitingRoundIsRejected(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	result := g.closeAndReveal(t, g.start(t, 1))
	waiting := result.NextRound

	_, err := g.Rounds.CloseRound(ctx, waiting.ID)
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("CloseRound(WAITING)=%v, want StateConflict", err)
	}
	got, err := g.Rounds.GetRound(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("GetRound()=%v", err)
	}
	if got.Status != models.RoundStatusWaiting {
		t.Fatalf("status=%s after a rejected close, want WAITING", got.Status)
	}
}

func TestRevealActiveRoundIsRejected(t *testing.T) {
	g := newTeamGame(t)
	round := g.start(t, 1)
	_, err := g.Rounds.RevealRound(context.Background(), round.ID)
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("RevealRound(ACTIVE)=%v, want StateConflict", err)
	}
}

func TestCloseAndRevealClosesFirst(t *testing.T) {
	g := newTeamGame(t)
	round := g.start(t, 1)
	result, err := g.Rounds.CloseAndReveal(context.Background(), round.ID)
	if err != nil {
		t.Fatalf("CloseAndReveal()=%v", err)
	}
	if result.Round.Status != models.RoundStatusRevealed {
		t.Fatalf("status=%s, want REVEALED", result.Round.Status)
	}
}

func TestSubmitRankingChecks(t *testing.T) {
	g := newTeamGame(t)
	round := g.start(t, 1)
	ranking := g.room.Ranking(t, "Cat", "Dan", "Bob")

	if err := g.submit(t, round, g.red, "device-unknown", ranking); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("unknown device: %v, want Authorization", err)
	}
	if err := g.submit(t, round, g.red, g.blueDevice, ranking); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("other team's device: %v, want Authorization", err)
	}
	dup := models.Ranking{ranking[0], ranking[0], ranking[2]}
	if err := g.submit(t, round, g.red, g.redDevice, dup); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("repeated choice: %v, want Validation", err)
	}
	_, err := g.Rounds.SubmitRanking(context.Background(), rounds.SubmitRequest{
		RoundID:     round.ID,
		Kind:        models.SubmitterIndividual,
		SubmitterID: g.room.P(t, "Ann").ID,
		DeviceToken: g.redDevice,
		Ranking:     ranking,
	})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("individual submission in a team round: %v, want StateConflict", err)
	}
}

func TestResubmissionOverwrites(t *testing.T) {
	g := newTeamGame(t)
	round := g.start(t, 1)
	if err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Ann", "Bob", "Host")); err != nil {
		t.Fatalf("first submit()=%v", err)
	}
	if err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob")); err != nil {
		t.Fatalf("second submit()=%v", err)
	}
	result := g.closeAndReveal(t, round)
	if len(result.Scores) != 1 || result.Scores[0].Points != 9 {
		t.Fatalf("Scores=%+v, want one score of 9 from the latest submission", result.Scores)
	}
}

func TestLateSubmissionIsRejected(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)
	if _, err := g.Rounds.CloseRound(ctx, round.ID); err != nil {
		t.Fatalf("CloseRound()=%v", err)
	}
	err := g.submit(t, round, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob"))
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("submit after close: %v, want StateConflict", err)
	}
}

func TestReopenClosedRound(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)
	if _, err := g.Rounds.CloseRound(ctx, round.ID); err != nil {
		t.Fatalf("CloseRound()=%v", err)
	}
	again := g.start(t, 1)
	if again.ID != round.ID {
		t.Fatalf("restart created round %s, want %s reactivated", again.ID, round.ID)
	}
	if err := g.submit(t, again, g.red, g.redDevice, g.room.Ranking(t, "Cat", "Dan", "Bob")); err != nil {
		t.Fatalf("submit after reopen: %v", err)
	}
}

func TestIndividualRound(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeIndividual, []string{"Ann", "Bob", "Cat"}, "Who laughs loudest?")
	q := room.Questions[0]
	g.PreSubmit(t, room, "Ann", q, room.Ranking(t, "Bob", "Cat", "Host"))
	g.PreSubmit(t, room, "Cat", q, room.Ranking(t, "Bob", "Ann", "Host"))

	ann := room.P(t, "Ann")
	if _, err := g.Pairing.PairDeviceToParticipant(ctx, "device-ann", ann.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToParticipant()=%v", err)
	}
	round, err := g.Rounds.StartRound(ctx, rounds.StartRoundRequest{RoomID: room.ID(), RoundNumber: 1})
	if err != nil {
		t.Fatalf("StartRound()=%v", err)
	}
	if round.Mode != models.PlayModeIndividual {
		t.Fatalf("mode=%s, want INDIVIDUAL", round.Mode)
	}
	_, err = g.Rounds.SubmitRanking(ctx, rounds.SubmitRequest{
		RoundID:     round.ID,
		Kind:        models.SubmitterIndividual,
		SubmitterID: ann.ID,
		DeviceToken: "device-ann",
		Ranking:     room.Ranking(t, "Bob", "Ann", "Cat"),
	})
	if err != nil {
		t.Fatalf("SubmitRanking()=%v", err)
	}

	result, err := g.Rounds.CloseAndReveal(ctx, round.ID)
	if err != nil {
		t.Fatalf("CloseAndReveal()=%v", err)
	}
	// Bob is the clear community first; at least one of Ann and Cat fills the
	// tied slots, so Ann earns the exact match plus one more hit
	if len(result.Scores) != 1 || result.Scores[0].SubmitterID != ann.ID {
		t.Fatalf("Scores=%+v, want one individual score for Ann", result.Scores)
	}
	if got := result.Scores[0].Points; got < 4 {
		t.Fatalf("Ann scored %d, want at least 4", got)
	}
	for _, s := range result.Standings {
		if s.Kind != models.SubmitterIndividual {
			t.Fatalf("standing %+v is not individual", s)
		}
		if s.SubmitterID == room.P(t, "Host").ID {
			t.Fatalf("host listed in standings")
		}
	}
	if !result.GameCompleted {
		t.Fatalf("single question game did not complete")
	}
}

func TestResetRounds(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	round := g.start(t, 1)

	if _, err := g.Rounds.ResetRounds(ctx, g.room.ID()); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("ResetRounds() with an active round = %v, want StateConflict", err)
	}

	g.closeAndReveal(t, round)
	room, err := g.Rounds.ResetRounds(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("ResetRounds()=%v", err)
	}
	if room.Status != models.RoomStatusPreEvent || room.Epoch != 1 || room.CurrentRoundIndex != 0 {
		t.Fatalf("room=%s epoch %d index %d, want PRE_EVENT epoch 1 index 0", room.Status, room.Epoch, room.CurrentRoundIndex)
	}
	board, err := g.Rounds.Scores(ctx, g.room.ID())
	if err != nil {
		t.Fatalf("Scores()=%v", err)
	}
	if len(board.Rounds) != 0 || len(board.Standings) != 0 {
		t.Fatalf("Scores()=%+v after reset, want empty", board)
	}

	// the new epoch starts from round 1 again
	if again := g.start(t, 1); again.ID == round.ID {
		t.Fatalf("reset kept the old round")
	}
}

func TestRevealTarget(t *testing.T) {
	ctx := context.Background()
	g := newTeamGame(t)
	if _, err := g.Rounds.RevealTarget(ctx, g.room.ID(), uuid.Nil); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("RevealTarget() before any round = %v, want NotFound", err)
	}
	round := g.start(t, 1)
	got, err := g.Rounds.RevealTarget(ctx, g.room.ID(), uuid.Nil)
	if err != nil {
		t.Fatalf("RevealTarget()=%v", err)
	}
	if got.ID != round.ID {
		t.Fatalf("RevealTarget()=%s, want the active round %s", got.ID, round.ID)
	}
}
