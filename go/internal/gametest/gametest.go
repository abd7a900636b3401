// Package gametest wires every app over an in-memory store and a fake clock
// for tests.
package gametest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/memstore"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/teams"
)

// Outbox is the event log a Game drains.
type Outbox interface {
	FetchUnsent(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// Game holds one store and every app built on it. Store is nil when the
// game runs on Postgres.
type Game struct {
	Store          *memstore.Store
	Outbox         Outbox
	Clock          *clockwork.FakeClock
	Config         *gameconfig.Config
	Rooms          *rooms.App
	Teams          *teams.App
	PreSubmissions *presubmissions.App
	Rounds         *rounds.App
	Pairing        *pairing.App
}

// New returns a Game with an empty store.
func New(t testing.TB) *Game {
	t.Helper()
	cfg, err := gameconfig.Default()
	if err != nil {
		t.Fatalf("gameconfig.Default()=%v", err)
	}
	store := memstore.New()
	clock := clockwork.NewFakeClock()
	return &Game{
		Store:          store,
		Outbox:         store,
		Clock:          clock,
		Config:         cfg,
		Rooms:          rooms.NewApp(store.Rooms(), cfg, clock),
		Teams:          teams.NewApp(store.Teams(), clock),
		PreSubmissions: presubmissions.NewApp(store.PreSubmissions(), clock),
		Rounds:         rounds.NewApp(store.Rounds(), clock),
		Pairing:        pairing.NewApp(store.Pairing(), clock, cfg.PairingCodeTTL),
	}
}

// Room is a created room with lookups by participant name.
type Room struct {
	*rooms.CreatedRoom
	byName map[string]models.Participant
}

// ID returns the room ID.
func (r *Room) ID() uuid.UUID {
	return r.Room.ID
}

// P returns the participant called name.
func (r *Room) P(t testing.TB, name string) models.Participant {
	t.Helper()
	p, ok := r.byName[strings.ToLower(name)]
	if !ok {
		t.Fatalf("no participant %q", name)
	}
	return p
}

// Ranking builds a ranking of the named participants.
func (r *Room) Ranking(t testing.TB, first, second, third string) models.Ranking {
	t.Helper()
	return models.Ranking{r.P(t, first).ID.String(), r.P(t, second).ID.String(), r.P(t, third).ID.String()}
}

// CreateRoom creates a room in mode with a host called "Host", the given
// players and one question per text.
func (g *Game) CreateRoom(t testing.TB, mode models.PlayMode, players []string, questions ...string) *Room {
	t.Helper()
	req := rooms.CreateRoomRequest{
		Name:         "Test night",
		PlayMode:     mode,
		Participants: []rooms.ParticipantInput{{Name: "Host", IsHost: true}},
	}
	for _, name := range players {
		req.Participants = append(req.Participants, rooms.ParticipantInput{Name: name})
	}
	for _, text := range questions {
		req.Questions = append(req.Questions, rooms.QuestionInput{Text: text, Category: "test"})
	}
	created, err := g.Rooms.CreateRoom(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateRoom()=%v", err)
	}
	room := &Room{CreatedRoom: created, byName: make(map[string]models.Participant)}
	for _, p := range created.Participants {
		room.byName[strings.ToLower(p.Name)] = p
	}
	return room
}

// Team creates a team of two named players.
func (g *Game) Team(t testing.TB, room *Room, name, a, b string) models.Team {
	t.Helper()
	team, err := g.Teams.CreateTeam(context.Background(), teams.CreateTeamRequest{
		RoomID:         room.ID(),
		Name:           name,
		ParticipantIDs: []uuid.UUID{room.P(t, a).ID, room.P(t, b).ID},
	})
	if err != nil {
		t.Fatalf("CreateTeam(%s)=%v", name, err)
	}
	return *team
}

// PreSubmit stores a pre-event ranking of question for the named participant.
func (g *Game) PreSubmit(t testing.TB, room *Room, who string, question models.Question, ranking models.Ranking) {
	t.Helper()
	_, err := g.PreSubmissions.Save(context.Background(), presubmissions.SaveRequest{
		RoomCode:    room.Room.Code,
		InviteToken: room.P(t, who).InviteToken,
		Entries:     []presubmissions.Entry{{QuestionID: question.ID, Ranking: ranking}},
	})
	if err != nil {
		t.Fatalf("Save(%s)=%v", who, err)
	}
}

// Events drains the outbox and returns the event types in order.
func (g *Game) Events(t testing.TB) []string {
	t.Helper()
	ctx := context.Background()
	pending, err := g.Outbox.FetchUnsent(ctx, 0)
	if err != nil {
		t.Fatalf("FetchUnsent()=%v", err)
	}
	out := make([]string, 0, len(pending))
	for _, e := range pending {
		out = append(out, e.EventType)
		if err := g.Outbox.MarkSent(ctx, e.ID); err != nil {
			t.Fatalf("MarkSent()=%v", err)
		}
	}
	return out
}

// LastEvent returns the newest pending event of type eventType decoded into v.
func (g *Game) LastEvent(t testing.TB, eventType string, v any) bool {
	t.Helper()
	pending, err := g.Outbox.FetchUnsent(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchUnsent()=%v", err)
	}
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i].EventType != eventType {
			continue
		}
		if err := json.Unmarshal(pending[i].Payload, v); err != nil {
			t.Fatalf("decode %s: %v", eventType, err)
		}
		return true
	}
	return false
}
