package rooms_test

import (
	"context"
	"testing"

	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)

	created, err := g.Rooms.CreateRoom(ctx, rooms.CreateRoomRequest{
		Name: "  Friday  ",
		Participants: []rooms.ParticipantInput{
			{Name: "Host", IsHost: true},
			{Name: "Ann"},
			{Name: "Bob"},
		},
	})
	if err != nil {
		t.Fatalf("CreateRoom()=%v", err)
	}
	room := created.Room
	if room.Name != "Friday" || room.Status != models.RoomStatusSetup || room.PlayMode != models.PlayModeTeam {
		t.Fatalf("room=%+v, want trimmed name, SETUP, TEAM", room)
	}
	if len(room.Code) != 6 || created.HostToken == "" {
		t.Fatalf("code=%q host token=%q, want a 6 character code and a token", room.Code, created.HostToken)
	}
	if len(created.Invites) != 3 || len(created.Participants) != 3 {
		t.Fatalf("got %d invites %d participants, want 3 and 3", len(created.Invites), len(created.Participants))
	}
	tpl, err := g.Config.Template("")
	if err != nil {
		t.Fatalf("Template()=%v", err)
	}
	if len(created.Questions) != len(tpl.Questions) {
		t.Fatalf("got %d questions, want the %d of the default template", len(created.Questions), len(tpl.Questions))
	}
	for i, q := range created.Questions {
		if q.SortOrder != i {
			t.Fatalf("question %d has sort order %d", i, q.SortOrder)
		}
	}

	got, err := g.Rooms.GetRoom(ctx, " "+room.Code+" ")
	if err != nil {
		t.Fatalf("GetRoom()=%v", err)
	}
	if got.ID != room.ID {
		t.Fatalf("GetRoom() returned room %s, want %s", got.ID, room.ID)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)

	tests := []struct {
		name string
		req  rooms.CreateRoomRequest
	}{
		{"no name", rooms.CreateRoomRequest{Name: " "}},
		{"bad code", rooms.CreateRoomRequest{Name: "x", Code: "AB"}},
		{"bad mode", rooms.CreateRoomRequest{Name: "x", PlayMode: "SOLO"}},
		{"duplicate names", rooms.CreateRoomRequest{Name: "x", Participants: []rooms.ParticipantInput{{Name: "Ann"}, {Name: "ann"}}}},
		{"empty question", rooms.CreateRoomRequest{Name: "x", Questions: []rooms.QuestionInput{{Text: " "}}}},
		{"short options", rooms.CreateRoomRequest{Name: "x", Questions: []rooms.QuestionInput{{Text: "FMK", FixedOptions: []string{"a", "b"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Rooms.CreateRoom(ctx, tt.req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("CreateRoom()=%v, want Validation", err)
			}
		})
	}
}

func TestCreateRoomCodeTaken(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	req := rooms.CreateRoomRequest{Name: "First", Code: "party1"}
	first, err := g.Rooms.CreateRoom(ctx, req)
	if err != nil {
		t.Fatalf("CreateRoom()=%v", err)
	}
	if first.Room.Code != "PARTY1" {
		t.Fatalf("code=%s, want PARTY1", first.Room.Code)
	}
	_, err = g.Rooms.CreateRoom(ctx, rooms.CreateRoomRequest{Name: "Second", Code: "PARTY1"})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("CreateRoom() with a taken code = %v, want StateConflict", err)
	}
}

func TestVerifyHost(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann"}, "Q")

	if _, err := g.Rooms.VerifyHost(ctx, room.Room.Code, room.HostToken); err != nil {
		t.Fatalf("VerifyHost()=%v", err)
	}
	for _, token := range []string{"", "wrong"} {
		if _, err := g.Rooms.VerifyHost(ctx, room.Room.Code, token); !apperr.Is(err, apperr.KindAuthorization) {
			t.Fatalf("VerifyHost(%q)=%v, want Authorization", token, err)
		}
	}
	if _, err := g.Rooms.VerifyHost(ctx, "NOPE00", room.HostToken); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("VerifyHost(unknown room)=%v, want NotFound", err)
	}
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat"}, "Q")

	eve, err := g.Rooms.AddParticipant(ctx, room.ID(), rooms.ParticipantInput{Name: " Eve "})
	if err != nil {
		t.Fatalf("AddParticipant()=%v", err)
	}
	if eve.Name != "Eve" || eve.InviteToken == "" {
		t.Fatalf("participant=%+v, want Eve with an invite token", eve)
	}
	if _, err := g.Rooms.AddParticipant(ctx, room.ID(), rooms.ParticipantInput{Name: "ANN"}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("AddParticipant(duplicate)=%v, want StateConflict", err)
	}

	name := "Evie"
	updated, err := g.Rooms.UpdateParticipant(ctx, room.ID(), rooms.UpdateParticipantRequest{ParticipantID: eve.ID, Name: &name})
	if err != nil {
		t.Fatalf("UpdateParticipant()=%v", err)
	}
	if updated.Name != "Evie" {
		t.Fatalf("name=%s, want Evie", updated.Name)
	}

	g.Team(t, room, "Red", "Ann", "Bob")
	if err := g.Rooms.DeleteParticipant(ctx, room.ID(), room.P(t, "Ann").ID); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("DeleteParticipant(team member)=%v, want StateConflict", err)
	}
	if err := g.Rooms.DeleteParticipant(ctx, room.ID(), eve.ID); err != nil {
		t.Fatalf("DeleteParticipant()=%v", err)
	}

	if _, err := g.Rooms.SetRosterLocked(ctx, room.ID(), true); err != nil {
		t.Fatalf("SetRosterLocked()=%v", err)
	}
	if _, err := g.Rooms.AddParticipant(ctx, room.ID(), rooms.ParticipantInput{Name: "Fay"}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("AddParticipant(locked)=%v, want StateConflict", err)
	}
	if err := g.Rooms.DeleteParticipant(ctx, room.ID(), room.P(t, "Cat").ID); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("DeleteParticipant(locked)=%v, want StateConflict", err)
	}

	state, err := g.Rooms.GameState(ctx, room.Room.Code)
	if err != nil {
		t.Fatalf("GameState()=%v", err)
	}
	if len(state.Participants) != 4 || !state.Room.RosterLocked {
		t.Fatalf("state has %d participants locked=%v, want 4 and locked", len(state.Participants), state.Room.RosterLocked)
	}
}

func TestUpdateGameState(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"}, "Q1", "Q2", "Q3")

	status := func(s models.RoomStatus) *models.RoomStatus { return &s }
	index := func(i int) *int { return &i }

	if _, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty update = %v, want Validation", err)
	}
	if _, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{Status: status(models.RoomStatusCompleted)}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("SETUP -> COMPLETED = %v, want StateConflict", err)
	}

	opened, err := g.Rooms.OpenPreEvent(ctx, room.ID())
	if err != nil {
		t.Fatalf("OpenPreEvent()=%v", err)
	}
	if opened.Status != models.RoomStatusPreEvent {
		t.Fatalf("status=%s, want PRE_EVENT", opened.Status)
	}
	if _, err := g.Rooms.OpenPreEvent(ctx, room.ID()); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("second OpenPreEvent()=%v, want StateConflict", err)
	}

	live, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{Status: status(models.RoomStatusLiveEvent), CurrentRoundIndex: index(1)})
	if err != nil {
		t.Fatalf("UpdateGameState(LIVE_EVENT)=%v", err)
	}
	if live.Status != models.RoomStatusLiveEvent || live.CurrentRoundIndex != 1 {
		t.Fatalf("room=%s index %d, want LIVE_EVENT index 1", live.Status, live.CurrentRoundIndex)
	}
	if _, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{CurrentRoundIndex: index(0)}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("moving the index back = %v, want StateConflict", err)
	}
	if _, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{CurrentRoundIndex: index(3)}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("index past the end = %v, want Validation", err)
	}
	if _, err := g.Rooms.UpdateGameState(ctx, room.ID(), rooms.GameStateUpdate{Status: status(models.RoomStatusPreEvent)}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("LIVE_EVENT -> PRE_EVENT = %v, want StateConflict", err)
	}

	events := g.Events(t)
	if len(events) != 2 || events[0] != "game-state-updated" || events[1] != "game-state-updated" {
		t.Fatalf("events=%v, want two game-state-updated", events)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"}, "Q1")

	snap, err := g.Rooms.Snapshot(ctx, room.Room.Code)
	if err != nil {
		t.Fatalf("Snapshot()=%v", err)
	}
	if snap.Room.ID != room.ID() || len(snap.Participants) != 3 || len(snap.Questions) != 1 {
		t.Fatalf("snapshot=%+v, want the room with 3 participants and 1 question", snap)
	}
	if snap.CurrentRound != nil {
		t.Fatalf("CurrentRound=%+v before any round", snap.CurrentRound)
	}
}

func TestCurrentRound(t *testing.T) {
	room := models.Room{CurrentRoundIndex: 1}
	list := []models.Round{
		{RoundNumber: 1, Status: models.RoundStatusRevealed},
		{RoundNumber: 2, Status: models.RoundStatusWaiting},
	}
	if got := rooms.CurrentRound(room, list); got == nil || got.RoundNumber != 2 {
		t.Fatalf("CurrentRound()=%+v, want round 2", got)
	}
	list[0].Status = models.RoundStatusActive
	if got := rooms.CurrentRound(room, list); got == nil || got.RoundNumber != 1 {
		t.Fatalf("CurrentRound()=%+v, want the active round 1", got)
	}
	if got := rooms.CurrentRound(room, nil); got != nil {
		t.Fatalf("CurrentRound(nil)=%+v, want nil", got)
	}
}

func TestVerifyMember(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})
	other := g.CreateRoom(t, models.PlayModeTeam, []string{"Cat", "Dan"})
	code := room.Room.Code

	if _, err := g.Rooms.VerifyMember(ctx, code, room.HostToken, ""); err != nil {
		t.Fatalf("VerifyMember(host)=%v", err)
	}
	if _, err := g.Rooms.VerifyMember(ctx, code, "", room.Invites[1].InviteToken); err != nil {
		t.Fatalf("VerifyMember(invite)=%v", err)
	}
	if _, err := g.Rooms.VerifyMemberForRoom(ctx, room.ID(), "wrong", room.Invites[0].InviteToken); err != nil {
		t.Fatalf("VerifyMemberForRoom(bad host, good invite)=%v", err)
	}

	cases := []struct {
		name        string
		host, guest string
	}{
		{"no credentials", "", ""},
		{"wrong host token", "guess", ""},
		{"unknown invite", "", "not-a-token"},
		{"other room's host", other.HostToken, ""},
		{"other room's invite", "", other.Invites[0].InviteToken},
	}
	for _, c := range cases {
		_, err := g.Rooms.VerifyMember(ctx, code, c.host, c.guest)
		if !apperr.Is(err, apperr.KindAuthorization) {
			t.Fatalf("%s: VerifyMember()=%v, want authorization error", c.name, err)
		}
	}
}
