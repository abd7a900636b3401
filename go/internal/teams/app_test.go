package teams_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/teams"
)

func TestCreateTeam(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Q")

	red := g.Team(t, room, " Red ", "Ann", "Bob")
	if red.Name != "Red" || len(red.MemberIDs) != models.TeamSize {
		t.Fatalf("team=%+v, want Red with two members", red)
	}
	if !red.HasMember(room.P(t, "Ann").ID) || !red.HasMember(room.P(t, "Bob").ID) {
		t.Fatalf("team members=%v, want Ann and Bob", red.MemberIDs)
	}

	list, err := g.Teams.ListTeams(ctx, room.ID())
	if err != nil {
		t.Fatalf("ListTeams()=%v", err)
	}
	if len(list) != 1 || list[0].ID != red.ID {
		t.Fatalf("ListTeams()=%+v, want only red", list)
	}

	var payload struct {
		Teams []models.Team `json:"teams"`
	}
	if !g.LastEvent(t, "teams-updated", &payload) || len(payload.Teams) != 1 {
		t.Fatalf("teams-updated payload=%+v, want one team", payload)
	}
}

func TestCreateTeamRules(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Q")
	other := g.CreateRoom(t, models.PlayModeTeam, []string{"Eve"}, "Q")
	g.Team(t, room, "Red", "Ann", "Bob")

	ids := func(ps ...models.Participant) []uuid.UUID {
		out := make([]uuid.UUID, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	tests := []struct {
		name    string
		teamNm  string
		members []uuid.UUID
		kind    apperr.Kind
	}{
		{"one member", "Blue", ids(room.P(t, "Cat")), apperr.KindValidation},
		{"same member twice", "Blue", ids(room.P(t, "Cat"), room.P(t, "Cat")), apperr.KindValidation},
		{"no name", " ", ids(room.P(t, "Cat"), room.P(t, "Dan")), apperr.KindValidation},
		{"host", "Blue", ids(room.P(t, "Host"), room.P(t, "Cat")), apperr.KindValidation},
		{"other room", "Blue", ids(room.P(t, "Cat"), other.P(t, "Eve")), apperr.KindValidation},
		{"already teamed", "Blue", ids(room.P(t, "Ann"), room.P(t, "Cat")), apperr.KindStateConflict},
		{"name taken", "RED", ids(room.P(t, "Cat"), room.P(t, "Dan")), apperr.KindStateConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Teams.CreateTeam(ctx, teams.CreateTeamRequest{RoomID: room.ID(), Name: tt.teamNm, ParticipantIDs: tt.members})
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("CreateTeam()=%v, want %s", err, tt.kind)
			}
		})
	}
}

func TestTeamsLocked(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Q")
	red := g.Team(t, room, "Red", "Ann", "Bob")

	if _, err := g.Rooms.SetTeamsLocked(ctx, room.ID(), true); err != nil {
		t.Fatalf("SetTeamsLocked()=%v", err)
	}
	_, err := g.Teams.CreateTeam(ctx, teams.CreateTeamRequest{
		RoomID:         room.ID(),
		Name:           "Blue",
		ParticipantIDs: []uuid.UUID{room.P(t, "Cat").ID, room.P(t, "Dan").ID},
	})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("CreateTeam(locked)=%v, want StateConflict", err)
	}
	if err := g.Teams.DeleteTeam(ctx, room.ID(), red.ID); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("DeleteTeam(locked)=%v, want StateConflict", err)
	}
}

func TestDeleteTeamReleasesDevice(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"}, "Q")
	red := g.Team(t, room, "Red", "Ann", "Bob")
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam()=%v", err)
	}

	if err := g.Teams.DeleteTeam(ctx, room.ID(), red.ID); err != nil {
		t.Fatalf("DeleteTeam()=%v", err)
	}
	device, err := g.Pairing.GetDevice(ctx, "device-1")
	if err != nil {
		t.Fatalf("GetDevice()=%v", err)
	}
	if device.TeamID != nil {
		t.Fatalf("device still points at deleted team %s", *device.TeamID)
	}
	// members are free to form a new team
	g.Team(t, room, "Red again", "Ann", "Bob")
}
