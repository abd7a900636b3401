package presubmissions_test

import (
	"context"
	"testing"

	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
)

func TestSaveReplacesRankings(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Q1", "Q2")
	q1, q2 := room.Questions[0], room.Questions[1]
	ann := room.P(t, "Ann")

	_, err := g.PreSubmissions.Save(ctx, presubmissions.SaveRequest{
		RoomCode:    room.Room.Code,
		InviteToken: ann.InviteToken,
		Entries: []presubmissions.Entry{
			{QuestionID: q1.ID, Ranking: room.Ranking(t, "Bob", "Cat", "Dan")},
			{QuestionID: q2.ID, Ranking: room.Ranking(t, "Cat", "Dan", "Bob")},
		},
	})
	if err != nil {
		t.Fatalf("Save()=%v", err)
	}
	g.PreSubmit(t, room, "Ann", q1, room.Ranking(t, "Dan", "Bob", "Host"))

	progress, err := g.PreSubmissions.Progress(ctx, room.Room.Code, ann.InviteToken)
	if err != nil {
		t.Fatalf("Progress()=%v", err)
	}
	if len(progress.Submissions) != 2 || len(progress.Questions) != 2 {
		t.Fatalf("Progress()=%d submissions %d questions, want 2 and 2", len(progress.Submissions), len(progress.Questions))
	}
	for _, s := range progress.Submissions {
		if s.QuestionID == q1.ID && s.Ranking != room.Ranking(t, "Dan", "Bob", "Host") {
			t.Fatalf("q1 ranking=%v, want the resubmitted one", s.Ranking)
		}
	}
}

func TestSaveRejects(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat"}, "Q1")
	other := g.CreateRoom(t, models.PlayModeTeam, []string{"Eve"}, "Q1")
	q := room.Questions[0]
	ann := room.P(t, "Ann")

	tests := []struct {
		name  string
		token string
		code  string
		entry presubmissions.Entry
		kind  apperr.Kind
	}{
		{"no token", "", room.Room.Code, presubmissions.Entry{QuestionID: q.ID, Ranking: room.Ranking(t, "Bob", "Cat", "Host")}, apperr.KindAuthorization},
		{"wrong token", "nope", room.Room.Code, presubmissions.Entry{QuestionID: q.ID, Ranking: room.Ranking(t, "Bob", "Cat", "Host")}, apperr.KindAuthorization},
		{"token of another room", other.P(t, "Eve").InviteToken, room.Room.Code, presubmissions.Entry{QuestionID: q.ID, Ranking: room.Ranking(t, "Bob", "Cat", "Host")}, apperr.KindAuthorization},
		{"ranks self", ann.InviteToken, room.Room.Code, presubmissions.Entry{QuestionID: q.ID, Ranking: room.Ranking(t, "Ann", "Cat", "Host")}, apperr.KindValidation},
		{"repeats", ann.InviteToken, room.Room.Code, presubmissions.Entry{QuestionID: q.ID, Ranking: room.Ranking(t, "Bob", "Bob", "Host")}, apperr.KindValidation},
		{"foreign question", ann.InviteToken, room.Room.Code, presubmissions.Entry{QuestionID: other.Questions[0].ID, Ranking: room.Ranking(t, "Bob", "Cat", "Host")}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.PreSubmissions.Save(ctx, presubmissions.SaveRequest{
				RoomCode:    tt.code,
				InviteToken: tt.token,
				Entries:     []presubmissions.Entry{tt.entry},
			})
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("Save()=%v, want %s", err, tt.kind)
			}
		})
	}
}

func TestPreEventLock(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat"}, "Q1")
	q := room.Questions[0]

	if _, err := g.Rooms.SetPreEventLocked(ctx, room.ID(), true); err != nil {
		t.Fatalf("SetPreEventLocked()=%v", err)
	}
	_, err := g.PreSubmissions.Save(ctx, presubmissions.SaveRequest{
		RoomCode:    room.Room.Code,
		InviteToken: room.P(t, "Ann").InviteToken,
		Entries:     []presubmissions.Entry{{QuestionID: q.ID, Ranking: room.Ranking(t, "Bob", "Cat", "Host")}},
	})
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("Save(locked)=%v, want StateConflict", err)
	}

	// the host may still fill in rankings, including self-votes
	saved, err := g.PreSubmissions.AdminSave(ctx, presubmissions.AdminSaveRequest{
		RoomID:          room.ID(),
		ParticipantName: "ann",
		QuestionID:      q.ID,
		Ranking:         room.Ranking(t, "Ann", "Bob", "Cat"),
	})
	if err != nil {
		t.Fatalf("AdminSave()=%v", err)
	}
	if saved.ParticipantID != room.P(t, "Ann").ID {
		t.Fatalf("AdminSave() stored for %s, want Ann", saved.ParticipantID)
	}
	if _, err := g.PreSubmissions.AdminSave(ctx, presubmissions.AdminSaveRequest{
		RoomID:          room.ID(),
		ParticipantName: "Zed",
		QuestionID:      q.ID,
		Ranking:         room.Ranking(t, "Ann", "Bob", "Cat"),
	}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("AdminSave(unknown)=%v, want NotFound", err)
	}
}

func TestFixedOptionQuestion(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	created, err := g.Rooms.CreateRoom(ctx, rooms.CreateRoomRequest{
		Name:         "FMK",
		Participants: []rooms.ParticipantInput{{Name: "Ann"}, {Name: "Bob"}},
		Questions: []rooms.QuestionInput{{
			Text:         "Fuck, marry, kill",
			Category:     models.CategorySpecial,
			FixedOptions: []string{"Fuck", "Marry", "Kill"},
		}},
	})
	if err != nil {
		t.Fatalf("CreateRoom()=%v", err)
	}
	q := created.Questions[0]
	save := func(r models.Ranking) error {
		_, err := g.PreSubmissions.Save(ctx, presubmissions.SaveRequest{
			RoomCode:    created.Room.Code,
			InviteToken: created.Participants[0].InviteToken,
			Entries:     []presubmissions.Entry{{QuestionID: q.ID, Ranking: r}},
		})
		return err
	}
	if err := save(models.Ranking{"Kill", "Marry", "Fuck"}); err != nil {
		t.Fatalf("Save(options)=%v", err)
	}
	if err := save(models.Ranking{"Kill", "Marry", created.Participants[1].ID.String()}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Save(participant on a fixed option question)=%v, want Validation", err)
	}
}
