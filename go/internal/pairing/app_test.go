package pairing_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/models"
)

func setup(t *testing.T) (*gametest.Game, *gametest.Room, models.Team, models.Team) {
	t.Helper()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Who is late?")
	red := g.Team(t, room, "Red", "Ann", "Bob")
	blue := g.Team(t, room, "Blue", "Cat", "Dan")
	g.Events(t)
	return g, room, red, blue
}

func pairedTo(t *testing.T, g *gametest.Game, room *gametest.Room, team models.Team) []models.Device {
	t.Helper()
	devices, err := g.Pairing.ListDevices(context.Background(), room.ID())
	if err != nil {
		t.Fatalf("ListDevices()=%v", err)
	}
	var out []models.Device
	for _, d := range devices {
		if d.TeamID != nil && *d.TeamID == team.ID {
			out = append(out, d)
		}
	}
	return out
}

func TestPairDeviceToTeam(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)

	device, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID())
	if err != nil {
		t.Fatalf("PairDeviceToTeam()=%v", err)
	}
	if device.TeamID == nil || *device.TeamID != red.ID || device.RoomID != room.ID() {
		t.Fatalf("device=%+v, want paired to red in the room", device)
	}

	again, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID())
	if err != nil {
		t.Fatalf("pairing the same device twice = %v, want success", err)
	}
	if again.ID != device.ID {
		t.Fatalf("repeat pairing created device %s, want %s", again.ID, device.ID)
	}

	_, err = g.Pairing.PairDeviceToTeam(ctx, "device-2", red.ID, room.ID())
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("second device = %v, want StateConflict", err)
	}
	if got := pairedTo(t, g, room, red); len(got) != 1 || got[0].Token != "device-1" {
		t.Fatalf("red devices=%+v, want only device-1", got)
	}

	events := g.Events(t)
	want := []string{"device-paired", "devices-updated"}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events=%v, want %v", events, want)
	}
}

func TestPairDeviceToTeamConcurrent(t *testing.T) {
	g, room, red, _ := setup(t)

	const devices = 10
	var wg sync.WaitGroup
	errs := make(chan error, devices)
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Pairing.PairDeviceToTeam(context.Background(), fmt.Sprintf("device-%d", i), red.ID, room.ID())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !apperr.Is(err, apperr.KindStateConflict):
			t.Fatalf("PairDeviceToTeam()=%v, want StateConflict", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d devices paired, want exactly 1", ok)
	}
	if got := pairedTo(t, g, room, red); len(got) != 1 {
		t.Fatalf("red has %d devices, want 1", len(got))
	}
}

func TestRepointDevice(t *testing.T) {
	ctx := context.Background()
	g, room, red, blue := setup(t)

	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(red)=%v", err)
	}
	device, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", blue.ID, room.ID())
	if err != nil {
		t.Fatalf("PairDeviceToTeam(blue)=%v", err)
	}
	if *device.TeamID != blue.ID {
		t.Fatalf("device team=%s, want blue", *device.TeamID)
	}
	if got := pairedTo(t, g, room, red); len(got) != 0 {
		t.Fatalf("red still has %d devices after repoint", len(got))
	}
	// red is free again
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-2", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(red, device-2)=%v", err)
	}
}

func TestRepointDeviceAcrossRooms(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)
	other := g.CreateRoom(t, models.PlayModeTeam, []string{"Eve", "Fay"}, "Who sings?")
	green := g.Team(t, other, "Green", "Eve", "Fay")

	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(red)=%v", err)
	}
	g.Events(t)
	device, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", green.ID, other.ID())
	if err != nil {
		t.Fatalf("PairDeviceToTeam(green)=%v", err)
	}
	if device.RoomID != other.ID() {
		t.Fatalf("device room=%s, want %s", device.RoomID, other.ID())
	}
	events := g.Events(t)
	want := []string{"devices-updated", "device-paired", "devices-updated"}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("events=%v, want %v", events, want)
	}
}

func TestPairTeamOfAnotherRoom(t *testing.T) {
	g, _, red, _ := setup(t)
	other := g.CreateRoom(t, models.PlayModeTeam, []string{"Eve", "Fay"}, "Who sings?")
	_, err := g.Pairing.PairDeviceToTeam(context.Background(), "device-1", red.ID, other.ID())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("PairDeviceToTeam()=%v, want NotFound", err)
	}
}

func TestPairDeviceToParticipant(t *testing.T) {
	ctx := context.Background()
	g := gametest.New(t)
	room := g.CreateRoom(t, models.PlayModeIndividual, []string{"Ann", "Bob"}, "Who is late?")
	ann := room.P(t, "Ann")

	if _, err := g.Pairing.PairDeviceToParticipant(ctx, "device-1", ann.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToParticipant()=%v", err)
	}
	_, err := g.Pairing.PairDeviceToParticipant(ctx, "device-2", ann.ID, room.ID())
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("second device = %v, want StateConflict", err)
	}
	device, err := g.Pairing.GetDevice(ctx, "device-1")
	if err != nil {
		t.Fatalf("GetDevice()=%v", err)
	}
	if device.ParticipantID == nil || *device.ParticipantID != ann.ID || device.TeamID != nil {
		t.Fatalf("device=%+v, want paired to Ann only", device)
	}
}

func TestUnpairDeviceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)

	if err := g.Pairing.UnpairDevice(ctx, "never-seen"); err != nil {
		t.Fatalf("UnpairDevice(unknown)=%v, want nil", err)
	}
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam()=%v", err)
	}
	for i := 0; i < 2; i++ {
		if err := g.Pairing.UnpairDevice(ctx, "device-1"); err != nil {
			t.Fatalf("UnpairDevice() #%d = %v", i+1, err)
		}
	}
	if got := pairedTo(t, g, room, red); len(got) != 0 {
		t.Fatalf("red has %d devices after unpair", len(got))
	}
	g.Events(t)
	if err := g.Pairing.UnpairDevice(ctx, "device-1"); err != nil {
		t.Fatalf("UnpairDevice()=%v", err)
	}
	if events := g.Events(t); len(events) != 0 {
		t.Fatalf("unpairing an unpaired device emitted %v", events)
	}
}

func TestUnpairTeam(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam()=%v", err)
	}
	if err := g.Pairing.UnpairTeam(ctx, red.ID); err != nil {
		t.Fatalf("UnpairTeam()=%v", err)
	}
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-2", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam() after UnpairTeam = %v", err)
	}
}

func TestClearAllPairings(t *testing.T) {
	ctx := context.Background()
	g, room, red, blue := setup(t)
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(red)=%v", err)
	}
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-2", blue.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam(blue)=%v", err)
	}

	n, err := g.Pairing.ClearAllPairings(ctx, room.ID())
	if err != nil {
		t.Fatalf("ClearAllPairings()=%v", err)
	}
	if n != 2 {
		t.Fatalf("ClearAllPairings()=%d, want 2", n)
	}
	devices, err := g.Pairing.ListDevices(ctx, room.ID())
	if err != nil {
		t.Fatalf("ListDevices()=%v", err)
	}
	for _, d := range devices {
		if d.TeamID != nil || d.ParticipantID != nil {
			t.Fatalf("device %s still paired", d.ID)
		}
	}

	if n, err = g.Pairing.ClearAllPairings(ctx, room.ID()); err != nil || n != 0 {
		t.Fatalf("second ClearAllPairings()=%d, %v, want 0, nil", n, err)
	}
}

func TestPairingCode(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)

	code, err := g.Pairing.GenerateTeamPairingCode(ctx, room.ID(), red.ID)
	if err != nil {
		t.Fatalf("GenerateTeamPairingCode()=%v", err)
	}
	again, err := g.Pairing.GenerateTeamPairingCode(ctx, room.ID(), red.ID)
	if err != nil {
		t.Fatalf("GenerateTeamPairingCode()=%v", err)
	}
	if again.Code != code.Code {
		t.Fatalf("unused code not reused: %s then %s", code.Code, again.Code)
	}

	device, err := g.Pairing.PairWithCode(ctx, room.ID(), "device-1", code.Code)
	if err != nil {
		t.Fatalf("PairWithCode()=%v", err)
	}
	if device.TeamID == nil || *device.TeamID != red.ID {
		t.Fatalf("device=%+v, want paired to red", device)
	}

	if _, err := g.Pairing.PairWithCode(ctx, room.ID(), "device-2", code.Code); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("reusing a redeemed code = %v, want StateConflict", err)
	}

	fresh, err := g.Pairing.GenerateTeamPairingCode(ctx, room.ID(), red.ID)
	if err != nil {
		t.Fatalf("GenerateTeamPairingCode()=%v", err)
	}
	if fresh.Code == code.Code {
		t.Fatalf("redeemed code handed out again")
	}
}

func TestPairingCodeExpires(t *testing.T) {
	ctx := context.Background()
	g, room, _, blue := setup(t)

	code, err := g.Pairing.GenerateTeamPairingCode(ctx, room.ID(), blue.ID)
	if err != nil {
		t.Fatalf("GenerateTeamPairingCode()=%v", err)
	}
	g.Clock.Advance(g.Config.PairingCodeTTL + time.Second)

	if _, err := g.Pairing.PairWithCode(ctx, room.ID(), "device-1", code.Code); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expired code = %v, want StateConflict", err)
	}
	next, err := g.Pairing.GenerateTeamPairingCode(ctx, room.ID(), blue.ID)
	if err != nil {
		t.Fatalf("GenerateTeamPairingCode()=%v", err)
	}
	if next.Code == code.Code {
		t.Fatalf("expired code handed out again")
	}
}

func TestPairWithCodeValidation(t *testing.T) {
	ctx := context.Background()
	g, room, _, _ := setup(t)
	tests := []struct {
		name  string
		token string
		code  string
		kind  apperr.Kind
	}{
		{"empty token", "", "ABCDEF", apperr.KindValidation},
		{"malformed code", "device-1", "A!", apperr.KindValidation},
		{"unknown code", "device-1", "ZZZZZZ", apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Pairing.PairWithCode(ctx, room.ID(), tt.token, tt.code)
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("PairWithCode()=%v, want %s", err, tt.kind)
			}
		})
	}
}

func TestTouchDevice(t *testing.T) {
	ctx := context.Background()
	g, room, red, _ := setup(t)
	if d, err := g.Pairing.TouchDevice(ctx, "nobody"); err != nil || d != nil {
		t.Fatalf("TouchDevice(unknown)=%v, %v, want nil, nil", d, err)
	}
	if _, err := g.Pairing.PairDeviceToTeam(ctx, "device-1", red.ID, room.ID()); err != nil {
		t.Fatalf("PairDeviceToTeam()=%v", err)
	}
	g.Clock.Advance(time.Minute)
	d, err := g.Pairing.TouchDevice(ctx, "device-1")
	if err != nil {
		t.Fatalf("TouchDevice()=%v", err)
	}
	if !d.LastSeenAt.Equal(g.Clock.Now().UTC()) {
		t.Fatalf("LastSeenAt=%v, want %v", d.LastSeenAt, g.Clock.Now().UTC())
	}
}
