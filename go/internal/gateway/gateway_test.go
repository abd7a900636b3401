package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/gametest"
	"github.com/mcdev12/rankparty/go/internal/gateway"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/mcdev12/rankparty/go/internal/rounds"
)

type harness struct {
	*gametest.Game
	server *httptest.Server
}

// newHarness serves the gateway over httptest with the outbox relay
// delivering committed events in process.
func newHarness(t *testing.T) *harness {
	t.Helper()
	g := gametest.New(t)
	svc, err := gateway.NewService(gateway.DefaultConfig(), g.Rooms, g.Rounds, g.Pairing)
	if err != nil {
		t.Fatalf("NewService()=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)
	relay := outbox.NewRelay(g.Store, svc.Publisher(), g.Store.Wake(), clockwork.NewRealClock(), outbox.DefaultRelayConfig())
	go relay.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &harness{Game: g, server: server}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial()=%v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(msgType gateway.MessageType, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := c.conn.WriteJSON(gateway.ClientMessage{Type: msgType, Data: raw}); err != nil {
		c.t.Fatalf("WriteJSON()=%v", err)
	}
}

// expect reads until an event of type want arrives and decodes its data into v.
func (c *client) expect(want events.Type, v any) gateway.RoomEvent {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.conn.SetReadDeadline(deadline)
		var event gateway.RoomEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			c.t.Fatalf("waiting for %s: %v", want, err)
		}
		if event.Type != want {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(event.Data, v); err != nil {
				c.t.Fatalf("decode %s: %v", want, err)
			}
		}
		return event
	}
}

func (c *client) expectError(kind apperr.Kind) events.ErrorPayload {
	c.t.Helper()
	var payload events.ErrorPayload
	c.expect(events.TypeError, &payload)
	if payload.Kind != string(kind) {
		c.t.Fatalf("error kind=%s (%s), want %s", payload.Kind, payload.Message, kind)
	}
	return payload
}

func (c *client) join(code, deviceToken string) events.RoomStatePayload {
	c.t.Helper()
	c.send(gateway.MessageJoinRoom, gateway.JoinRoomData{RoomCode: code, DeviceToken: deviceToken})
	var state events.RoomStatePayload
	c.expect(events.TypeRoomState, &state)
	return state
}

func (c *client) host(room *gametest.Room, action gateway.HostAction, payload any) {
	c.t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
	}
	c.send(gateway.MessageHostAction, gateway.HostActionData{
		RoomCode:  room.Room.Code,
		HostToken: room.HostToken,
		Action:    action,
		Payload:   raw,
	})
}

func TestJoinRoomSendsSnapshot(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"}, "Who sleeps in?")

	c := h.dial(t)
	c.send(gateway.MessageJoinRoom, gateway.JoinRoomData{RoomCode: " " + strings.ToLower(room.Room.Code) + " "})
	var state events.RoomStatePayload
	event := c.expect(events.TypeRoomState, &state)
	if event.RoomCode != room.Room.Code {
		t.Fatalf("event room code=%q, want %q", event.RoomCode, room.Room.Code)
	}
	if state.Room.ID != room.ID() {
		t.Fatalf("snapshot room=%s, want %s", state.Room.ID, room.ID())
	}
	if len(state.Participants) != 3 || len(state.Questions) != 1 {
		t.Fatalf("snapshot has %d participants and %d questions, want 3 and 1", len(state.Participants), len(state.Questions))
	}
	if state.ConnectionCount != 1 {
		t.Fatalf("ConnectionCount=%d, want 1", state.ConnectionCount)
	}
	if strings.Contains(string(event.Data), room.HostToken) {
		t.Fatalf("snapshot leaked the host token")
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	c.send(gateway.MessageJoinRoom, gateway.JoinRoomData{RoomCode: "NOPE00"})
	c.expectError(apperr.KindNotFound)
}

func TestMalformedMessages(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage()=%v", err)
	}
	c.expectError(apperr.KindValidation)

	c.send("dance", map[string]string{})
	c.expectError(apperr.KindValidation)
}

func TestConnectionCount(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})

	first := h.dial(t)
	first.join(room.Room.Code, "")
	second := h.dial(t)
	second.join(room.Room.Code, "")

	var count events.ConnectionCountPayload
	for count.Count != 2 {
		first.expect(events.TypeConnectionCount, &count)
	}

	second.conn.Close()
	for count.Count != 1 {
		first.expect(events.TypeConnectionCount, &count)
	}
}

func TestHostActionRequiresHostToken(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})
	c := h.dial(t)
	c.join(room.Room.Code, "")

	c.send(gateway.MessageHostAction, gateway.HostActionData{
		RoomCode:  room.Room.Code,
		HostToken: "guess",
		Action:    gateway.ActionLockRoster,
	})
	c.expectError(apperr.KindAuthorization)

	c.send(gateway.MessageHostAction, gateway.HostActionData{
		RoomCode: room.Room.Code,
		Action:   gateway.ActionLockRoster,
	})
	c.expectError(apperr.KindAuthorization)

	got, err := h.Rooms.GetRoom(context.Background(), room.Room.Code)
	if err != nil {
		t.Fatalf("GetRoom()=%v", err)
	}
	if got.RosterLocked {
		t.Fatalf("rejected host action locked the roster")
	}
}

func TestHostActionBroadcastsToRoom(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})

	hostClient := h.dial(t)
	hostClient.join(room.Room.Code, "")
	watcher := h.dial(t)
	watcher.join(room.Room.Code, "")

	hostClient.host(room, gateway.ActionAddParticipant, map[string]any{"name": "Eve"})

	for _, c := range []*client{hostClient, watcher} {
		var p models.Participant
		c.expect(events.TypeParticipantAdded, &p)
		if p.Name != "Eve" {
			t.Fatalf("participant-added name=%q, want Eve", p.Name)
		}
	}

	hostClient.host(room, gateway.ActionLockRoster, nil)
	var lock events.LockPayload
	watcher.expect(events.TypeRosterLocked, &lock)
	if !lock.Locked {
		t.Fatalf("roster-locked payload=%+v, want locked", lock)
	}

	hostClient.host(room, gateway.ActionAddParticipant, map[string]any{"name": "Fay"})
	hostClient.expectError(apperr.KindStateConflict)
}

func TestMistypedLockPayloadKeepsLock(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})
	c := h.dial(t)
	c.join(room.Room.Code, "")

	c.host(room, gateway.ActionLockRoster, nil)
	var lock events.LockPayload
	c.expect(events.TypeRosterLocked, &lock)

	c.host(room, gateway.ActionLockRoster, map[string]any{"locked": "false"})
	c.expectError(apperr.KindValidation)
	c.host(room, gateway.ActionLockTeams, map[string]any{"locked": 0})
	c.expectError(apperr.KindValidation)

	got, err := h.Rooms.GetRoom(context.Background(), room.Room.Code)
	if err != nil {
		t.Fatalf("GetRoom()=%v", err)
	}
	if !got.RosterLocked || got.TeamsLocked {
		t.Fatalf("locks after mistyped payloads: roster=%v teams=%v", got.RosterLocked, got.TeamsLocked)
	}
}

func TestLiveRoundOverSocket(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob", "Cat", "Dan"}, "Who sleeps in?", "Who cooks?")
	q1 := room.Questions[0]
	red := h.Team(t, room, "Red", "Ann", "Bob")
	h.Team(t, room, "Blue", "Cat", "Dan")
	if _, err := h.Rooms.OpenPreEvent(ctx, room.ID()); err != nil {
		t.Fatalf("OpenPreEvent()=%v", err)
	}
	h.PreSubmit(t, room, "Ann", q1, room.Ranking(t, "Cat", "Dan", "Bob"))
	h.PreSubmit(t, room, "Bob", q1, room.Ranking(t, "Cat", "Dan", "Ann"))
	h.PreSubmit(t, room, "Dan", q1, room.Ranking(t, "Cat", "Bob", "Ann"))

	hostClient := h.dial(t)
	hostClient.join(room.Room.Code, "")
	phone := h.dial(t)
	phone.join(room.Room.Code, "phone-red")

	// Pair the phone with a code the host hands out
	hostClient.host(room, gateway.ActionGenerateTeamPairingCode, map[string]string{"teamId": red.ID.String()})
	var code events.TeamPairingCodePayload
	hostClient.expect(events.TypeTeamPairingCode, &code)
	phone.send(gateway.MessagePairDevice, gateway.PairDeviceData{
		RoomCode:    room.Room.Code,
		DeviceToken: "phone-red",
		PairingCode: code.Code,
	})
	var paired events.DevicePairedPayload
	phone.expect(events.TypeDevicePaired, &paired)
	if paired.Device.TeamID == nil || *paired.Device.TeamID != red.ID {
		t.Fatalf("device-paired team=%v, want %s", paired.Device.TeamID, red.ID)
	}

	hostClient.host(room, gateway.ActionStartRound, map[string]int{"roundNumber": 1})
	var started events.RoundStartedPayload
	phone.expect(events.TypeRoundStarted, &started)
	if started.Question.ID != q1.ID || started.Round.Status != models.RoundStatusActive {
		t.Fatalf("round-started=%+v", started)
	}

	ranking := room.Ranking(t, "Cat", "Dan", "Bob")
	submit := gateway.SubmitRankingData{
		RoomCode:    room.Room.Code,
		RoundID:     started.Round.ID.String(),
		TeamID:      red.ID.String(),
		DeviceToken: "phone-red",
		Rankings:    gateway.RankingsData{Rank1ID: ranking[0], Rank2ID: ranking[1], Rank3ID: ranking[2]},
	}

	// Another device cannot submit for the team
	intruder := h.dial(t)
	intruder.join(room.Room.Code, "phone-other")
	stolen := submit
	stolen.DeviceToken = "phone-other"
	intruder.send(gateway.MessageSubmitRanking, stolen)
	intruder.expectError(apperr.KindAuthorization)

	phone.send(gateway.MessageSubmitRanking, submit)
	var received events.SubmissionReceivedPayload
	hostClient.expect(events.TypeSubmissionReceived, &received)
	if received.SubmitterID != red.ID {
		t.Fatalf("submission-received submitter=%s, want %s", received.SubmitterID, red.ID)
	}

	// reveal-results closes the active round first
	hostClient.host(room, gateway.ActionRevealResults, nil)
	phone.expect(events.TypeRoundClosed, nil)
	var revealed events.RoundRevealedPayload
	phone.expect(events.TypeRoundRevealed, &revealed)
	if revealed.Round.Status != models.RoundStatusRevealed {
		t.Fatalf("revealed round status=%s", revealed.Round.Status)
	}
	if len(revealed.CommunityTop3) != 3 || revealed.CommunityTop3[0].Label != "Cat" {
		t.Fatalf("community top3=%+v, want Cat first", revealed.CommunityTop3)
	}
	var redScore int
	for _, s := range revealed.Standings {
		if s.SubmitterID == red.ID {
			redScore = s.Total
		}
	}
	if redScore != 9 {
		t.Fatalf("red total=%d, want 9", redScore)
	}

	// Submissions after the round closed are rejected, not queued
	phone.send(gateway.MessageSubmitRanking, submit)
	phone.expectError(apperr.KindStateConflict)

	hostClient.host(room, gateway.ActionRevealResults, map[string]string{"roundId": started.Round.ID.String()})
	hostClient.expectError(apperr.KindStateConflict)
}

func TestSubmitRankingValidation(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"}, "Who sleeps in?")
	other := h.CreateRoom(t, models.PlayModeTeam, []string{"Cat", "Dan"}, "Who cooks?")
	round, err := h.Rounds.StartRound(context.Background(), rounds.StartRoundRequest{RoomID: other.ID(), RoundNumber: 1})
	if err != nil {
		t.Fatalf("StartRound()=%v", err)
	}

	c := h.dial(t)
	c.join(room.Room.Code, "phone")

	cases := []struct {
		name string
		data gateway.SubmitRankingData
		kind apperr.Kind
	}{
		{"bad round id", gateway.SubmitRankingData{RoomCode: room.Room.Code, RoundID: "x", TeamID: "y"}, apperr.KindValidation},
		{"round of another room", gateway.SubmitRankingData{RoomCode: room.Room.Code, RoundID: round.ID.String(), TeamID: round.ID.String(), DeviceToken: "phone"}, apperr.KindNotFound},
		{"no submitter", gateway.SubmitRankingData{RoomCode: other.Room.Code, RoundID: round.ID.String(), DeviceToken: "phone"}, apperr.KindValidation},
		{"both submitters", gateway.SubmitRankingData{RoomCode: other.Room.Code, RoundID: round.ID.String(), TeamID: round.ID.String(), ParticipantID: round.ID.String(), DeviceToken: "phone"}, apperr.KindValidation},
	}
	for _, tc := range cases {
		c.send(gateway.MessageSubmitRanking, tc.data)
		if got := c.expectError(tc.kind); got.Message == "" {
			t.Fatalf("%s: empty error message", tc.name)
		}
	}
}

func TestQRHandler(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.server.URL + "/qr/room/abc123")
	if err != nil {
		t.Fatalf("GET=%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status=%d content-type=%q, want 200 image/png", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	magic := make([]byte, 4)
	if _, err := resp.Body.Read(magic); err != nil || string(magic[1:]) != "PNG" {
		t.Fatalf("body is not a PNG: %q %v", magic, err)
	}

	bad, err := http.Get(h.server.URL + "/qr/pairing/too-long-code")
	if err != nil {
		t.Fatalf("GET=%v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", bad.StatusCode)
	}
}

func TestConnectionStats(t *testing.T) {
	h := newHarness(t)
	room := h.CreateRoom(t, models.PlayModeTeam, []string{"Ann", "Bob"})
	c := h.dial(t)
	c.join(room.Room.Code, "phone")

	resp, err := http.Get(h.server.URL + "/ws/stats")
	if err != nil {
		t.Fatalf("GET=%v", err)
	}
	defer resp.Body.Close()
	var stats gateway.ConnectionStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalConnections != 1 || stats.ConnectedDevices != 1 || stats.RoomConnections[room.Room.Code] != 1 {
		t.Fatalf("stats=%+v", stats)
	}

	filtered, err := http.Get(h.server.URL + "/ws/stats?room=" + strings.ToLower(room.Room.Code))
	if err != nil {
		t.Fatalf("GET=%v", err)
	}
	defer filtered.Body.Close()
	var one gateway.ConnectionStats
	if err := json.NewDecoder(filtered.Body).Decode(&one); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(one.RoomConnections) != 1 || one.RoomConnections[room.Room.Code] != 1 {
		t.Fatalf("filtered stats=%+v", one)
	}
}
