package rounds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/models"
)

type recordingStarter struct {
	calls chan uuid.UUID
}

func (s *recordingStarter) StartNextRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error) {
	s.calls <- roomID
	return &models.Round{RoomID: roomID, RoundNumber: 2, Status: models.RoundStatusActive}, nil
}

func waitForTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

func TestAutoAdvancerStartsAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	starter := &recordingStarter{calls: make(chan uuid.UUID, 1)}
	adv := NewAutoAdvancer(starter, clock, 10*time.Second)
	defer adv.Stop()

	roomID := uuid.New()
	adv.Schedule(roomID)
	waitForTimers(t, clock, 1)

	clock.Advance(9 * time.Second)
	select {
	case <-starter.calls:
		t.Fatalf("started before the delay elapsed")
	default:
	}

	clock.Advance(time.Second)
	select {
	case got := <-starter.calls:
		if got != roomID {
			t.Fatalf("started room %s, want %s", got, roomID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("next round was not started")
	}
}

func TestAutoAdvancerCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	starter := &recordingStarter{calls: make(chan uuid.UUID, 1)}
	adv := NewAutoAdvancer(starter, clock, 5*time.Second)
	defer adv.Stop()

	roomID := uuid.New()
	adv.Schedule(roomID)
	if !adv.Pending(roomID) {
		t.Fatalf("Pending()=false after Schedule")
	}
	adv.Cancel(roomID)
	if adv.Pending(roomID) {
		t.Fatalf("Pending()=true after Cancel")
	}

	clock.Advance(time.Minute)
	select {
	case <-starter.calls:
		t.Fatalf("cancelled timer started a round")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAutoAdvancerRescheduleReplacesTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	starter := &recordingStarter{calls: make(chan uuid.UUID, 2)}
	adv := NewAutoAdvancer(starter, clock, 5*time.Second)
	defer adv.Stop()

	roomID := uuid.New()
	adv.Schedule(roomID)
	waitForTimers(t, clock, 1)
	clock.Advance(3 * time.Second)
	adv.Schedule(roomID)
	waitForTimers(t, clock, 1)

	// the first deadline passes without a start
	clock.Advance(3 * time.Second)
	select {
	case <-starter.calls:
		t.Fatalf("replaced timer fired")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(2 * time.Second)
	select {
	case <-starter.calls:
	case <-time.After(2 * time.Second):
		t.Fatalf("rescheduled timer did not fire")
	}
}

func TestAutoAdvancerDisabled(t *testing.T) {
	adv := NewAutoAdvancer(&recordingStarter{calls: make(chan uuid.UUID, 1)}, clockwork.NewFakeClock(), 0)
	defer adv.Stop()
	if adv.Enabled() {
		t.Fatalf("Enabled()=true with zero delay")
	}
	roomID := uuid.New()
	adv.Schedule(roomID)
	if adv.Pending(roomID) {
		t.Fatalf("zero delay armed a timer")
	}
}
