package rounds

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/rs/zerolog/log"
)

// NextRoundStarter starts the next WAITING round of a room
type NextRoundStarter interface {
	StartNextRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error)
}

type pendingAdvance struct {
	timer clockwork.Timer
	done  chan struct{}
}

// AutoAdvancer starts the next round a fixed delay after a reveal, unless the
// host gets there first. One timer is kept per room.
type AutoAdvancer struct {
	starter NextRoundStarter
	clock   clockwork.Clock
	delay   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[uuid.UUID]*pendingAdvance
}

// NewAutoAdvancer creates an AutoAdvancer. A delay of zero disables it.
func NewAutoAdvancer(starter NextRoundStarter, clock clockwork.Clock, delay time.Duration) *AutoAdvancer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoAdvancer{
		starter: starter,
		clock:   clock,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uuid.UUID]*pendingAdvance),
	}
}

// Enabled reports whether reveals schedule a next round
func (a *AutoAdvancer) Enabled() bool {
	return a != nil && a.delay > 0
}

// Schedule arms the timer for roomID, replacing any timer already armed.
func (a *AutoAdvancer) Schedule(roomID uuid.UUID) {
	if !a.Enabled() || a.ctx.Err() != nil {
		return
	}

	p := &pendingAdvance{
		timer: a.clock.NewTimer(a.delay),
		done:  make(chan struct{}),
	}
	a.replace(roomID, p)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-p.timer.Chan():
			if !a.remove(roomID, p) {
				return
			}
			round, err := a.starter.StartNextRound(a.ctx, roomID)
			if err != nil {
				log.Warn().Err(err).Str("room_id", roomID.String()).Msg("auto advance did not start a round")
				return
			}
			log.Info().Str("room_id", roomID.String()).Int("round", round.RoundNumber).Msg("auto advanced to next round")
		case <-p.done:
		case <-a.ctx.Done():
			stopAndDrainTimer(p.timer)
		}
	}()

	log.Debug().Str("room_id", roomID.String()).Dur("delay", a.delay).Msg("scheduled auto advance")
}

// Cancel disarms the timer for roomID, if any.
func (a *AutoAdvancer) Cancel(roomID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.timers[roomID]; ok {
		stopAndDrainTimer(p.timer)
		close(p.done)
		delete(a.timers, roomID)
	}
}

// Pending reports whether a timer is armed for roomID
func (a *AutoAdvancer) Pending(roomID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[roomID]
	return ok
}

// Stop disarms every timer and waits for in-flight starts to return.
func (a *AutoAdvancer) Stop() {
	a.cancel()
	a.mu.Lock()
	for id, p := range a.timers {
		stopAndDrainTimer(p.timer)
		delete(a.timers, id)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *AutoAdvancer) replace(roomID uuid.UUID, p *pendingAdvance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.timers[roomID]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.done)
	}
	a.timers[roomID] = p
}

// remove drops p if it is still the armed timer of roomID.
func (a *AutoAdvancer) remove(roomID uuid.UUID, p *pendingAdvance) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timers[roomID] != p {
		return false
	}
	delete(a.timers, roomID)
	return true
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
