// Package memstore is an in-process implementation of every repository, used
// for local play (STORE_DRIVER=memory) and by the app tests. Transactions run
// one at a time against a copy of the state that replaces it on commit.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
)

type preKey struct {
	participant uuid.UUID
	question    uuid.UUID
}

type subKey struct {
	round     uuid.UUID
	kind      models.SubmitterKind
	submitter uuid.UUID
}

type state struct {
	rooms        map[uuid.UUID]models.Room
	participants map[uuid.UUID]models.Participant
	questions    map[uuid.UUID]models.Question
	teams        map[uuid.UUID]models.Team
	devices      map[string]models.Device
	rounds       map[uuid.UUID]models.Round
	preSubs      map[preKey]models.PreSubmission
	submissions  map[subKey]models.Submission
	roundScores  map[uuid.UUID][]models.RoundScore
	aggregates   map[uuid.UUID][]models.AggregateScore
	pairingCodes map[string]models.TeamPairingCode
	outbox       []models.OutboxEvent
}

func newState() *state {
	return &state{
		rooms:        make(map[uuid.UUID]models.Room),
		participants: make(map[uuid.UUID]models.Participant),
		questions:    make(map[uuid.UUID]models.Question),
		teams:        make(map[uuid.UUID]models.Team),
		devices:      make(map[string]models.Device),
		rounds:       make(map[uuid.UUID]models.Round),
		preSubs:      make(map[preKey]models.PreSubmission),
		submissions:  make(map[subKey]models.Submission),
		roundScores:  make(map[uuid.UUID][]models.RoundScore),
		aggregates:   make(map[uuid.UUID][]models.AggregateScore),
		pairingCodes: make(map[string]models.TeamPairingCode),
	}
}

// clone copies every map. Stored values are replaced, never mutated in place,
// so sharing their pointer and slice fields between copies is safe.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.devices {
		c.devices[k] = v
	}
	for k, v := range s.rounds {
		c.rounds[k] = v
	}
	for k, v := range s.preSubs {
		c.preSubs[k] = v
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.roundScores {
		c.roundScores[k] = v
	}
	for k, v := range s.aggregates {
		c.aggregates[k] = v
	}
	for k, v := range s.pairingCodes {
		c.pairingCodes[k] = v
	}
	c.outbox = append([]models.OutboxEvent(nil), s.outbox...)
	return c
}

// Store holds the whole game state in memory.
type Store struct {
	mu   sync.Mutex
	data *state
	wake chan string
	sent uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		data: newState(),
		wake: make(chan string, 256),
	}
}

// Wake delivers the ID of every committed outbox event, like the Postgres
// NOTIFY channel does. Events are dropped when nobody drains it; the relay's
// fallback sweep picks them up.
func (s *Store) Wake() <-chan string {
	return s.wake
}

// run executes fn against a private copy of the state and installs the copy
// only when fn succeeds.
func (s *Store) run(ctx context.Context, fn func(t *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	t := &txn{st: s.data.clone()}
	if err := fn(t); err != nil {
		s.mu.Unlock()
		return err
	}
	s.data = t.st
	s.mu.Unlock()

	for _, id := range t.emitted {
		select {
		case s.wake <- id.String():
		default:
		}
	}
	return nil
}

// read runs fn against the committed state.
func (s *Store) read(fn func(t *txn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&txn{st: s.data})
}

// Reader methods shared by every repository view.

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (r *models.Room, err error) {
	s.read(func(t *txn) { r, err = t.GetRoom(ctx, id) })
	return
}

func (s *Store) GetRoomByCode(ctx context.Context, code string) (r *models.Room, err error) {
	s.read(func(t *txn) { r, err = t.GetRoomByCode(ctx, code) })
	return
}

func (s *Store) GetParticipant(ctx context.Context, id uuid.UUID) (p *models.Participant, err error) {
	s.read(func(t *txn) { p, err = t.GetParticipant(ctx, id) })
	return
}

func (s *Store) GetParticipantByInviteToken(ctx context.Context, token string) (p *models.Participant, err error) {
	s.read(func(t *txn) { p, err = t.GetParticipantByInviteToken(ctx, token) })
	return
}

func (s *Store) ListParticipants(ctx context.Context, roomID uuid.UUID) (out []models.Participant, err error) {
	s.read(func(t *txn) { out, err = t.ListParticipants(ctx, roomID) })
	return
}

func (s *Store) GetQuestion(ctx context.Context, id uuid.UUID) (q *models.Question, err error) {
	s.read(func(t *txn) { q, err = t.GetQuestion(ctx, id) })
	return
}

func (s *Store) ListQuestions(ctx context.Context, roomID uuid.UUID) (out []models.Question, err error) {
	s.read(func(t *txn) { out, err = t.ListQuestions(ctx, roomID) })
	return
}

func (s *Store) GetTeam(ctx context.Context, id uuid.UUID) (team *models.Team, err error) {
	s.read(func(t *txn) { team, err = t.GetTeam(ctx, id) })
	return
}

func (s *Store) ListTeams(ctx context.Context, roomID uuid.UUID) (out []models.Team, err error) {
	s.read(func(t *txn) { out, err = t.ListTeams(ctx, roomID) })
	return
}

func (s *Store) GetDeviceByToken(ctx context.Context, token string) (d *models.Device, err error) {
	s.read(func(t *txn) { d, err = t.GetDeviceByToken(ctx, token) })
	return
}

func (s *Store) ListDevices(ctx context.Context, roomID uuid.UUID) (out []models.Device, err error) {
	s.read(func(t *txn) { out, err = t.ListDevices(ctx, roomID) })
	return
}

func (s *Store) GetRound(ctx context.Context, id uuid.UUID) (r *models.Round, err error) {
	s.read(func(t *txn) { r, err = t.GetRound(ctx, id) })
	return
}

func (s *Store) ListRounds(ctx context.Context, roomID uuid.UUID) (out []models.Round, err error) {
	s.read(func(t *txn) { out, err = t.ListRounds(ctx, roomID) })
	return
}

func (s *Store) ListPreSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) (out []models.PreSubmission, err error) {
	s.read(func(t *txn) { out, err = t.ListPreSubmissionsByParticipant(ctx, participantID) })
	return
}

func (s *Store) ListAggregates(ctx context.Context, roomID uuid.UUID) (out []models.AggregateScore, err error) {
	s.read(func(t *txn) {
		out = append([]models.AggregateScore(nil), t.st.aggregates[roomID]...)
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Kind != out[j].Kind {
				return out[i].Kind < out[j].Kind
			}
			if out[i].Rank != out[j].Rank {
				return out[i].Rank < out[j].Rank
			}
			return out[i].Name < out[j].Name
		})
	})
	return
}

// Outbox store used by the relay.

func (s *Store) FetchUnsent(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data.outbox)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]models.OutboxEvent(nil), s.data.outbox[:n]...), nil
}

func (s *Store) FetchByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.data.outbox {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, notFound("outbox event not found or already sent")
}

// MarkSent drops the event; sent events are not kept in memory.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.data.outbox {
		if e.ID == id {
			s.data.outbox = append(s.data.outbox[:i:i], s.data.outbox[i+1:]...)
			s.sent++
			return nil
		}
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.outbox), nil
}

// PingContext always succeeds; it lets the store stand in for the database in health checks.
func (s *Store) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Sent returns how many outbox events were marked sent.
func (s *Store) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func sortByCreated[T any](items []T, created func(T) time.Time, tie func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return tie(items[i], items[j])
	})
}
