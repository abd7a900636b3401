package memstore

import (
	"context"

	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/teams"
)

// Each view binds the shared store to one feature's transaction type.

type RoomRepository struct{ *Store }

func (r RoomRepository) RunInTx(ctx context.Context, fn func(tx rooms.Tx) error) error {
	return r.run(ctx, func(t *txn) error { return fn(t) })
}

type TeamRepository struct{ *Store }

func (r TeamRepository) RunInTx(ctx context.Context, fn func(tx teams.Tx) error) error {
	return r.run(ctx, func(t *txn) error { return fn(t) })
}

type PreSubmissionRepository struct{ *Store }

func (r PreSubmissionRepository) RunInTx(ctx context.Context, fn func(tx presubmissions.Tx) error) error {
	return r.run(ctx, func(t *txn) error { return fn(t) })
}

type RoundRepository struct{ *Store }

func (r RoundRepository) RunInTx(ctx context.Context, fn func(tx rounds.Tx) error) error {
	return r.run(ctx, func(t *txn) error { return fn(t) })
}

type PairingRepository struct{ *Store }

func (r PairingRepository) RunInTx(ctx context.Context, fn func(tx pairing.Tx) error) error {
	return r.run(ctx, func(t *txn) error { return fn(t) })
}

func (s *Store) Rooms() RoomRepository                   { return RoomRepository{s} }
func (s *Store) Teams() TeamRepository                   { return TeamRepository{s} }
func (s *Store) PreSubmissions() PreSubmissionRepository { return PreSubmissionRepository{s} }
func (s *Store) Rounds() RoundRepository                 { return RoundRepository{s} }
func (s *Store) Pairing() PairingRepository              { return PairingRepository{s} }

var (
	_ rooms.Repository          = RoomRepository{}
	_ teams.Repository          = TeamRepository{}
	_ presubmissions.Repository = PreSubmissionRepository{}
	_ rounds.Repository         = RoundRepository{}
	_ pairing.Repository        = PairingRepository{}
	_ rooms.Tx                  = (*txn)(nil)
	_ teams.Tx                  = (*txn)(nil)
	_ presubmissions.Tx         = (*txn)(nil)
	_ rounds.Tx                 = (*txn)(nil)
	_ pairing.Tx                = (*txn)(nil)
)
