package sqlutil

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/rs/zerolog/log"
)

// txAttempts bounds how often Run replays a transaction that hit a
// deadlock or serialization failure.
const txAttempts = 3

// Querier is satisfied by both *sql.DB and *sql.Tx, so a repository can be
// bound to either.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Run executes fn against queries bound to a single transaction, committing
// when fn succeeds. fn may run more than once, so it must only touch q.
func Run[T any](ctx context.Context, db *sql.DB, bind func(*sql.Tx) *T, fn func(q *T) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		if err = runOnce(ctx, db, bind, fn); err == nil || !IsRetryable(err) {
			return err
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("retrying transaction")
	}
	return err
}

func runOnce[T any](ctx context.Context, db *sql.DB, bind func(*sql.Tx) *T, fn func(q *T) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage(err, "failed to begin transaction")
	}
	if err := fn(bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage(err, "failed to commit transaction")
	}
	return nil
}
