package rooms

import (
	"context"
	"database/sql"

	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

// PostgresRepository is the Postgres store behind the room app layer.
type PostgresRepository struct {
	*Queries
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		Queries: NewQueries(db),
		db:      db,
	}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return sqlutil.Run(ctx, r.db, BindQueries, func(q *Queries) error {
		return fn(q)
	})
}

// BindQueries binds a Queries to a transaction for sqlutil.Run.
func BindQueries(tx *sql.Tx) *Queries {
	return NewQueries(tx)
}
