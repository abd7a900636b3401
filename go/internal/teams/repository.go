package teams

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

// Queries extends the shared room queries with team writes
type Queries struct {
	*rooms.Queries
}

func (r *Queries) InsertTeam(ctx context.Context, team models.Team) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO teams (id, room_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		team.ID, team.RoomID, team.Name, team.CreatedAt,
	)
	if err != nil {
		return sqlutil.Classify(err, "team not found", "failed to insert team")
	}
	for _, pid := range team.MemberIDs {
		_, err := r.Q().ExecContext(ctx, `
			INSERT INTO team_members (team_id, participant_id) VALUES ($1, $2)`, team.ID, pid)
		if err != nil {
			return sqlutil.Classify(err, "team not found", "failed to insert team member")
		}
	}
	return nil
}

func (r *Queries) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	_, err := r.Q().ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	return sqlutil.Classify(err, "team not found", "failed to delete team")
}

type PostgresRepository struct {
	*rooms.Queries
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		Queries: rooms.NewQueries(db),
		db:      db,
	}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return sqlutil.Run(ctx, r.db, bindQueries, func(q *Queries) error {
		return fn(q)
	})
}

func bindQueries(tx *sql.Tx) *Queries {
	return &Queries{Queries: rooms.BindQueries(tx)}
}
