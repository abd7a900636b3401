package presubmissions

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

// Queries extends the shared room queries with pre-submission statements
type Queries struct {
	*rooms.Queries
}

func (r *Queries) ListPreSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.PreSubmission, error) {
	return ListByParticipant(ctx, r.Q(), participantID)
}

func (r *Queries) DeletePreSubmissions(ctx context.Context, participantID uuid.UUID, questionIDs []uuid.UUID) error {
	ids := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		ids[i] = id.String()
	}
	_, err := r.Q().ExecContext(ctx, `
		DELETE FROM pre_submissions
		WHERE participant_id = $1 AND question_id = ANY($2::uuid[])`,
		participantID, pq.Array(ids),
	)
	return sqlutil.Classify(err, "pre-submission not found", "failed to delete pre-submissions")
}

func (r *Queries) InsertPreSubmission(ctx context.Context, s models.PreSubmission) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO pre_submissions (id, room_id, participant_id, question_id, rank1, rank2, rank3, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.RoomID, s.ParticipantID, s.QuestionID, s.Ranking[0], s.Ranking[1], s.Ranking[2], s.CreatedAt,
	)
	return sqlutil.Classify(err, "pre-submission not found", "failed to insert pre-submission")
}

const preSubmissionColumns = `id, room_id, participant_id, question_id, rank1, rank2, rank3, created_at`

// ListByParticipant returns a participant's pre-submissions.
func ListByParticipant(ctx context.Context, q sqlutil.Querier, participantID uuid.UUID) ([]models.PreSubmission, error) {
	return list(ctx, q, `SELECT `+preSubmissionColumns+` FROM pre_submissions WHERE participant_id = $1 ORDER BY created_at, question_id`, participantID)
}

// ListByQuestion returns every pre-submission for a question.
func ListByQuestion(ctx context.Context, q sqlutil.Querier, questionID uuid.UUID) ([]models.PreSubmission, error) {
	return list(ctx, q, `SELECT `+preSubmissionColumns+` FROM pre_submissions WHERE question_id = $1 ORDER BY created_at, participant_id`, questionID)
}

func list(ctx context.Context, q sqlutil.Querier, query string, arg any) ([]models.PreSubmission, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, sqlutil.Classify(err, "pre-submissions not found", "failed to list pre-submissions")
	}
	defer rows.Close()

	var out []models.PreSubmission
	for rows.Next() {
		var s models.PreSubmission
		if err := rows.Scan(&s.ID, &s.RoomID, &s.ParticipantID, &s.QuestionID,
			&s.Ranking[0], &s.Ranking[1], &s.Ranking[2], &s.CreatedAt); err != nil {
			return nil, sqlutil.Classify(err, "pre-submissions not found", "failed to scan pre-submission")
		}
		out = append(out, s)
	}
	return out, sqlutil.Classify(rows.Err(), "pre-submissions not found", "failed to list pre-submissions")
}

type PostgresRepository struct {
	*Queries
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		Queries: &Queries{Queries: rooms.NewQueries(db)},
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
