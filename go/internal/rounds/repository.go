package rounds

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

// Queries extends the shared room queries with round, submission and score statements
type Queries struct {
	*rooms.Queries
}

func (r *Queries) LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	row := r.Q().QueryRowContext(ctx, `SELECT `+rooms.RoundColumns()+` FROM rounds WHERE id = $1 FOR UPDATE`, id)
	round, err := rooms.ScanRound(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "round not found", "failed to lock round")
	}
	return round, nil
}

func (r *Queries) GetRoundByNumber(ctx context.Context, roomID uuid.UUID, number int) (*models.Round, error) {
	row := r.Q().QueryRowContext(ctx, `
		SELECT `+rooms.RoundColumns()+`
		FROM rounds
		WHERE room_id = $1 AND round_number = $2
		FOR UPDATE`, roomID, number)
	round, err := rooms.ScanRound(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "round not found", "failed to get round by number")
	}
	return round, nil
}

func (r *Queries) FindActiveRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error) {
	row := r.Q().QueryRowContext(ctx, `
		SELECT `+rooms.RoundColumns()+`
		FROM rounds
		WHERE room_id = $1 AND status = 'ACTIVE'`, roomID)
	round, err := rooms.ScanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlutil.Classify(err, "round not found", "failed to find active round")
	}
	return round, nil
}

func (r *Queries) InsertRound(ctx context.Context, round models.Round) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO rounds (id, room_id, question_id, round_number, status, mode,
			community_rank1, community_rank2, community_rank3, started_at, closed_at, revealed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		round.ID, round.RoomID, round.QuestionID, round.RoundNumber, round.Status, round.Mode,
		sqlutil.ToNullText(round.Community[0]), sqlutil.ToNullText(round.Community[1]), sqlutil.ToNullText(round.Community[2]),
		sqlutil.ToSqlTime(round.StartedAt), sqlutil.ToSqlTime(round.ClosedAt), sqlutil.ToSqlTime(round.RevealedAt), round.CreatedAt,
	)
	return sqlutil.Classify(err, "round not found", "failed to insert round")
}

func (r *Queries) UpdateRound(ctx context.Context, round models.Round) error {
	_, err := r.Q().ExecContext(ctx, `
		UPDATE rounds
		SET status = $2, mode = $3, community_rank1 = $4, community_rank2 = $5, community_rank3 = $6,
			started_at = $7, closed_at = $8, revealed_at = $9
		WHERE id = $1`,
		round.ID, round.Status, round.Mode,
		sqlutil.ToNullText(round.Community[0]), sqlutil.ToNullText(round.Community[1]), sqlutil.ToNullText(round.Community[2]),
		sqlutil.ToSqlTime(round.StartedAt), sqlutil.ToSqlTime(round.ClosedAt), sqlutil.ToSqlTime(round.RevealedAt),
	)
	return sqlutil.Classify(err, "round not found", "failed to update round")
}

// DeleteRoomRounds removes every round of the room. Submissions and round
// scores go with them through ON DELETE CASCADE.
func (r *Queries) DeleteRoomRounds(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.Q().ExecContext(ctx, `DELETE FROM rounds WHERE room_id = $1`, roomID)
	return sqlutil.Classify(err, "rounds not found", "failed to delete rounds")
}

func (r *Queries) ListPreSubmissionsByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.PreSubmission, error) {
	return presubmissions.ListByQuestion(ctx, r.Q(), questionID)
}

// UpsertSubmission keeps one submission per submitter and round; the latest wins.
func (r *Queries) UpsertSubmission(ctx context.Context, s models.Submission) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO submissions (id, round_id, submitter_kind, submitter_id, rank1, rank2, rank3, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (round_id, submitter_kind, submitter_id)
		DO UPDATE SET rank1 = EXCLUDED.rank1, rank2 = EXCLUDED.rank2, rank3 = EXCLUDED.rank3,
			submitted_at = EXCLUDED.submitted_at`,
		s.ID, s.RoundID, s.Kind, s.SubmitterID, s.Ranking[0], s.Ranking[1], s.Ranking[2], s.SubmittedAt,
	)
	return sqlutil.Classify(err, "submission not found", "failed to upsert submission")
}

func (r *Queries) ListSubmissions(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	rows, err := r.Q().QueryContext(ctx, `
		SELECT id, round_id, submitter_kind, submitter_id, rank1, rank2, rank3, submitted_at
		FROM submissions
		WHERE round_id = $1
		ORDER BY submitted_at, submitter_id`, roundID)
	if err != nil {
		return nil, sqlutil.Classify(err, "submissions not found", "failed to list submissions")
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.RoundID, &s.Kind, &s.SubmitterID,
			&s.Ranking[0], &s.Ranking[1], &s.Ranking[2], &s.SubmittedAt); err != nil {
			return nil, sqlutil.Classify(err, "submissions not found", "failed to scan submission")
		}
		out = append(out, s)
	}
	return out, sqlutil.Classify(rows.Err(), "submissions not found", "failed to list submissions")
}

func (r *Queries) ReplaceRoundScores(ctx context.Context, roundID uuid.UUID, scores []models.RoundScore) error {
	if _, err := r.Q().ExecContext(ctx, `DELETE FROM round_scores WHERE round_id = $1`, roundID); err != nil {
		return sqlutil.Classify(err, "round scores not found", "failed to clear round scores")
	}
	for _, s := range scores {
		_, err := r.Q().ExecContext(ctx, `
			INSERT INTO round_scores (round_id, submitter_kind, submitter_id, points)
			VALUES ($1, $2, $3, $4)`,
			s.RoundID, s.Kind, s.SubmitterID, s.Points,
		)
		if err != nil {
			return sqlutil.Classify(err, "round scores not found", "failed to insert round score")
		}
	}
	return nil
}

// ListRevealedRoundScores returns the scores of every REVEALED round of the room.
func (r *Queries) ListRevealedRoundScores(ctx context.Context, roomID uuid.UUID) ([]models.RoundScore, error) {
	rows, err := r.Q().QueryContext(ctx, `
		SELECT s.round_id, s.submitter_kind, s.submitter_id, s.points
		FROM round_scores s
		JOIN rounds r ON r.id = s.round_id
		WHERE r.room_id = $1 AND r.status = 'REVEALED'
		ORDER BY r.round_number, s.submitter_id`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "round scores not found", "failed to list round scores")
	}
	defer rows.Close()

	var out []models.RoundScore
	for rows.Next() {
		var s models.RoundScore
		if err := rows.Scan(&s.RoundID, &s.Kind, &s.SubmitterID, &s.Points); err != nil {
			return nil, sqlutil.Classify(err, "round scores not found", "failed to scan round score")
		}
		out = append(out, s)
	}
	return out, sqlutil.Classify(rows.Err(), "round scores not found", "failed to list round scores")
}

func (r *Queries) ReplaceAggregates(ctx context.Context, roomID uuid.UUID, aggregates []models.AggregateScore) error {
	if _, err := r.Q().ExecContext(ctx, `DELETE FROM aggregate_scores WHERE room_id = $1`, roomID); err != nil {
		return sqlutil.Classify(err, "standings not found", "failed to clear standings")
	}
	for _, a := range aggregates {
		_, err := r.Q().ExecContext(ctx, `
			INSERT INTO aggregate_scores (room_id, submitter_kind, submitter_id, name, total, rank, through_round)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			roomID, a.Kind, a.SubmitterID, a.Name, a.Total, a.Rank, a.ThroughRound,
		)
		if err != nil {
			return sqlutil.Classify(err, "standings not found", "failed to insert standing")
		}
	}
	return nil
}

func (r *Queries) ListAggregates(ctx context.Context, roomID uuid.UUID) ([]models.AggregateScore, error) {
	rows, err := r.Q().QueryContext(ctx, `
		SELECT room_id, submitter_kind, submitter_id, name, total, rank, through_round
		FROM aggregate_scores
		WHERE room_id = $1
		ORDER BY submitter_kind, rank, name`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "standings not found", "failed to list standings")
	}
	defer rows.Close()

	var out []models.AggregateScore
	for rows.Next() {
		var a models.AggregateScore
		if err := rows.Scan(&a.RoomID, &a.Kind, &a.SubmitterID, &a.Name, &a.Total, &a.Rank, &a.ThroughRound); err != nil {
			return nil, sqlutil.Classify(err, "standings not found", "failed to scan standing")
		}
		out = append(out, a)
	}
	return out, sqlutil.Classify(rows.Err(), "standings not found", "failed to list standings")
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
