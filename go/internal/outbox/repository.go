package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

const outboxColumns = `id, room_id, room_code, event_type, payload, created_at, sent_at`

// Insert writes an event using q, which is normally the transaction that
// carries the state change the event describes.
func Insert(ctx context.Context, q sqlutil.Querier, event models.OutboxEvent) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO room_outbox (id, room_id, room_code, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.ID, event.RoomID, event.RoomCode, event.EventType, string(event.Payload), event.CreatedAt,
	)
	if err != nil {
		return sqlutil.Classify(err, "outbox event not found", fmt.Sprintf("failed to insert %s outbox event", event.EventType))
	}
	return nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// FetchUnsent returns pending events in insertion order. A limit of zero or
// less returns all of them.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM room_outbox
		WHERE sent_at IS NULL
		ORDER BY seq
		LIMIT NULLIF(GREATEST($1::int, 0), 0)`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*models.OutboxEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+outboxColumns+`
		FROM room_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)
	event, err := scanEvent(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "outbox event not found or already sent", "failed to fetch outbox event by ID")
	}
	return event, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE room_outbox SET sent_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_outbox WHERE sent_at IS NULL`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*models.OutboxEvent, error) {
	var (
		event  models.OutboxEvent
		sentAt sql.NullTime
	)
	if err := s.Scan(&event.ID, &event.RoomID, &event.RoomCode, &event.EventType, &event.Payload, &event.CreatedAt, &sentAt); err != nil {
		return nil, err
	}
	event.SentAt = sqlutil.FromSqlTime(sentAt)
	return &event, nil
}
