package pairing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
)

// Queries extends the shared room queries with device and pairing code statements
type Queries struct {
	*rooms.Queries
}

func (r *Queries) LockDevice(ctx context.Context, token string) (*models.Device, error) {
	row := r.Q().QueryRowContext(ctx, `SELECT `+rooms.DeviceColumns()+` FROM devices WHERE device_token = $1 FOR UPDATE`, token)
	d, err := rooms.ScanDevice(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "device not found", "failed to lock device")
	}
	return d, nil
}

func (r *Queries) GetDeviceByTeam(ctx context.Context, teamID uuid.UUID) (*models.Device, error) {
	row := r.Q().QueryRowContext(ctx, `SELECT `+rooms.DeviceColumns()+` FROM devices WHERE team_id = $1`, teamID)
	return optionalDevice(row, "failed to get device by team")
}

func (r *Queries) GetDeviceByParticipant(ctx context.Context, participantID uuid.UUID) (*models.Device, error) {
	row := r.Q().QueryRowContext(ctx, `SELECT `+rooms.DeviceColumns()+` FROM devices WHERE participant_id = $1`, participantID)
	return optionalDevice(row, "failed to get device by participant")
}

func optionalDevice(row *sql.Row, msg string) (*models.Device, error) {
	d, err := rooms.ScanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlutil.Classify(err, "device not found", msg)
	}
	return d, nil
}

func (r *Queries) InsertDevice(ctx context.Context, d models.Device) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO devices (id, room_id, device_token, team_id, participant_id, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.RoomID, d.Token, sqlutil.ToNullUUID(d.TeamID), sqlutil.ToNullUUID(d.ParticipantID), d.LastSeenAt, d.CreatedAt,
	)
	return sqlutil.Classify(err, "device not found", "failed to insert device")
}

func (r *Queries) UpdateDevice(ctx context.Context, d models.Device) error {
	_, err := r.Q().ExecContext(ctx, `
		UPDATE devices
		SET room_id = $2, team_id = $3, participant_id = $4, last_seen_at = $5
		WHERE id = $1`,
		d.ID, d.RoomID, sqlutil.ToNullUUID(d.TeamID), sqlutil.ToNullUUID(d.ParticipantID), d.LastSeenAt,
	)
	return sqlutil.Classify(err, "device not found", "failed to update device")
}

func (r *Queries) UnpairRoomDevices(ctx context.Context, roomID uuid.UUID) (int, error) {
	res, err := r.Q().ExecContext(ctx, `
		UPDATE devices
		SET team_id = NULL, participant_id = NULL
		WHERE room_id = $1 AND (team_id IS NOT NULL OR participant_id IS NOT NULL)`, roomID)
	if err != nil {
		return 0, sqlutil.Classify(err, "devices not found", "failed to unpair devices")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sqlutil.Classify(err, "devices not found", "failed to count unpaired devices")
	}
	return int(n), nil
}

const pairingCodeColumns = `id, room_id, team_id, code, expires_at, used, created_at`

func scanPairingCode(row *sql.Row) (*models.TeamPairingCode, error) {
	var c models.TeamPairingCode
	if err := row.Scan(&c.ID, &c.RoomID, &c.TeamID, &c.Code, &c.ExpiresAt, &c.Used, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Queries) FindReusablePairingCode(ctx context.Context, teamID uuid.UUID, now time.Time) (*models.TeamPairingCode, error) {
	row := r.Q().QueryRowContext(ctx, `
		SELECT `+pairingCodeColumns+`
		FROM team_pairing_codes
		WHERE team_id = $1 AND NOT used AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`, teamID, now)
	c, err := scanPairingCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlutil.Classify(err, "pairing code not found", "failed to find pairing code")
	}
	return c, nil
}

func (r *Queries) LockPairingCode(ctx context.Context, code string) (*models.TeamPairingCode, error) {
	row := r.Q().QueryRowContext(ctx, `SELECT `+pairingCodeColumns+` FROM team_pairing_codes WHERE code = $1 FOR UPDATE`, code)
	c, err := scanPairingCode(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "pairing code not found", "failed to get pairing code")
	}
	return c, nil
}

func (r *Queries) InsertPairingCode(ctx context.Context, c models.TeamPairingCode) error {
	_, err := r.Q().ExecContext(ctx, `
		INSERT INTO team_pairing_codes (id, room_id, team_id, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.RoomID, c.TeamID, c.Code, c.ExpiresAt, c.Used, c.CreatedAt,
	)
	return sqlutil.Classify(err, "pairing code not found", "failed to insert pairing code")
}

func (r *Queries) MarkPairingCodeUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.Q().ExecContext(ctx, `UPDATE team_pairing_codes SET used = TRUE WHERE id = $1`, id)
	return sqlutil.Classify(err, "pairing code not found", "failed to mark pairing code used")
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
