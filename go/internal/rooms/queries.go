package rooms

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/mcdev12/rankparty/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// Queries holds the room scoped statements every feature repository shares.
// It runs against a *sql.DB or, inside RunInTx, a *sql.Tx.
type Queries struct {
	q sqlutil.Querier
}

func NewQueries(q sqlutil.Querier) *Queries {
	return &Queries{
		q: q,
	}
}

// Q exposes the bound querier to repositories that extend Queries.
func (r *Queries) Q() sqlutil.Querier {
	return r.q
}

const roomColumns = `id, code, name, status, current_round_index, epoch, play_mode,
	roster_locked, teams_locked, pre_event_locked, host_token, created_at, updated_at`

func (r *Queries) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "room not found", "failed to get room")
	}
	return room, nil
}

func (r *Queries) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code)
	room, err := scanRoom(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "room not found", "failed to get room by code")
	}
	return room, nil
}

// LockRoom reads the room with a row lock held until the transaction ends.
func (r *Queries) LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "room not found", "failed to lock room")
	}
	return room, nil
}

func (r *Queries) InsertRoom(ctx context.Context, room models.Room) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rooms (id, code, name, status, current_round_index, epoch, play_mode,
			roster_locked, teams_locked, pre_event_locked, host_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		room.ID, room.Code, room.Name, room.Status, room.CurrentRoundIndex, room.Epoch, room.PlayMode,
		room.RosterLocked, room.TeamsLocked, room.PreEventLocked, room.HostToken, room.CreatedAt, room.UpdatedAt,
	)
	return sqlutil.Classify(err, "room not found", "failed to insert room")
}

func (r *Queries) UpdateRoom(ctx context.Context, room models.Room) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE rooms
		SET name = $2, status = $3, current_round_index = $4, epoch = $5, play_mode = $6,
			roster_locked = $7, teams_locked = $8, pre_event_locked = $9, updated_at = $10
		WHERE id = $1`,
		room.ID, room.Name, room.Status, room.CurrentRoundIndex, room.Epoch, room.PlayMode,
		room.RosterLocked, room.TeamsLocked, room.PreEventLocked, room.UpdatedAt,
	)
	return sqlutil.Classify(err, "room not found", "failed to update room")
}

const participantColumns = `id, room_id, name, avatar_url, is_host, is_guest, invite_token, created_at`

func (r *Queries) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "participant not found", "failed to get participant")
	}
	return p, nil
}

func (r *Queries) GetParticipantByInviteToken(ctx context.Context, token string) (*models.Participant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE invite_token = $1`, token)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "participant not found", "failed to get participant by invite token")
	}
	return p, nil
}

// LockParticipant reads the participant with a row lock.
func (r *Queries) LockParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1 FOR UPDATE`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "participant not found", "failed to lock participant")
	}
	return p, nil
}

func (r *Queries) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE room_id = $1
		ORDER BY created_at, name`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "participants not found", "failed to list participants")
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, sqlutil.Classify(err, "participants not found", "failed to scan participant")
		}
		out = append(out, *p)
	}
	return out, sqlutil.Classify(rows.Err(), "participants not found", "failed to list participants")
}

func (r *Queries) InsertParticipant(ctx context.Context, p models.Participant) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO participants (id, room_id, name, avatar_url, is_host, is_guest, invite_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.RoomID, p.Name, sqlutil.ToSqlString(p.AvatarURL), p.IsHost, p.IsGuest, p.InviteToken, p.CreatedAt,
	)
	return sqlutil.Classify(err, "participant not found", "failed to insert participant")
}

func (r *Queries) UpdateParticipant(ctx context.Context, p models.Participant) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE participants SET name = $2, avatar_url = $3, is_guest = $4 WHERE id = $1`,
		p.ID, p.Name, sqlutil.ToSqlString(p.AvatarURL), p.IsGuest,
	)
	return sqlutil.Classify(err, "participant not found", "failed to update participant")
}

func (r *Queries) DeleteParticipant(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return sqlutil.Classify(err, "participant not found", "failed to delete participant")
}

const questionColumns = `id, room_id, text, category, sort_order, fixed_options, created_at`

func (r *Queries) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "question not found", "failed to get question")
	}
	return q, nil
}

func (r *Queries) ListQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE room_id = $1
		ORDER BY sort_order, id`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "questions not found", "failed to list questions")
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, sqlutil.Classify(err, "questions not found", "failed to scan question")
		}
		out = append(out, *q)
	}
	return out, sqlutil.Classify(rows.Err(), "questions not found", "failed to list questions")
}

func (r *Queries) InsertQuestion(ctx context.Context, q models.Question) error {
	opts, err := sqlutil.ToNullRawMessage(q.FixedOptions)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO questions (id, room_id, text, category, sort_order, fixed_options, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		q.ID, q.RoomID, q.Text, q.Category, q.SortOrder, sqlutil.JSONParam(opts), q.CreatedAt,
	)
	return sqlutil.Classify(err, "question not found", "failed to insert question")
}

func (r *Queries) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	return r.getTeam(ctx, id, false)
}

// LockTeam reads the team with a row lock held until the transaction ends.
func (r *Queries) LockTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	return r.getTeam(ctx, id, true)
}

func (r *Queries) getTeam(ctx context.Context, id uuid.UUID, lock bool) (*models.Team, error) {
	query := `SELECT id, room_id, name, created_at FROM teams WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var t models.Team
	err := r.q.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.RoomID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, sqlutil.Classify(err, "team not found", "failed to get team")
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT participant_id FROM team_members WHERE team_id = $1 ORDER BY participant_id`, id)
	if err != nil {
		return nil, sqlutil.Classify(err, "team not found", "failed to get team members")
	}
	defer rows.Close()
	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, sqlutil.Classify(err, "team not found", "failed to scan team member")
		}
		t.MemberIDs = append(t.MemberIDs, pid)
	}
	return &t, sqlutil.Classify(rows.Err(), "team not found", "failed to get team members")
}

func (r *Queries) ListTeams(ctx context.Context, roomID uuid.UUID) ([]models.Team, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT t.id, t.room_id, t.name, t.created_at, m.participant_id
		FROM teams t
		LEFT JOIN team_members m ON m.team_id = t.id
		WHERE t.room_id = $1
		ORDER BY t.created_at, t.id, m.participant_id`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "teams not found", "failed to list teams")
	}
	defer rows.Close()

	var out []models.Team
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			t      models.Team
			member uuid.NullUUID
		)
		if err := rows.Scan(&t.ID, &t.RoomID, &t.Name, &t.CreatedAt, &member); err != nil {
			return nil, sqlutil.Classify(err, "teams not found", "failed to scan team")
		}
		i, ok := index[t.ID]
		if !ok {
			i = len(out)
			index[t.ID] = i
			out = append(out, t)
		}
		if member.Valid {
			out[i].MemberIDs = append(out[i].MemberIDs, member.UUID)
		}
	}
	return out, sqlutil.Classify(rows.Err(), "teams not found", "failed to list teams")
}

const deviceColumns = `id, room_id, device_token, team_id, participant_id, last_seen_at, created_at`

func (r *Queries) GetDeviceByToken(ctx context.Context, token string) (*models.Device, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_token = $1`, token)
	d, err := ScanDevice(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "device not found", "failed to get device")
	}
	return d, nil
}

func (r *Queries) ListDevices(ctx context.Context, roomID uuid.UUID) ([]models.Device, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE room_id = $1
		ORDER BY created_at, device_token`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "devices not found", "failed to list devices")
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := ScanDevice(rows)
		if err != nil {
			return nil, sqlutil.Classify(err, "devices not found", "failed to scan device")
		}
		out = append(out, *d)
	}
	return out, sqlutil.Classify(rows.Err(), "devices not found", "failed to list devices")
}

const roundColumns = `id, room_id, question_id, round_number, status, mode,
	community_rank1, community_rank2, community_rank3, started_at, closed_at, revealed_at, created_at`

func (r *Queries) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	round, err := ScanRound(row)
	if err != nil {
		return nil, sqlutil.Classify(err, "round not found", "failed to get round")
	}
	return round, nil
}

func (r *Queries) ListRounds(ctx context.Context, roomID uuid.UUID) ([]models.Round, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE room_id = $1
		ORDER BY round_number`, roomID)
	if err != nil {
		return nil, sqlutil.Classify(err, "rounds not found", "failed to list rounds")
	}
	defer rows.Close()

	var out []models.Round
	for rows.Next() {
		round, err := ScanRound(rows)
		if err != nil {
			return nil, sqlutil.Classify(err, "rounds not found", "failed to scan round")
		}
		out = append(out, *round)
	}
	return out, sqlutil.Classify(rows.Err(), "rounds not found", "failed to list rounds")
}

// DeviceColumns is the select list ScanDevice expects.
func DeviceColumns() string {
	return deviceColumns
}

// RoundColumns is the select list ScanRound expects.
func RoundColumns() string {
	return roundColumns
}

func (r *Queries) InsertOutbox(ctx context.Context, event models.OutboxEvent) error {
	return outbox.Insert(ctx, r.q, event)
}

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s Scanner) (*models.Room, error) {
	var room models.Room
	err := s.Scan(&room.ID, &room.Code, &room.Name, &room.Status, &room.CurrentRoundIndex, &room.Epoch,
		&room.PlayMode, &room.RosterLocked, &room.TeamsLocked, &room.PreEventLocked, &room.HostToken,
		&room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func scanParticipant(s Scanner) (*models.Participant, error) {
	var (
		p      models.Participant
		avatar sql.NullString
	)
	if err := s.Scan(&p.ID, &p.RoomID, &p.Name, &avatar, &p.IsHost, &p.IsGuest, &p.InviteToken, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.AvatarURL = sqlutil.FromSqlStringPtr(avatar)
	return &p, nil
}

func scanQuestion(s Scanner) (*models.Question, error) {
	var (
		q    models.Question
		opts pqtype.NullRawMessage
	)
	if err := s.Scan(&q.ID, &q.RoomID, &q.Text, &q.Category, &q.SortOrder, &opts, &q.CreatedAt); err != nil {
		return nil, err
	}
	fixed, err := sqlutil.FromNullRawMessage(opts)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", q.ID, err)
	}
	q.FixedOptions = fixed
	return &q, nil
}

// ScanDevice reads a row selected with DeviceColumns.
func ScanDevice(s Scanner) (*models.Device, error) {
	var (
		d          models.Device
		team, part uuid.NullUUID
	)
	if err := s.Scan(&d.ID, &d.RoomID, &d.Token, &team, &part, &d.LastSeenAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.TeamID = sqlutil.FromNullUUID(team)
	d.ParticipantID = sqlutil.FromNullUUID(part)
	return &d, nil
}

// ScanRound reads a row selected with RoundColumns.
func ScanRound(s Scanner) (*models.Round, error) {
	var (
		round                           models.Round
		c1, c2, c3                      sql.NullString
		startedAt, closedAt, revealedAt sql.NullTime
	)
	err := s.Scan(&round.ID, &round.RoomID, &round.QuestionID, &round.RoundNumber, &round.Status, &round.Mode,
		&c1, &c2, &c3, &startedAt, &closedAt, &revealedAt, &round.CreatedAt)
	if err != nil {
		return nil, err
	}
	round.Community = models.Top3{c1.String, c2.String, c3.String}
	round.StartedAt = sqlutil.FromSqlTime(startedAt)
	round.ClosedAt = sqlutil.FromSqlTime(closedAt)
	round.RevealedAt = sqlutil.FromSqlTime(revealedAt)
	return &round, nil
}
