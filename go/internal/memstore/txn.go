package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// txn carries every statement of every feature repository. It works on the
// private state copy of one transaction, so the Lock methods need no locking.
type txn struct {
	st      *state
	emitted []uuid.UUID
}

func notFound(msg string) error {
	return apperr.NotFoundf("%s", msg)
}

func duplicate(what string) error {
	return apperr.Conflictf("duplicate %s", what)
}

// rooms

func (t *txn) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	r, ok := t.st.rooms[id]
	if !ok {
		return nil, notFound("room not found")
	}
	return &r, nil
}

func (t *txn) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	for _, r := range t.st.rooms {
		if r.Code == code {
			return &r, nil
		}
	}
	return nil, notFound("room not found")
}

func (t *txn) LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return t.GetRoom(ctx, id)
}

func (t *txn) InsertRoom(ctx context.Context, room models.Room) error {
	if _, err := t.GetRoomByCode(ctx, room.Code); err == nil {
		return duplicate("rooms_code_key")
	}
	t.st.rooms[room.ID] = room
	return nil
}

func (t *txn) UpdateRoom(ctx context.Context, room models.Room) error {
	old, ok := t.st.rooms[room.ID]
	if !ok {
		return notFound("room not found")
	}
	room.Code = old.Code
	room.HostToken = old.HostToken
	room.CreatedAt = old.CreatedAt
	t.st.rooms[room.ID] = room
	return nil
}

// participants

func (t *txn) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p, ok := t.st.participants[id]
	if !ok {
		return nil, notFound("participant not found")
	}
	return &p, nil
}

func (t *txn) LockParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return t.GetParticipant(ctx, id)
}

func (t *txn) GetParticipantByInviteToken(ctx context.Context, token string) (*models.Participant, error) {
	for _, p := range t.st.participants {
		if p.InviteToken == token {
			return &p, nil
		}
	}
	return nil, notFound("participant not found")
}

func (t *txn) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range t.st.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p models.Participant) time.Time { return p.CreatedAt },
		func(a, b models.Participant) bool { return a.Name < b.Name })
	return out, nil
}

func (t *txn) checkParticipant(p models.Participant) error {
	for _, other := range t.st.participants {
		if other.ID == p.ID {
			continue
		}
		if other.RoomID == p.RoomID && other.Name == p.Name {
			return duplicate("participants_room_id_name_key")
		}
		if other.InviteToken == p.InviteToken {
			return duplicate("participants_invite_token_key")
		}
	}
	return nil
}

func (t *txn) InsertParticipant(ctx context.Context, p models.Participant) error {
	if _, ok := t.st.rooms[p.RoomID]; !ok {
		return notFound("room not found")
	}
	if err := t.checkParticipant(p); err != nil {
		return err
	}
	t.st.participants[p.ID] = p
	return nil
}

func (t *txn) UpdateParticipant(ctx context.Context, p models.Participant) error {
	old, ok := t.st.participants[p.ID]
	if !ok {
		return notFound("participant not found")
	}
	old.Name = p.Name
	old.AvatarURL = p.AvatarURL
	old.IsGuest = p.IsGuest
	if err := t.checkParticipant(old); err != nil {
		return err
	}
	t.st.participants[p.ID] = old
	return nil
}

// DeleteParticipant removes the participant with the rows that reference it.
func (t *txn) DeleteParticipant(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.participants[id]; !ok {
		return notFound("participant not found")
	}
	delete(t.st.participants, id)
	for k := range t.st.preSubs {
		if k.participant == id {
			delete(t.st.preSubs, k)
		}
	}
	for tid, team := range t.st.teams {
		if team.HasMember(id) {
			members := make([]uuid.UUID, 0, len(team.MemberIDs))
			for _, m := range team.MemberIDs {
				if m != id {
					members = append(members, m)
				}
			}
			team.MemberIDs = members
			t.st.teams[tid] = team
		}
	}
	for token, d := range t.st.devices {
		if d.ParticipantID != nil && *d.ParticipantID == id {
			d.ParticipantID = nil
			t.st.devices[token] = d
		}
	}
	return nil
}

// questions

func (t *txn) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, ok := t.st.questions[id]
	if !ok {
		return nil, notFound("question not found")
	}
	return &q, nil
}

func (t *txn) ListQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error) {
	var out []models.Question
	for _, q := range t.st.questions {
		if q.RoomID == roomID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *txn) InsertQuestion(ctx context.Context, q models.Question) error {
	if _, ok := t.st.rooms[q.RoomID]; !ok {
		return notFound("room not found")
	}
	q.FixedOptions = append([]string(nil), q.FixedOptions...)
	t.st.questions[q.ID] = q
	return nil
}

// teams

func (t *txn) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, ok := t.st.teams[id]
	if !ok {
		return nil, notFound("team not found")
	}
	return &team, nil
}

func (t *txn) LockTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	return t.GetTeam(ctx, id)
}

func (t *txn) ListTeams(ctx context.Context, roomID uuid.UUID) ([]models.Team, error) {
	var out []models.Team
	for _, team := range t.st.teams {
		if team.RoomID == roomID {
			out = append(out, team)
		}
	}
	sortByCreated(out, func(team models.Team) time.Time { return team.CreatedAt },
		func(a, b models.Team) bool { return a.ID.String() < b.ID.String() })
	return out, nil
}

func (t *txn) InsertTeam(ctx context.Context, team models.Team) error {
	if _, ok := t.st.rooms[team.RoomID]; !ok {
		return notFound("room not found")
	}
	for _, pid := range team.MemberIDs {
		if _, ok := t.st.participants[pid]; !ok {
			return notFound("participant not found")
		}
		for _, other := range t.st.teams {
			if other.HasMember(pid) {
				return duplicate("team_members_participant_id_key")
			}
		}
	}
	members := append([]uuid.UUID(nil), team.MemberIDs...)
	sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })
	team.MemberIDs = members
	t.st.teams[team.ID] = team
	return nil
}

func (t *txn) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.teams[id]; !ok {
		return notFound("team not found")
	}
	delete(t.st.teams, id)
	for token, d := range t.st.devices {
		if d.TeamID != nil && *d.TeamID == id {
			d.TeamID = nil
			t.st.devices[token] = d
		}
	}
	for code, pc := range t.st.pairingCodes {
		if pc.TeamID == id {
			delete(t.st.pairingCodes, code)
		}
	}
	return nil
}

// devices

func (t *txn) GetDeviceByToken(ctx context.Context, token string) (*models.Device, error) {
	d, ok := t.st.devices[token]
	if !ok {
		return nil, notFound("device not found")
	}
	return &d, nil
}

func (t *txn) LockDevice(ctx context.Context, token string) (*models.Device, error) {
	return t.GetDeviceByToken(ctx, token)
}

func (t *txn) ListDevices(ctx context.Context, roomID uuid.UUID) ([]models.Device, error) {
	var out []models.Device
	for _, d := range t.st.devices {
		if d.RoomID == roomID {
			out = append(out, d)
		}
	}
	sortByCreated(out, func(d models.Device) time.Time { return d.CreatedAt },
		func(a, b models.Device) bool { return a.Token < b.Token })
	return out, nil
}

func (t *txn) GetDeviceByTeam(ctx context.Context, teamID uuid.UUID) (*models.Device, error) {
	for _, d := range t.st.devices {
		if d.TeamID != nil && *d.TeamID == teamID {
			return &d, nil
		}
	}
	return nil, nil
}

func (t *txn) GetDeviceByParticipant(ctx context.Context, participantID uuid.UUID) (*models.Device, error) {
	for _, d := range t.st.devices {
		if d.ParticipantID != nil && *d.ParticipantID == participantID {
			return &d, nil
		}
	}
	return nil, nil
}

// checkDevice enforces the unique indexes on devices.
func (t *txn) checkDevice(d models.Device) error {
	if d.TeamID != nil && d.ParticipantID != nil {
		return apperr.Validationf("device cannot be paired to a team and a participant")
	}
	for token, other := range t.st.devices {
		if token == d.Token {
			continue
		}
		if other.ID == d.ID {
			return duplicate("devices_pkey")
		}
		if d.TeamID != nil && other.TeamID != nil && *other.TeamID == *d.TeamID {
			return duplicate("idx_devices_one_per_team")
		}
		if d.ParticipantID != nil && other.ParticipantID != nil && *other.ParticipantID == *d.ParticipantID {
			return duplicate("idx_devices_one_per_participant")
		}
	}
	return nil
}

func (t *txn) InsertDevice(ctx context.Context, d models.Device) error {
	if _, ok := t.st.devices[d.Token]; ok {
		return duplicate("devices_device_token_key")
	}
	if err := t.checkDevice(d); err != nil {
		return err
	}
	t.st.devices[d.Token] = d
	return nil
}

func (t *txn) UpdateDevice(ctx context.Context, d models.Device) error {
	old, ok := t.st.devices[d.Token]
	if !ok || old.ID != d.ID {
		return notFound("device not found")
	}
	if err := t.checkDevice(d); err != nil {
		return err
	}
	d.CreatedAt = old.CreatedAt
	t.st.devices[d.Token] = d
	return nil
}

func (t *txn) UnpairRoomDevices(ctx context.Context, roomID uuid.UUID) (int, error) {
	n := 0
	for token, d := range t.st.devices {
		if d.RoomID != roomID || (d.TeamID == nil && d.ParticipantID == nil) {
			continue
		}
		d.TeamID = nil
		d.ParticipantID = nil
		t.st.devices[token] = d
		n++
	}
	return n, nil
}

// pairing codes

func (t *txn) FindReusablePairingCode(ctx context.Context, teamID uuid.UUID, now time.Time) (*models.TeamPairingCode, error) {
	var best *models.TeamPairingCode
	for _, pc := range t.st.pairingCodes {
		if pc.TeamID != teamID || pc.Used || !pc.ExpiresAt.After(now) {
			continue
		}
		if best == nil || pc.ExpiresAt.After(best.ExpiresAt) {
			c := pc
			best = &c
		}
	}
	return best, nil
}

func (t *txn) LockPairingCode(ctx context.Context, code string) (*models.TeamPairingCode, error) {
	pc, ok := t.st.pairingCodes[code]
	if !ok {
		return nil, notFound("pairing code not found")
	}
	return &pc, nil
}

func (t *txn) InsertPairingCode(ctx context.Context, c models.TeamPairingCode) error {
	if _, ok := t.st.pairingCodes[c.Code]; ok {
		return duplicate("team_pairing_codes_code_key")
	}
	t.st.pairingCodes[c.Code] = c
	return nil
}

func (t *txn) MarkPairingCodeUsed(ctx context.Context, id uuid.UUID) error {
	for code, pc := range t.st.pairingCodes {
		if pc.ID == id {
			pc.Used = true
			t.st.pairingCodes[code] = pc
			return nil
		}
	}
	return notFound("pairing code not found")
}

// pre-submissions

func (t *txn) ListPreSubmissionsByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.PreSubmission, error) {
	var out []models.PreSubmission
	for k, s := range t.st.preSubs {
		if k.participant == participantID {
			out = append(out, s)
		}
	}
	sortByCreated(out, func(s models.PreSubmission) time.Time { return s.CreatedAt },
		func(a, b models.PreSubmission) bool { return a.QuestionID.String() < b.QuestionID.String() })
	return out, nil
}

func (t *txn) ListPreSubmissionsByQuestion(ctx context.Context, questionID uuid.UUID) ([]models.PreSubmission, error) {
	var out []models.PreSubmission
	for k, s := range t.st.preSubs {
		if k.question == questionID {
			out = append(out, s)
		}
	}
	sortByCreated(out, func(s models.PreSubmission) time.Time { return s.CreatedAt },
		func(a, b models.PreSubmission) bool { return a.ParticipantID.String() < b.ParticipantID.String() })
	return out, nil
}

func (t *txn) DeletePreSubmissions(ctx context.Context, participantID uuid.UUID, questionIDs []uuid.UUID) error {
	for _, qid := range questionIDs {
		delete(t.st.preSubs, preKey{participant: participantID, question: qid})
	}
	return nil
}

func (t *txn) InsertPreSubmission(ctx context.Context, s models.PreSubmission) error {
	k := preKey{participant: s.ParticipantID, question: s.QuestionID}
	if _, ok := t.st.preSubs[k]; ok {
		return duplicate("pre_submissions_participant_id_question_id_key")
	}
	if _, ok := t.st.questions[s.QuestionID]; !ok {
		return notFound("question not found")
	}
	t.st.preSubs[k] = s
	return nil
}

// rounds

func (t *txn) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	r, ok := t.st.rounds[id]
	if !ok {
		return nil, notFound("round not found")
	}
	return &r, nil
}

func (t *txn) LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return t.GetRound(ctx, id)
}

func (t *txn) ListRounds(ctx context.Context, roomID uuid.UUID) ([]models.Round, error) {
	var out []models.Round
	for _, r := range t.st.rounds {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (t *txn) GetRoundByNumber(ctx context.Context, roomID uuid.UUID, number int) (*models.Round, error) {
	for _, r := range t.st.rounds {
		if r.RoomID == roomID && r.RoundNumber == number {
			return &r, nil
		}
	}
	return nil, notFound("round not found")
}

func (t *txn) FindActiveRound(ctx context.Context, roomID uuid.UUID) (*models.Round, error) {
	for _, r := range t.st.rounds {
		if r.RoomID == roomID && r.Status == models.RoundStatusActive {
			return &r, nil
		}
	}
	return nil, nil
}

// checkRound enforces (room, round_number) uniqueness and one ACTIVE round per room.
func (t *txn) checkRound(round models.Round) error {
	for _, other := range t.st.rounds {
		if other.ID == round.ID || other.RoomID != round.RoomID {
			continue
		}
		if other.RoundNumber == round.RoundNumber {
			return duplicate("rounds_room_id_round_number_key")
		}
		if round.Status == models.RoundStatusActive && other.Status == models.RoundStatusActive {
			return duplicate("idx_rounds_one_active_per_room")
		}
	}
	return nil
}

func (t *txn) InsertRound(ctx context.Context, round models.Round) error {
	if _, ok := t.st.rounds[round.ID]; ok {
		return duplicate("rounds_pkey")
	}
	if err := t.checkRound(round); err != nil {
		return err
	}
	t.st.rounds[round.ID] = round
	return nil
}

func (t *txn) UpdateRound(ctx context.Context, round models.Round) error {
	old, ok := t.st.rounds[round.ID]
	if !ok {
		return notFound("round not found")
	}
	round.RoomID = old.RoomID
	round.QuestionID = old.QuestionID
	round.RoundNumber = old.RoundNumber
	round.CreatedAt = old.CreatedAt
	if err := t.checkRound(round); err != nil {
		return err
	}
	t.st.rounds[round.ID] = round
	return nil
}

func (t *txn) DeleteRoomRounds(ctx context.Context, roomID uuid.UUID) error {
	for id, r := range t.st.rounds {
		if r.RoomID != roomID {
			continue
		}
		delete(t.st.rounds, id)
		delete(t.st.roundScores, id)
		for k := range t.st.submissions {
			if k.round == id {
				delete(t.st.submissions, k)
			}
		}
	}
	return nil
}

// submissions and scores

func (t *txn) UpsertSubmission(ctx context.Context, s models.Submission) error {
	if _, ok := t.st.rounds[s.RoundID]; !ok {
		return notFound("round not found")
	}
	k := subKey{round: s.RoundID, kind: s.Kind, submitter: s.SubmitterID}
	if old, ok := t.st.submissions[k]; ok {
		s.ID = old.ID
	}
	t.st.submissions[k] = s
	return nil
}

func (t *txn) ListSubmissions(ctx context.Context, roundID uuid.UUID) ([]models.Submission, error) {
	var out []models.Submission
	for k, s := range t.st.submissions {
		if k.round == roundID {
			out = append(out, s)
		}
	}
	sortByCreated(out, func(s models.Submission) time.Time { return s.SubmittedAt },
		func(a, b models.Submission) bool { return a.SubmitterID.String() < b.SubmitterID.String() })
	return out, nil
}

func (t *txn) ReplaceRoundScores(ctx context.Context, roundID uuid.UUID, scores []models.RoundScore) error {
	if len(scores) == 0 {
		delete(t.st.roundScores, roundID)
		return nil
	}
	t.st.roundScores[roundID] = append([]models.RoundScore(nil), scores...)
	return nil
}

func (t *txn) ListRevealedRoundScores(ctx context.Context, roomID uuid.UUID) ([]models.RoundScore, error) {
	rounds, _ := t.ListRounds(ctx, roomID)
	var out []models.RoundScore
	for _, r := range rounds {
		if r.Status != models.RoundStatusRevealed {
			continue
		}
		scores := append([]models.RoundScore(nil), t.st.roundScores[r.ID]...)
		sort.Slice(scores, func(i, j int) bool { return scores[i].SubmitterID.String() < scores[j].SubmitterID.String() })
		out = append(out, scores...)
	}
	return out, nil
}

func (t *txn) ReplaceAggregates(ctx context.Context, roomID uuid.UUID, aggregates []models.AggregateScore) error {
	if len(aggregates) == 0 {
		delete(t.st.aggregates, roomID)
		return nil
	}
	t.st.aggregates[roomID] = append([]models.AggregateScore(nil), aggregates...)
	return nil
}

// outbox

func (t *txn) InsertOutbox(ctx context.Context, event models.OutboxEvent) error {
	if strings.TrimSpace(event.EventType) == "" {
		return apperr.Validationf("outbox event needs a type")
	}
	t.st.outbox = append(t.st.outbox, event)
	t.emitted = append(t.emitted, event.ID)
	return nil
}
