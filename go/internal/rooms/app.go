package rooms

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/randcode"
	"github.com/rs/zerolog/log"
)

const (
	maxNameLength     = 50
	maxRoomNameLength = 100
	maxCodeAttempts   = 10
)

// Reader is the read side shared by every feature repository
type Reader interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetParticipantByInviteToken(ctx context.Context, token string) (*models.Participant, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListTeams(ctx context.Context, roomID uuid.UUID) ([]models.Team, error)
	GetDeviceByToken(ctx context.Context, token string) (*models.Device, error)
	ListDevices(ctx context.Context, roomID uuid.UUID) ([]models.Device, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	ListRounds(ctx context.Context, roomID uuid.UUID) ([]models.Round, error)
}

// Tx is what the room app layer needs inside a transaction
type Tx interface {
	Reader
	events.Writer
	LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	InsertRoom(ctx context.Context, room models.Room) error
	UpdateRoom(ctx context.Context, room models.Room) error
	InsertParticipant(ctx context.Context, p models.Participant) error
	UpdateParticipant(ctx context.Context, p models.Participant) error
	DeleteParticipant(ctx context.Context, id uuid.UUID) error
	InsertQuestion(ctx context.Context, q models.Question) error
}

// Repository defines what the room app layer needs from the store
type Repository interface {
	Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// TemplateStore provides the question templates rooms are created from
type TemplateStore interface {
	Template(id string) (*gameconfig.Template, error)
	Templates() []gameconfig.Template
}

// App handles room, roster and game state business logic
type App struct {
	repo      Repository
	templates TemplateStore
	clock     clockwork.Clock
}

// NewApp creates a new room App
func NewApp(repo Repository, templates TemplateStore, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:      repo,
		templates: templates,
		clock:     clock,
	}
}

// CreateRoom creates a room with its roster and questions. An explicit code
// that is already taken is a StateConflict; otherwise a random code is drawn.
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreatedRoom, error) {
	if err := a.validateCreateRoomRequest(&req); err != nil {
		return nil, err
	}

	questions := req.Questions
	if len(questions) == 0 {
		tpl, err := a.templates.Template(req.TemplateID)
		if err != nil {
			return nil, err
		}
		for _, q := range tpl.Questions {
			questions = append(questions, QuestionInput{Text: q.Text, Category: q.Category, FixedOptions: q.FixedOptions})
		}
	}

	now := a.clock.Now().UTC()
	room := models.Room{
		ID:        uuid.New(),
		Name:      req.Name,
		Status:    models.RoomStatusSetup,
		PlayMode:  req.PlayMode,
		HostToken: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := &CreatedRoom{HostToken: room.HostToken}

	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		code, err := a.allocateCode(ctx, tx, req.Code)
		if err != nil {
			return err
		}
		room.Code = code
		if err := tx.InsertRoom(ctx, room); err != nil {
			return err
		}

		result.Participants = result.Participants[:0]
		result.Invites = result.Invites[:0]
		for _, in := range req.Participants {
			p := models.Participant{
				ID:          uuid.New(),
				RoomID:      room.ID,
				Name:        in.Name,
				AvatarURL:   in.AvatarURL,
				IsHost:      in.IsHost,
				IsGuest:     in.IsGuest,
				InviteToken: uuid.NewString(),
				CreatedAt:   now,
			}
			if err := tx.InsertParticipant(ctx, p); err != nil {
				return err
			}
			result.Participants = append(result.Participants, p)
			result.Invites = append(result.Invites, Invite{ParticipantID: p.ID, Name: p.Name, InviteToken: p.InviteToken})
		}

		result.Questions = result.Questions[:0]
		for i, in := range questions {
			q := models.Question{
				ID:           uuid.New(),
				RoomID:       room.ID,
				Text:         in.Text,
				Category:     in.Category,
				SortOrder:    i,
				FixedOptions: in.FixedOptions,
				CreatedAt:    now,
			}
			if err := tx.InsertQuestion(ctx, q); err != nil {
				return err
			}
			result.Questions = append(result.Questions, q)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	result.Room = room
	log.Info().
		Str("room_code", room.Code).
		Int("participants", len(result.Participants)).
		Int("questions", len(result.Questions)).
		Msg("created room")
	return result, nil
}

func (a *App) allocateCode(ctx context.Context, tx Tx, requested string) (string, error) {
	if requested != "" {
		if _, err := tx.GetRoomByCode(ctx, requested); err == nil {
			return "", apperr.Conflictf("room code %s is already in use", requested)
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return "", err
		}
		return requested, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randcode.New(randcode.Length)
		if err != nil {
			return "", apperr.Storage(err, "failed to generate room code")
		}
		_, err = tx.GetRoomByCode(ctx, code)
		if apperr.Is(err, apperr.KindNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", apperr.Conflictf("could not allocate a unique room code after %d attempts", maxCodeAttempts)
}

// GetRoom retrieves a room by code
func (a *App) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := a.repo.GetRoomByCode(ctx, normalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// GetRoomByID retrieves a room by ID
func (a *App) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// VerifyHost returns the room when hostToken is its host token.
func (a *App) VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error) {
	room, err := a.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkHostToken(room, hostToken); err != nil {
		return nil, err
	}
	return room, nil
}

// VerifyHostForRoom is VerifyHost keyed by room ID.
func (a *App) VerifyHostForRoom(ctx context.Context, roomID uuid.UUID, hostToken string) (*models.Room, error) {
	room, err := a.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := checkHostToken(room, hostToken); err != nil {
		return nil, err
	}
	return room, nil
}

// VerifyMember returns the room when hostToken is its host token or
// inviteToken belongs to one of its participants.
func (a *App) VerifyMember(ctx context.Context, code, hostToken, inviteToken string) (*models.Room, error) {
	room, err := a.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := a.checkMember(ctx, room, hostToken, inviteToken); err != nil {
		return nil, err
	}
	return room, nil
}

// VerifyMemberForRoom is VerifyMember keyed by room ID.
func (a *App) VerifyMemberForRoom(ctx context.Context, roomID uuid.UUID, hostToken, inviteToken string) (*models.Room, error) {
	room, err := a.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := a.checkMember(ctx, room, hostToken, inviteToken); err != nil {
		return nil, err
	}
	return room, nil
}

func (a *App) checkMember(ctx context.Context, room *models.Room, hostToken, inviteToken string) error {
	if hostToken != "" && checkHostToken(room, hostToken) == nil {
		return nil
	}
	if inviteToken != "" {
		p, err := a.repo.GetParticipantByInviteToken(ctx, inviteToken)
		switch {
		case err == nil && p.RoomID == room.ID:
			return nil
		case err != nil && !apperr.Is(err, apperr.KindNotFound):
			return fmt.Errorf("failed to check invite token: %w", err)
		}
	}
	return apperr.Unauthorizedf("a host or invite token for room %s is required", room.Code)
}

func checkHostToken(room *models.Room, token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(room.HostToken), []byte(token)) != 1 {
		return apperr.Unauthorizedf("invalid host token")
	}
	return nil
}

// AddParticipant adds a participant while the roster is unlocked
func (a *App) AddParticipant(ctx context.Context, roomID uuid.UUID, in ParticipantInput) (*models.Participant, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateName("participant name", in.Name); err != nil {
		return nil, err
	}

	var p models.Participant
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.RosterLocked {
			return apperr.Conflictf("roster is locked")
		}
		if err := ensureUniqueName(ctx, tx, roomID, uuid.Nil, in.Name); err != nil {
			return err
		}

		p = models.Participant{
			ID:          uuid.New(),
			RoomID:      roomID,
			Name:        in.Name,
			AvatarURL:   in.AvatarURL,
			IsHost:      in.IsHost,
			IsGuest:     in.IsGuest,
			InviteToken: uuid.NewString(),
			CreatedAt:   a.clock.Now().UTC(),
		}
		if err := tx.InsertParticipant(ctx, p); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeParticipantAdded, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	return &p, nil
}

// UpdateParticipant changes a participant while the roster is unlocked
func (a *App) UpdateParticipant(ctx context.Context, roomID uuid.UUID, req UpdateParticipantRequest) (*models.Participant, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateName("participant name", name); err != nil {
			return nil, err
		}
		req.Name = &name
	}

	var p *models.Participant
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.RosterLocked {
			return apperr.Conflictf("roster is locked")
		}
		p, err = participantInRoom(ctx, tx, roomID, req.ParticipantID)
		if err != nil {
			return err
		}

		if req.Name != nil && *req.Name != p.Name {
			if err := ensureUniqueName(ctx, tx, roomID, p.ID, *req.Name); err != nil {
				return err
			}
			p.Name = *req.Name
		}
		if req.AvatarURL != nil {
			p.AvatarURL = req.AvatarURL
			if *req.AvatarURL == "" {
				p.AvatarURL = nil
			}
		}
		if req.IsGuest != nil {
			p.IsGuest = *req.IsGuest
		}

		if err := tx.UpdateParticipant(ctx, *p); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeParticipantUpdated, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return p, nil
}

// DeleteParticipant removes a participant that is not on a team
func (a *App) DeleteParticipant(ctx context.Context, roomID, participantID uuid.UUID) error {
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.RosterLocked {
			return apperr.Conflictf("roster is locked")
		}
		if _, err := participantInRoom(ctx, tx, roomID, participantID); err != nil {
			return err
		}

		teams, err := tx.ListTeams(ctx, roomID)
		if err != nil {
			return err
		}
		for _, t := range teams {
			if t.HasMember(participantID) {
				return apperr.Conflictf("participant is a member of team %s", t.Name)
			}
		}

		if err := tx.DeleteParticipant(ctx, participantID); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeParticipantDeleted, events.ParticipantDeletedPayload{ParticipantID: participantID})
	})
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

// SetRosterLocked locks or unlocks participant edits
func (a *App) SetRosterLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error) {
	return a.setLock(ctx, roomID, events.TypeRosterLocked, func(r *models.Room) { r.RosterLocked = locked }, locked)
}

// SetTeamsLocked locks or unlocks team creation
func (a *App) SetTeamsLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error) {
	return a.setLock(ctx, roomID, events.TypeTeamsLocked, func(r *models.Room) { r.TeamsLocked = locked }, locked)
}

// SetPreEventLocked locks or unlocks pre-event submissions
func (a *App) SetPreEventLocked(ctx context.Context, roomID uuid.UUID, locked bool) (*models.Room, error) {
	return a.setLock(ctx, roomID, events.TypePreEventLocked, func(r *models.Room) { r.PreEventLocked = locked }, locked)
}

func (a *App) setLock(ctx context.Context, roomID uuid.UUID, t events.Type, apply func(*models.Room), locked bool) (*models.Room, error) {
	var room *models.Room
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		var err error
		room, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		apply(room)
		room.UpdatedAt = a.clock.Now().UTC()
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, t, events.LockPayload{Locked: locked})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", t, err)
	}
	return room, nil
}

// OpenPreEvent moves a room out of setup so participants can pre-submit
func (a *App) OpenPreEvent(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var room *models.Room
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		var err error
		room, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusSetup {
			return apperr.Conflictf("room is %s, pre-event can only be opened from %s", room.Status, models.RoomStatusSetup)
		}
		room.Status = models.RoomStatusPreEvent
		room.UpdatedAt = a.clock.Now().UTC()
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeGameStateUpdated, events.GameStatePayload{Room: *room})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pre-event: %w", err)
	}
	return room, nil
}

// UpdateGameState applies a manual status or round index change.
// Going back to PRE_EVENT after the event started is a reset and must use the
// round reset, which also clears round data.
func (a *App) UpdateGameState(ctx context.Context, roomID uuid.UUID, upd GameStateUpdate) (*models.Room, error) {
	if upd.Status == nil && upd.CurrentRoundIndex == nil {
		return nil, apperr.Validationf("nothing to update")
	}
	if upd.Status != nil && !validStatus(*upd.Status) {
		return nil, apperr.Validationf("unknown room status %q", *upd.Status)
	}

	var room *models.Room
	err := a.repo.RunInTx(ctx, func(tx Tx) error {
		var err error
		room, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}

		if upd.Status != nil && *upd.Status != room.Status {
			if err := ValidateTransition(room.Status, *upd.Status); err != nil {
				return err
			}
			if *upd.Status == models.RoomStatusPreEvent && room.Status != models.RoomStatusSetup {
				return apperr.Conflictf("returning to %s requires a round reset", models.RoomStatusPreEvent)
			}
			if *upd.Status == models.RoomStatusCompleted {
				rounds, err := tx.ListRounds(ctx, roomID)
				if err != nil {
					return err
				}
				for _, r := range rounds {
					if r.Status == models.RoundStatusActive {
						return apperr.Conflictf("round %d is still active", r.RoundNumber)
					}
				}
			}
			room.Status = *upd.Status
		}

		if upd.CurrentRoundIndex != nil {
			idx := *upd.CurrentRoundIndex
			questions, err := tx.ListQuestions(ctx, roomID)
			if err != nil {
				return err
			}
			if idx < 0 || idx >= len(questions) {
				return apperr.Validationf("round index %d out of range 0..%d", idx, len(questions)-1)
			}
			if idx < room.CurrentRoundIndex {
				return apperr.Conflictf("round index cannot move back from %d to %d", room.CurrentRoundIndex, idx)
			}
			room.CurrentRoundIndex = idx
		}

		room.UpdatedAt = a.clock.Now().UTC()
		if err := tx.UpdateRoom(ctx, *room); err != nil {
			return err
		}
		return events.Emit(ctx, tx, *room, events.TypeGameStateUpdated, events.GameStatePayload{Room: *room})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update game state: %w", err)
	}
	return room, nil
}

// GameState returns everything a client needs to render a room.
func (a *App) GameState(ctx context.Context, code string) (*GameState, error) {
	room, err := a.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	state := &GameState{Room: *room}
	if state.Participants, err = a.repo.ListParticipants(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if state.Questions, err = a.repo.ListQuestions(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if state.Teams, err = a.repo.ListTeams(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	if state.Devices, err = a.repo.ListDevices(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	if state.Rounds, err = a.repo.ListRounds(ctx, room.ID); err != nil {
		return nil, fmt.Errorf("failed to load rounds: %w", err)
	}
	state.TotalRounds = len(state.Questions)
	state.CurrentRound = CurrentRound(*room, state.Rounds)
	return state, nil
}

// Snapshot builds the room-state payload sent to a joining client.
func (a *App) Snapshot(ctx context.Context, code string) (*events.RoomStatePayload, error) {
	state, err := a.GameState(ctx, code)
	if err != nil {
		return nil, err
	}
	return &events.RoomStatePayload{
		Room:         state.Room,
		Participants: state.Participants,
		Questions:    state.Questions,
		Teams:        state.Teams,
		Devices:      state.Devices,
		CurrentRound: state.CurrentRound,
	}, nil
}

// ListTemplates returns the question templates rooms can start from
func (a *App) ListTemplates() []gameconfig.Template {
	return a.templates.Templates()
}

// CurrentRound returns the active round, else the round at the room's index.
func CurrentRound(room models.Room, rounds []models.Round) *models.Round {
	var atIndex *models.Round
	for i := range rounds {
		if rounds[i].Status == models.RoundStatusActive {
			return &rounds[i]
		}
		if rounds[i].RoundNumber == room.CurrentRoundIndex+1 {
			atIndex = &rounds[i]
		}
	}
	return atIndex
}

func (a *App) validateCreateRoomRequest(req *CreateRoomRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxRoomNameLength {
		return apperr.Validationf("room name must be 1 to %d characters", maxRoomNameLength)
	}
	if req.Code != "" {
		req.Code = normalizeCode(req.Code)
		if !randcode.Valid(req.Code, randcode.Length) {
			return apperr.Validationf("room code must be %d letters or digits", randcode.Length)
		}
	}
	if req.PlayMode == "" {
		req.PlayMode = models.PlayModeTeam
	}
	if !req.PlayMode.Valid() {
		return apperr.Validationf("unknown play mode %q", req.PlayMode)
	}

	seen := make(map[string]bool)
	for i := range req.Participants {
		req.Participants[i].Name = strings.TrimSpace(req.Participants[i].Name)
		name := req.Participants[i].Name
		if err := validateName("participant name", name); err != nil {
			return err
		}
		key := strings.ToLower(name)
		if seen[key] {
			return apperr.Validationf("duplicate participant name %q", name)
		}
		seen[key] = true
	}

	for i := range req.Questions {
		q := &req.Questions[i]
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return apperr.Validationf("question %d has no text", i+1)
		}
		if err := validateFixedOptions(q.FixedOptions); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func validateFixedOptions(opts []string) error {
	if len(opts) == 0 {
		return nil
	}
	if len(opts) < models.RankingSize {
		return apperr.Validationf("fixed options need at least %d entries", models.RankingSize)
	}
	seen := make(map[string]bool)
	for _, o := range opts {
		if strings.TrimSpace(o) == "" {
			return apperr.Validationf("fixed options cannot be empty")
		}
		if seen[o] {
			return apperr.Validationf("duplicate fixed option %q", o)
		}
		seen[o] = true
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" || len(name) > maxNameLength {
		return apperr.Validationf("%s must be 1 to %d characters", field, maxNameLength)
	}
	return nil
}

func ensureUniqueName(ctx context.Context, tx Tx, roomID, self uuid.UUID, name string) error {
	participants, err := tx.ListParticipants(ctx, roomID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.ID != self && strings.EqualFold(p.Name, name) {
			return apperr.Conflictf("participant %q already exists", name)
		}
	}
	return nil
}

func participantInRoom(ctx context.Context, tx Tx, roomID, participantID uuid.UUID) (*models.Participant, error) {
	p, err := tx.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.RoomID != roomID {
		return nil, apperr.NotFoundf("participant not found")
	}
	return p, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
