package rooms

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
)

// ServiceName is the fully qualified RPC service name
const ServiceName = "rankparty.v1.RoomService"

// RoomApp defines what the service layer needs from the room application
type RoomApp interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreatedRoom, error)
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error)
	VerifyMember(ctx context.Context, code, hostToken, inviteToken string) (*models.Room, error)
	AddParticipant(ctx context.Context, roomID uuid.UUID, in ParticipantInput) (*models.Participant, error)
	GameState(ctx context.Context, code string) (*GameState, error)
	UpdateGameState(ctx context.Context, roomID uuid.UUID, upd GameStateUpdate) (*models.Room, error)
	ListTemplates() []gameconfig.Template
}

type GetRoomRequest struct {
	Code        string `json:"code"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type GetRoomResponse struct {
	Room   models.Room `json:"room"`
	IsHost bool        `json:"isHost"`
}

type AddParticipantRequest struct {
	Code        string           `json:"code"`
	HostToken   string           `json:"hostToken"`
	Participant ParticipantInput `json:"participant"`
}

type AddParticipantResponse struct {
	Participant models.Participant `json:"participant"`
	InviteToken string             `json:"inviteToken"`
}

type GetGameStateRequest struct {
	Code        string `json:"code"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type UpdateGameStateRequest struct {
	Code              string             `json:"code"`
	HostToken         string             `json:"hostToken"`
	Status            *models.RoomStatus `json:"status,omitempty"`
	CurrentRoundIndex *int               `json:"currentRoundIndex,omitempty"`
}

type UpdateGameStateResponse struct {
	Room models.Room `json:"room"`
}

type ListTemplatesRequest struct{}

type ListTemplatesResponse struct {
	Templates []gameconfig.Template `json:"templates"`
}

// Service implements the RoomService RPC interface
type Service struct {
	app RoomApp
}

// NewService creates a new room RPC service
func NewService(app RoomApp) *Service {
	return &Service{
		app: app,
	}
}

// NewHandler returns the mount path and handler of the service
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpcutil.HandlerOptions(opts...)
	h := rpcutil.NewServiceHandler(ServiceName)
	h.Handle("CreateRoom", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "CreateRoom"), svc.CreateRoom, opts...))
	h.Handle("GetRoom", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "GetRoom"), svc.GetRoom, opts...))
	h.Handle("AddParticipant", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "AddParticipant"), svc.AddParticipant, opts...))
	h.Handle("GetGameState", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "GetGameState"), svc.GetGameState, opts...))
	h.Handle("UpdateGameState", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "UpdateGameState"), svc.UpdateGameState, opts...))
	h.Handle("ListTemplates", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ListTemplates"), svc.ListTemplates, opts...))
	return h.Path(), h
}

// CreateRoom creates a new room. A taken explicit code is AlreadyExists.
func (s *Service) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[CreatedRoom], error) {
	created, err := s.app.CreateRoom(ctx, *req.Msg)
	if err != nil {
		if req.Msg.Code != "" && apperr.Is(err, apperr.KindStateConflict) {
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		}
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(created), nil
}

// GetRoom retrieves a room for its host or one of its participants;
// IsHost reports whether hostToken matched
func (s *Service) GetRoom(ctx context.Context, req *connect.Request[GetRoomRequest]) (*connect.Response[GetRoomResponse], error) {
	if req.Msg.Code == "" {
		return nil, rpcutil.Error(apperr.Validationf("code is required"))
	}
	room, err := s.app.VerifyMember(ctx, req.Msg.Code, req.Msg.HostToken, req.Msg.InviteToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	isHost := false
	if req.Msg.HostToken != "" {
		_, err := s.app.VerifyHost(ctx, req.Msg.Code, req.Msg.HostToken)
		isHost = err == nil
	}
	return connect.NewResponse(&GetRoomResponse{Room: *room, IsHost: isHost}), nil
}

// AddParticipant adds a participant to the roster
func (s *Service) AddParticipant(ctx context.Context, req *connect.Request[AddParticipantRequest]) (*connect.Response[AddParticipantResponse], error) {
	room, err := s.app.VerifyHost(ctx, req.Msg.Code, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	p, err := s.app.AddParticipant(ctx, room.ID, req.Msg.Participant)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&AddParticipantResponse{Participant: *p, InviteToken: p.InviteToken}), nil
}

// GetGameState returns the full read model of a room
func (s *Service) GetGameState(ctx context.Context, req *connect.Request[GetGameStateRequest]) (*connect.Response[GameState], error) {
	if _, err := s.app.VerifyMember(ctx, req.Msg.Code, req.Msg.HostToken, req.Msg.InviteToken); err != nil {
		return nil, rpcutil.Error(err)
	}
	state, err := s.app.GameState(ctx, req.Msg.Code)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(state), nil
}

// UpdateGameState changes the room status or round index
func (s *Service) UpdateGameState(ctx context.Context, req *connect.Request[UpdateGameStateRequest]) (*connect.Response[UpdateGameStateResponse], error) {
	room, err := s.app.VerifyHost(ctx, req.Msg.Code, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	updated, err := s.app.UpdateGameState(ctx, room.ID, GameStateUpdate{
		Status:            req.Msg.Status,
		CurrentRoundIndex: req.Msg.CurrentRoundIndex,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&UpdateGameStateResponse{Room: *updated}), nil
}

// ListTemplates lists the question templates
func (s *Service) ListTemplates(ctx context.Context, req *connect.Request[ListTemplatesRequest]) (*connect.Response[ListTemplatesResponse], error) {
	return connect.NewResponse(&ListTemplatesResponse{Templates: s.app.ListTemplates()}), nil
}
