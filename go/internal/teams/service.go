package teams

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
)

// ServiceName is the fully qualified RPC service name
const ServiceName = "rankparty.v1.TeamService"

// TeamsApp defines what the service layer needs from the teams application
type TeamsApp interface {
	CreateTeam(ctx context.Context, req CreateTeamRequest) (*models.Team, error)
	DeleteTeam(ctx context.Context, roomID, teamID uuid.UUID) error
	ListTeams(ctx context.Context, roomID uuid.UUID) ([]models.Team, error)
}

// HostVerifier checks the host and invite tokens of a room
type HostVerifier interface {
	VerifyHostForRoom(ctx context.Context, roomID uuid.UUID, hostToken string) (*models.Room, error)
	VerifyMemberForRoom(ctx context.Context, roomID uuid.UUID, hostToken, inviteToken string) (*models.Room, error)
}

type CreateTeamRPCRequest struct {
	RoomID         string   `json:"roomId"`
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participantIds"`
	HostToken      string   `json:"hostToken"`
}

type CreateTeamResponse struct {
	Team models.Team `json:"team"`
}

type ListTeamsRequest struct {
	RoomID      string `json:"roomId"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type ListTeamsResponse struct {
	Teams []models.Team `json:"teams"`
}

type DeleteTeamRequest struct {
	RoomID    string `json:"roomId"`
	TeamID    string `json:"teamId"`
	HostToken string `json:"hostToken"`
}

type DeleteTeamResponse struct{}

// Service implements the TeamService RPC interface
type Service struct {
	app   TeamsApp
	hosts HostVerifier
}

// NewService creates a new teams RPC service
func NewService(app TeamsApp, hosts HostVerifier) *Service {
	return &Service{
		app:   app,
		hosts: hosts,
	}
}

// NewHandler returns the mount path and handler of the service
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpcutil.HandlerOptions(opts...)
	h := rpcutil.NewServiceHandler(ServiceName)
	h.Handle("CreateTeam", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "CreateTeam"), svc.CreateTeam, opts...))
	h.Handle("ListTeams", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ListTeams"), svc.ListTeams, opts...))
	h.Handle("DeleteTeam", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "DeleteTeam"), svc.DeleteTeam, opts...))
	return h.Path(), h
}

// CreateTeam creates a new team
func (s *Service) CreateTeam(ctx context.Context, req *connect.Request[CreateTeamRPCRequest]) (*connect.Response[CreateTeamResponse], error) {
	roomID, err := rpcutil.ParseID("roomId", req.Msg.RoomID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	if _, err := s.hosts.VerifyHostForRoom(ctx, roomID, req.Msg.HostToken); err != nil {
		return nil, rpcutil.Error(err)
	}

	memberIDs := make([]uuid.UUID, 0, len(req.Msg.ParticipantIDs))
	for _, raw := range req.Msg.ParticipantIDs {
		id, err := rpcutil.ParseID("participantIds", raw)
		if err != nil {
			return nil, rpcutil.Error(err)
		}
		memberIDs = append(memberIDs, id)
	}

	team, err := s.app.CreateTeam(ctx, CreateTeamRequest{
		RoomID:         roomID,
		Name:           req.Msg.Name,
		ParticipantIDs: memberIDs,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&CreateTeamResponse{Team: *team}), nil
}

// ListTeams lists the teams of a room
func (s *Service) ListTeams(ctx context.Context, req *connect.Request[ListTeamsRequest]) (*connect.Response[ListTeamsResponse], error) {
	roomID, err := rpcutil.ParseID("roomId", req.Msg.RoomID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	if _, err := s.hosts.VerifyMemberForRoom(ctx, roomID, req.Msg.HostToken, req.Msg.InviteToken); err != nil {
		return nil, rpcutil.Error(err)
	}
	teams, err := s.app.ListTeams(ctx, roomID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&ListTeamsResponse{Teams: teams}), nil
}

// DeleteTeam deletes a team
func (s *Service) DeleteTeam(ctx context.Context, req *connect.Request[DeleteTeamRequest]) (*connect.Response[DeleteTeamResponse], error) {
	roomID, err := rpcutil.ParseID("roomId", req.Msg.RoomID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	teamID, err := rpcutil.ParseID("teamId", req.Msg.TeamID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	if _, err := s.hosts.VerifyHostForRoom(ctx, roomID, req.Msg.HostToken); err != nil {
		return nil, rpcutil.Error(err)
	}
	if err := s.app.DeleteTeam(ctx, roomID, teamID); err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&DeleteTeamResponse{}), nil
}
