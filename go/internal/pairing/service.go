package pairing

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
)

// ServiceName is the fully qualified RPC service name
const ServiceName = "rankparty.v1.PairingService"

// PairingApp defines what the service layer needs from the pairing registry
type PairingApp interface {
	PairDeviceToTeam(ctx context.Context, deviceToken string, teamID, roomID uuid.UUID) (*models.Device, error)
	PairDeviceToParticipant(ctx context.Context, deviceToken string, participantID, roomID uuid.UUID) (*models.Device, error)
	PairWithCode(ctx context.Context, roomID uuid.UUID, deviceToken, code string) (*models.Device, error)
	UnpairDevice(ctx context.Context, deviceToken string) error
	UnpairTeam(ctx context.Context, teamID uuid.UUID) error
	ClearAllPairings(ctx context.Context, roomID uuid.UUID) (int, error)
	GenerateTeamPairingCode(ctx context.Context, roomID, teamID uuid.UUID) (*models.TeamPairingCode, error)
	ListDevices(ctx context.Context, roomID uuid.UUID) ([]models.Device, error)
}

// RoomResolver looks rooms up and checks host and invite tokens
type RoomResolver interface {
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error)
	VerifyMember(ctx context.Context, code, hostToken, inviteToken string) (*models.Room, error)
}

// AdminVerifier checks the shared admin secret
type AdminVerifier interface {
	Verify(secret string) error
}

type PairTeamRequest struct {
	RoomCode    string `json:"roomCode"`
	TeamID      string `json:"teamId"`
	DeviceToken string `json:"deviceToken"`
}

type PairParticipantRequest struct {
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId"`
	DeviceToken   string `json:"deviceToken"`
}

type PairWithCodeRequest struct {
	RoomCode    string `json:"roomCode"`
	PairingCode string `json:"pairingCode"`
	DeviceToken string `json:"deviceToken"`
}

type DeviceResponse struct {
	Device models.Device `json:"device"`
}

type UnpairRequest struct {
	DeviceToken string `json:"deviceToken"`
}

type UnpairResponse struct{}

type UnpairTeamRequest struct {
	TeamID      string `json:"teamId"`
	AdminSecret string `json:"adminSecret"`
}

type ClearAllPairingsRequest struct {
	RoomCode    string `json:"roomCode"`
	AdminSecret string `json:"adminSecret"`
}

type ClearAllPairingsResponse struct {
	UnpairedCount int `json:"unpairedCount"`
}

type GeneratePairingCodeRequest struct {
	RoomCode  string `json:"roomCode"`
	HostToken string `json:"hostToken"`
	TeamID    string `json:"teamId"`
}

type GeneratePairingCodeResponse struct {
	Code      string    `json:"code"`
	TeamID    string    `json:"teamId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ListDevicesRequest struct {
	RoomCode    string `json:"roomCode"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type ListDevicesResponse struct {
	Devices []models.Device `json:"devices"`
}

// Service implements the PairingService RPC interface
type Service struct {
	app   PairingApp
	rooms RoomResolver
	admin AdminVerifier
}

// NewService creates a new pairing RPC service
func NewService(app PairingApp, rooms RoomResolver, admin AdminVerifier) *Service {
	return &Service{
		app:   app,
		rooms: rooms,
		admin: admin,
	}
}

// NewHandler returns the mount path and handler of the service
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpcutil.HandlerOptions(opts...)
	h := rpcutil.NewServiceHandler(ServiceName)
	h.Handle("PairTeam", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "PairTeam"), svc.PairTeam, opts...))
	h.Handle("PairParticipant", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "PairParticipant"), svc.PairParticipant, opts...))
	h.Handle("PairWithCode", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "PairWithCode"), svc.PairWithCode, opts...))
	h.Handle("Unpair", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "Unpair"), svc.Unpair, opts...))
	h.Handle("UnpairTeam", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "UnpairTeam"), svc.UnpairTeam, opts...))
	h.Handle("ClearAllPairings", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ClearAllPairings"), svc.ClearAllPairings, opts...))
	h.Handle("GeneratePairingCode", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "GeneratePairingCode"), svc.GeneratePairingCode, opts...))
	h.Handle("ListDevices", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ListDevices"), svc.ListDevices, opts...))
	return h.Path(), h
}

// PairTeam pairs a device to a team
func (s *Service) PairTeam(ctx context.Context, req *connect.Request[PairTeamRequest]) (*connect.Response[DeviceResponse], error) {
	room, err := s.rooms.GetRoom(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	teamID, err := rpcutil.ParseID("teamId", req.Msg.TeamID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	device, err := s.app.PairDeviceToTeam(ctx, req.Msg.DeviceToken, teamID, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&DeviceResponse{Device: *device}), nil
}

// PairParticipant pairs a device to a participant for individual play
func (s *Service) PairParticipant(ctx context.Context, req *connect.Request[PairParticipantRequest]) (*connect.Response[DeviceResponse], error) {
	room, err := s.rooms.GetRoom(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	participantID, err := rpcutil.ParseID("participantId", req.Msg.ParticipantID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	device, err := s.app.PairDeviceToParticipant(ctx, req.Msg.DeviceToken, participantID, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&DeviceResponse{Device: *device}), nil
}

// PairWithCode redeems a team pairing code
func (s *Service) PairWithCode(ctx context.Context, req *connect.Request[PairWithCodeRequest]) (*connect.Response[DeviceResponse], error) {
	room, err := s.rooms.GetRoom(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	device, err := s.app.PairWithCode(ctx, room.ID, req.Msg.DeviceToken, req.Msg.PairingCode)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&DeviceResponse{Device: *device}), nil
}

// Unpair clears the pairing of the calling device
func (s *Service) Unpair(ctx context.Context, req *connect.Request[UnpairRequest]) (*connect.Response[UnpairResponse], error) {
	if err := s.app.UnpairDevice(ctx, req.Msg.DeviceToken); err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&UnpairResponse{}), nil
}

// UnpairTeam clears the device of a team. Requires the admin secret.
func (s *Service) UnpairTeam(ctx context.Context, req *connect.Request[UnpairTeamRequest]) (*connect.Response[UnpairResponse], error) {
	if err := s.admin.Verify(req.Msg.AdminSecret); err != nil {
		return nil, rpcutil.Error(err)
	}
	teamID, err := rpcutil.ParseID("teamId", req.Msg.TeamID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	if err := s.app.UnpairTeam(ctx, teamID); err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&UnpairResponse{}), nil
}

// ClearAllPairings unpairs every device of a room. Requires the admin secret.
func (s *Service) ClearAllPairings(ctx context.Context, req *connect.Request[ClearAllPairingsRequest]) (*connect.Response[ClearAllPairingsResponse], error) {
	if err := s.admin.Verify(req.Msg.AdminSecret); err != nil {
		return nil, rpcutil.Error(err)
	}
	room, err := s.rooms.GetRoom(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	n, err := s.app.ClearAllPairings(ctx, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&ClearAllPairingsResponse{UnpairedCount: n}), nil
}

// GeneratePairingCode issues a team pairing code for the host
func (s *Service) GeneratePairingCode(ctx context.Context, req *connect.Request[GeneratePairingCodeRequest]) (*connect.Response[GeneratePairingCodeResponse], error) {
	room, err := s.rooms.VerifyHost(ctx, req.Msg.RoomCode, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	teamID, err := rpcutil.ParseID("teamId", req.Msg.TeamID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	pc, err := s.app.GenerateTeamPairingCode(ctx, room.ID, teamID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&GeneratePairingCodeResponse{
		Code:      pc.Code,
		TeamID:    pc.TeamID.String(),
		ExpiresAt: pc.ExpiresAt,
	}), nil
}

// ListDevices lists the devices of a room
func (s *Service) ListDevices(ctx context.Context, req *connect.Request[ListDevicesRequest]) (*connect.Response[ListDevicesResponse], error) {
	room, err := s.rooms.VerifyMember(ctx, req.Msg.RoomCode, req.Msg.HostToken, req.Msg.InviteToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	devices, err := s.app.ListDevices(ctx, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&ListDevicesResponse{Devices: devices}), nil
}
