package rounds

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
)

// ServiceName is the fully qualified RPC service name
const ServiceName = "rankparty.v1.RoundService"

// RoundsApp defines what the service layer needs from the round state machine
type RoundsApp interface {
	StartRound(ctx context.Context, req StartRoundRequest) (*models.Round, error)
	CloseRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	CloseAndReveal(ctx context.Context, roundID uuid.UUID) (*RevealResult, error)
	SubmitRanking(ctx context.Context, req SubmitRequest) (*models.Submission, error)
	ResetRounds(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	ListRounds(ctx context.Context, roomID uuid.UUID) ([]models.Round, error)
	Scores(ctx context.Context, roomID uuid.UUID) (*Scoreboard, error)
}

// RoomResolver looks rooms up and checks host tokens
type RoomResolver interface {
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error)
	VerifyHostForRoom(ctx context.Context, roomID uuid.UUID, hostToken string) (*models.Room, error)
	VerifyMember(ctx context.Context, code, hostToken, inviteToken string) (*models.Room, error)
}

type StartRoundRPCRequest struct {
	RoomCode    string          `json:"roomCode"`
	HostToken   string          `json:"hostToken"`
	QuestionID  string          `json:"questionId,omitempty"`
	RoundNumber int             `json:"roundNumber"`
	Mode        models.PlayMode `json:"mode,omitempty"`
}

type RoundResponse struct {
	Round models.Round `json:"round"`
}

type RoundActionRequest struct {
	RoundID   string `json:"roundId"`
	HostToken string `json:"hostToken"`
}

type SubmitRankingRPCRequest struct {
	RoundID     string               `json:"roundId"`
	Kind        models.SubmitterKind `json:"kind"`
	SubmitterID string               `json:"submitterId"`
	DeviceToken string               `json:"deviceToken"`
	Ranking     []string             `json:"ranking"`
}

type SubmitRankingResponse struct {
	Submission models.Submission `json:"submission"`
}

type ResetRoundsRequest struct {
	RoomCode  string `json:"roomCode"`
	HostToken string `json:"hostToken"`
}

type ResetRoundsResponse struct {
	Room models.Room `json:"room"`
}

type ListRoundsRequest struct {
	RoomCode    string `json:"roomCode"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

type ListRoundsResponse struct {
	Rounds []models.Round `json:"rounds"`
}

type GetScoresRequest struct {
	RoomCode    string `json:"roomCode"`
	HostToken   string `json:"hostToken,omitempty"`
	InviteToken string `json:"inviteToken,omitempty"`
}

// Service implements the RoundService RPC interface
type Service struct {
	app   RoundsApp
	rooms RoomResolver
}

// NewService creates a new round RPC service
func NewService(app RoundsApp, rooms RoomResolver) *Service {
	return &Service{
		app:   app,
		rooms: rooms,
	}
}

// NewHandler returns the mount path and handler of the service
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpcutil.HandlerOptions(opts...)
	h := rpcutil.NewServiceHandler(ServiceName)
	h.Handle("StartRound", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "StartRound"), svc.StartRound, opts...))
	h.Handle("CloseRound", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "CloseRound"), svc.CloseRound, opts...))
	h.Handle("CalculateRound", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "CalculateRound"), svc.CalculateRound, opts...))
	h.Handle("SubmitRanking", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "SubmitRanking"), svc.SubmitRanking, opts...))
	h.Handle("ResetRounds", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ResetRounds"), svc.ResetRounds, opts...))
	h.Handle("ListRounds", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ListRounds"), svc.ListRounds, opts...))
	h.Handle("GetScores", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "GetScores"), svc.GetScores, opts...))
	return h.Path(), h
}

// StartRound starts or reopens a round
func (s *Service) StartRound(ctx context.Context, req *connect.Request[StartRoundRPCRequest]) (*connect.Response[RoundResponse], error) {
	room, err := s.rooms.VerifyHost(ctx, req.Msg.RoomCode, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	questionID := uuid.Nil
	if req.Msg.QuestionID != "" {
		if questionID, err = rpcutil.ParseID("questionId", req.Msg.QuestionID); err != nil {
			return nil, rpcutil.Error(err)
		}
	}
	round, err := s.app.StartRound(ctx, StartRoundRequest{
		RoomID:      room.ID,
		QuestionID:  questionID,
		RoundNumber: req.Msg.RoundNumber,
		Mode:        req.Msg.Mode,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&RoundResponse{Round: *round}), nil
}

// CloseRound closes an active round
func (s *Service) CloseRound(ctx context.Context, req *connect.Request[RoundActionRequest]) (*connect.Response[RoundResponse], error) {
	roundID, err := s.authorizeRound(ctx, req.Msg)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	round, err := s.app.CloseRound(ctx, roundID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&RoundResponse{Round: *round}), nil
}

// CalculateRound scores and reveals a round
func (s *Service) CalculateRound(ctx context.Context, req *connect.Request[RoundActionRequest]) (*connect.Response[RevealResult], error) {
	roundID, err := s.authorizeRound(ctx, req.Msg)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	result, err := s.app.CloseAndReveal(ctx, roundID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(result), nil
}

// SubmitRanking stores a live ranking from a paired device
func (s *Service) SubmitRanking(ctx context.Context, req *connect.Request[SubmitRankingRPCRequest]) (*connect.Response[SubmitRankingResponse], error) {
	roundID, err := rpcutil.ParseID("roundId", req.Msg.RoundID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	submitterID, err := rpcutil.ParseID("submitterId", req.Msg.SubmitterID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	ranking, err := presubmissions.ToRanking(req.Msg.Ranking)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	sub, err := s.app.SubmitRanking(ctx, SubmitRequest{
		RoundID:     roundID,
		Kind:        req.Msg.Kind,
		SubmitterID: submitterID,
		DeviceToken: req.Msg.DeviceToken,
		Ranking:     ranking,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&SubmitRankingResponse{Submission: *sub}), nil
}

// ResetRounds discards all rounds and scores of a room
func (s *Service) ResetRounds(ctx context.Context, req *connect.Request[ResetRoundsRequest]) (*connect.Response[ResetRoundsResponse], error) {
	room, err := s.rooms.VerifyHost(ctx, req.Msg.RoomCode, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	updated, err := s.app.ResetRounds(ctx, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&ResetRoundsResponse{Room: *updated}), nil
}

// ListRounds lists the rounds of a room
func (s *Service) ListRounds(ctx context.Context, req *connect.Request[ListRoundsRequest]) (*connect.Response[ListRoundsResponse], error) {
	room, err := s.rooms.VerifyMember(ctx, req.Msg.RoomCode, req.Msg.HostToken, req.Msg.InviteToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	rounds, err := s.app.ListRounds(ctx, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&ListRoundsResponse{Rounds: rounds}), nil
}

// GetScores returns the current standings of a room
func (s *Service) GetScores(ctx context.Context, req *connect.Request[GetScoresRequest]) (*connect.Response[Scoreboard], error) {
	room, err := s.rooms.VerifyMember(ctx, req.Msg.RoomCode, req.Msg.HostToken, req.Msg.InviteToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	board, err := s.app.Scores(ctx, room.ID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(board), nil
}

func (s *Service) authorizeRound(ctx context.Context, msg *RoundActionRequest) (uuid.UUID, error) {
	roundID, err := rpcutil.ParseID("roundId", msg.RoundID)
	if err != nil {
		return uuid.Nil, err
	}
	round, err := s.app.GetRound(ctx, roundID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.rooms.VerifyHostForRoom(ctx, round.RoomID, msg.HostToken); err != nil {
		return uuid.Nil, err
	}
	return roundID, nil
}
