package presubmissions

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/rpcutil"
)

// ServiceName is the fully qualified RPC service name
const ServiceName = "rankparty.v1.PreSubmissionService"

// PreSubmissionApp defines what the service layer needs from the pre-submission application
type PreSubmissionApp interface {
	Save(ctx context.Context, req SaveRequest) ([]models.PreSubmission, error)
	AdminSave(ctx context.Context, req AdminSaveRequest) (*models.PreSubmission, error)
	Progress(ctx context.Context, roomCode, inviteToken string) (*Progress, error)
}

// HostVerifier checks the host token of a room
type HostVerifier interface {
	VerifyHost(ctx context.Context, code, hostToken string) (*models.Room, error)
}

type SubmissionMessage struct {
	QuestionID string   `json:"questionId"`
	Ranking    []string `json:"ranking"`
}

type SavePreSubmissionsRequest struct {
	RoomCode    string              `json:"roomCode"`
	InviteToken string              `json:"inviteToken"`
	Submissions []SubmissionMessage `json:"submissions"`
}

type SavePreSubmissionsResponse struct {
	Submissions []models.PreSubmission `json:"submissions"`
}

type ListPreSubmissionsRequest struct {
	RoomCode    string `json:"roomCode"`
	InviteToken string `json:"inviteToken"`
}

type AdminSavePreSubmissionRequest struct {
	RoomCode        string   `json:"roomCode"`
	HostToken       string   `json:"hostToken"`
	ParticipantName string   `json:"participantName"`
	QuestionID      string   `json:"questionId"`
	Ranking         []string `json:"ranking"`
}

type AdminSavePreSubmissionResponse struct {
	Submission models.PreSubmission `json:"submission"`
}

// Service implements the PreSubmissionService RPC interface
type Service struct {
	app   PreSubmissionApp
	hosts HostVerifier
}

// NewService creates a new pre-submission RPC service
func NewService(app PreSubmissionApp, hosts HostVerifier) *Service {
	return &Service{
		app:   app,
		hosts: hosts,
	}
}

// NewHandler returns the mount path and handler of the service
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpcutil.HandlerOptions(opts...)
	h := rpcutil.NewServiceHandler(ServiceName)
	h.Handle("SavePreSubmissions", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "SavePreSubmissions"), svc.SavePreSubmissions, opts...))
	h.Handle("ListPreSubmissions", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "ListPreSubmissions"), svc.ListPreSubmissions, opts...))
	h.Handle("AdminSavePreSubmission", connect.NewUnaryHandler(rpcutil.Procedure(ServiceName, "AdminSavePreSubmission"), svc.AdminSavePreSubmission, opts...))
	return h.Path(), h
}

// SavePreSubmissions saves a participant's pre-event rankings
func (s *Service) SavePreSubmissions(ctx context.Context, req *connect.Request[SavePreSubmissionsRequest]) (*connect.Response[SavePreSubmissionsResponse], error) {
	entries := make([]Entry, 0, len(req.Msg.Submissions))
	for _, m := range req.Msg.Submissions {
		qid, err := rpcutil.ParseID("questionId", m.QuestionID)
		if err != nil {
			return nil, rpcutil.Error(err)
		}
		ranking, err := ToRanking(m.Ranking)
		if err != nil {
			return nil, rpcutil.Error(err)
		}
		entries = append(entries, Entry{QuestionID: qid, Ranking: ranking})
	}

	saved, err := s.app.Save(ctx, SaveRequest{
		RoomCode:    req.Msg.RoomCode,
		InviteToken: req.Msg.InviteToken,
		Entries:     entries,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&SavePreSubmissionsResponse{Submissions: saved}), nil
}

// ListPreSubmissions returns a participant's saved rankings
func (s *Service) ListPreSubmissions(ctx context.Context, req *connect.Request[ListPreSubmissionsRequest]) (*connect.Response[Progress], error) {
	progress, err := s.app.Progress(ctx, req.Msg.RoomCode, req.Msg.InviteToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(progress), nil
}

// AdminSavePreSubmission saves a ranking on behalf of a participant
func (s *Service) AdminSavePreSubmission(ctx context.Context, req *connect.Request[AdminSavePreSubmissionRequest]) (*connect.Response[AdminSavePreSubmissionResponse], error) {
	room, err := s.hosts.VerifyHost(ctx, req.Msg.RoomCode, req.Msg.HostToken)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	qid, err := rpcutil.ParseID("questionId", req.Msg.QuestionID)
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	ranking, err := ToRanking(req.Msg.Ranking)
	if err != nil {
		return nil, rpcutil.Error(err)
	}

	saved, err := s.app.AdminSave(ctx, AdminSaveRequest{
		RoomID:          room.ID,
		ParticipantName: req.Msg.ParticipantName,
		QuestionID:      qid,
		Ranking:         ranking,
	})
	if err != nil {
		return nil, rpcutil.Error(err)
	}
	return connect.NewResponse(&AdminSavePreSubmissionResponse{Submission: *saved}), nil
}

// ToRanking converts a wire list into a ranking of exactly three entries
func ToRanking(entries []string) (models.Ranking, error) {
	var r models.Ranking
	if len(entries) != models.RankingSize {
		return r, apperr.Validationf("a ranking needs exactly %d entries, got %d", models.RankingSize, len(entries))
	}
	copy(r[:], entries)
	return r, nil
}
