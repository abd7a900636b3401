// Package rpcutil holds the connect plumbing shared by the RPC services:
// a JSON codec for plain Go messages, path routing and error mapping.
package rpcutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/rs/zerolog/log"
)

// JSONCodec marshals request and response messages with encoding/json.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// HandlerOptions prepends the JSON codec to opts.
func HandlerOptions(opts ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
}

// Procedure returns the HTTP path of method on service.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

// ServiceHandler mounts unary handlers under "/<service>/".
type ServiceHandler struct {
	service string
	mux     *http.ServeMux
}

func NewServiceHandler(service string) *ServiceHandler {
	return &ServiceHandler{
		service: service,
		mux:     http.NewServeMux(),
	}
}

// Handle mounts handler for method.
func (h *ServiceHandler) Handle(method string, handler http.Handler) {
	h.mux.Handle(Procedure(h.service, method), handler)
}

// Path is the prefix to mount the handler on.
func (h *ServiceHandler) Path() string {
	return "/" + h.service + "/"
}

func (h *ServiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, h.Path()) {
		http.NotFound(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// Code maps an application error kind onto a connect code.
func Code(err error) connect.Code {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return connect.CodeInvalidArgument
	case apperr.KindAuthorization:
		return connect.CodePermissionDenied
	case apperr.KindStateConflict:
		return connect.CodeFailedPrecondition
	case apperr.KindNotFound:
		return connect.CodeNotFound
	default:
		return connect.CodeInternal
	}
}

// Error converts err into a connect error with a client safe message.
// Storage failures are logged and reported as internal.
func Error(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	code := Code(err)
	if code == connect.CodeInternal {
		log.Error().Err(err).Msg("rpc failed")
	}
	return connect.NewError(code, errors.New(apperr.PublicMessage(err)))
}

// ParseID parses a UUID field of a request message.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validationf("invalid %s: %q", field, raw)
	}
	return id, nil
}
