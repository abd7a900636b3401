package main

import (
	"fmt"
	"net/http"

	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/teams"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Register services
	registerServices(mux, services)

	// WebSocket gateway and QR codes
	services.Gateway.RegisterRoutes(mux)

	// Add health check endpoints
	setupHealthCheck(mux, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// Register room service
	roomServicePath, roomServiceHandler := rooms.NewHandler(services.Rooms)
	mux.Handle(roomServicePath, roomServiceHandler)

	// Register team service
	teamServicePath, teamServiceHandler := teams.NewHandler(services.Teams)
	mux.Handle(teamServicePath, teamServiceHandler)

	// Register pre-event submission service
	preSubmissionServicePath, preSubmissionServiceHandler := presubmissions.NewHandler(services.PreSubmissions)
	mux.Handle(preSubmissionServicePath, preSubmissionServiceHandler)

	// Register round service
	roundServicePath, roundServiceHandler := rounds.NewHandler(services.Rounds)
	mux.Handle(roundServicePath, roundServiceHandler)

	// Register pairing service
	pairingServicePath, pairingServiceHandler := pairing.NewHandler(services.Pairing)
	mux.Handle(pairingServicePath, pairingServiceHandler)
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	mux.Handle("/health/outbox", services.Health)
}
