package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

// maxPendingEvents is the backlog above which the relay reports an error.
const maxPendingEvents = 1000

type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	EventsProcessed uint64    `json:"events_processed"`
	PendingEvents   int       `json:"pending_events"`
	LastEventTime   time.Time `json:"last_event_time"`
	StoreConnected  bool      `json:"store_connected"`
	NATSConnected   bool      `json:"nats_connected"`
	RelayActive     bool      `json:"relay_active"`
	Errors          []string  `json:"errors"`
}

// Pinger is the store side of a health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PendingCounter reports the outbox backlog.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type HealthChecker struct {
	relay     *Relay
	store     Pinger
	pending   PendingCounter
	natsConn  *nats.Conn
	threshold time.Duration // How long without events before unhealthy
}

// NewHealthChecker builds a checker. store, pending and natsConn may be nil.
func NewHealthChecker(relay *Relay, store Pinger, pending PendingCounter, natsConn *nats.Conn, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:     relay,
		store:     store,
		pending:   pending,
		natsConn:  natsConn,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:        true,
		StoreConnected: true,
		Errors:         []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if h.store != nil {
		if err := h.store.PingContext(ctx); err != nil {
			status.StoreConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
	}

	if h.natsConn != nil {
		status.NATSConnected = h.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.RelayActive = h.relay.Running()
	if !status.RelayActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not active")
	}

	if status.StoreConnected && h.pending != nil {
		pending, err := h.pending.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > maxPendingEvents {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if since := time.Since(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
