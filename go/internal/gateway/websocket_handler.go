package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the socket endpoint and its stats. Rooms are
// joined over the socket with join-room, so one connection can follow the
// host between rooms.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		// the upgrader has already replied
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade rejected")
	}
}

// HandleConnectionStats reports connection counts. ?room=CODE narrows the
// per-room breakdown to one room.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.connectionManager.GetConnectionStats()
	if code := strings.ToUpper(r.URL.Query().Get("room")); code != "" {
		stats.RoomConnections = map[string]int{code: stats.RoomConnections[code]}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("write connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
