package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/rankparty/go/internal/events"
	"github.com/rs/zerolog/log"
)

// MessageHandler handles one message read from a connection
type MessageHandler interface {
	Handle(ctx context.Context, c *Connection, message []byte)
}

// ConnectionManager manages WebSocket connections grouped by room. It is an
// index for delivery only; the store stays the source of truth.
type ConnectionManager struct {
	// Connection pools organized by room code
	roomConnections map[string]map[*Connection]bool
	// Latest connection of each device token
	deviceConnections map[string]*Connection
	mu                sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  MessageHandler

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID          string
	RoomCode    string
	DeviceToken string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	ConnectedAt time.Time

	// guarded by Manager.mu
	registered bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	RequestTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	RoomCode    string
	Event       *RoomEvent
	DeviceToken string // Optional: if set, only send to this device
}

// ConnectionStats describes the active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	ConnectedDevices int            `json:"connected_devices"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		RequestTimeout:  10 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Phones join from the party host's LAN address
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, handler MessageHandler) *ConnectionManager {
	return &ConnectionManager{
		roomConnections:   make(map[string]map[*Connection]bool),
		deviceConnections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		handler:     handler,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. The connection
// joins no room until it sends join-room.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.mu.Lock()
	connection.registered = true
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

// Join moves c into the room group of roomCode and indexes its device token.
// Both the left and the joined room get a connection-count update.
func (cm *ConnectionManager) Join(c *Connection, roomCode, deviceToken string) int {
	cm.mu.Lock()
	if !c.registered {
		cm.mu.Unlock()
		return 0
	}
	previous := c.RoomCode
	if previous != "" && previous != roomCode {
		cm.leaveRoomLocked(c)
	}
	if cm.roomConnections[roomCode] == nil {
		cm.roomConnections[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomCode][c] = true
	c.RoomCode = roomCode
	if deviceToken != "" {
		cm.bindDeviceLocked(c, deviceToken)
	}
	count := len(cm.roomConnections[roomCode])
	previousCount := len(cm.roomConnections[previous])
	cm.mu.Unlock()

	log.Debug().
		Str("connection_id", c.ID).
		Str("room_code", roomCode).
		Int("total_connections", count).
		Msg("connection joined room")

	if previous != "" && previous != roomCode {
		cm.broadcastCount(previous, previousCount)
	}
	cm.broadcastCount(roomCode, count)
	return count
}

// BindDevice points deviceToken at c for targeted delivery
func (cm *ConnectionManager) BindDevice(c *Connection, deviceToken string) {
	if deviceToken == "" {
		return
	}
	cm.mu.Lock()
	cm.bindDeviceLocked(c, deviceToken)
	cm.mu.Unlock()
}

func (cm *ConnectionManager) bindDeviceLocked(c *Connection, deviceToken string) {
	if c.DeviceToken != "" && c.DeviceToken != deviceToken && cm.deviceConnections[c.DeviceToken] == c {
		delete(cm.deviceConnections, c.DeviceToken)
	}
	// A reconnecting device replaces its stale connection
	cm.deviceConnections[deviceToken] = c
	c.DeviceToken = deviceToken
}

func (cm *ConnectionManager) leaveRoomLocked(c *Connection) {
	connections, exists := cm.roomConnections[c.RoomCode]
	if !exists {
		return
	}
	delete(connections, c)
	if len(connections) == 0 {
		delete(cm.roomConnections, c.RoomCode)
	}
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if !conn.registered {
		cm.mu.Unlock()
		return
	}
	conn.registered = false
	close(conn.Send)

	roomCode := conn.RoomCode
	cm.leaveRoomLocked(conn)
	if conn.DeviceToken != "" && cm.deviceConnections[conn.DeviceToken] == conn {
		delete(cm.deviceConnections, conn.DeviceToken)
	}
	remaining := len(cm.roomConnections[roomCode])
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Str("device_token", conn.DeviceToken).
		Msg("connection unregistered")

	if roomCode != "" && remaining > 0 {
		cm.broadcastCount(roomCode, remaining)
	}
}

func (cm *ConnectionManager) broadcastCount(roomCode string, count int) {
	event, err := NewRoomEvent(roomCode, events.TypeConnectionCount, events.ConnectionCountPayload{Count: count})
	if err != nil {
		log.Error().Err(err).Msg("failed to build connection count event")
		return
	}
	cm.BroadcastToRoom(roomCode, event)
}

// BroadcastToRoom sends an event to all connections of a room
func (cm *ConnectionManager) BroadcastToRoom(roomCode string, event *RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: roomCode, Event: event}:
	default:
		log.Warn().Str("room_code", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToDevice sends an event to the connection of one device in a room
func (cm *ConnectionManager) BroadcastToDevice(roomCode, deviceToken string, event *RoomEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoomCode: roomCode, Event: event, DeviceToken: deviceToken}:
	default:
		log.Warn().
			Str("room_code", roomCode).
			Msg("broadcast channel full, dropping device message")
	}
}

// SendTo writes an event to a single connection, bypassing the broadcast
// queue. It reports false when the connection is gone or backed up.
func (cm *ConnectionManager) SendTo(c *Connection, event *RoomEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return false
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !c.registered {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// RoomConnectionCount returns the number of connections in a room
func (cm *ConnectionManager) RoomConnectionCount(roomCode string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.roomConnections[roomCode])
}

// DeviceConnected reports whether a device has a live connection
func (cm *ConnectionManager) DeviceConnected(deviceToken string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.deviceConnections[deviceToken]
	return ok
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var targets []*Connection
	if message.DeviceToken != "" {
		cm.mu.RLock()
		if c, ok := cm.deviceConnections[message.DeviceToken]; ok && c.RoomCode == message.RoomCode {
			targets = append(targets, c)
		}
	} else {
		cm.mu.RLock()
		for c := range cm.roomConnections[message.RoomCode] {
			targets = append(targets, c)
		}
	}

	// Sends happen under the read lock so a concurrent unregister cannot
	// close a Send channel mid-write.
	var slow []*Connection
	for _, c := range targets {
		select {
		case c.Send <- eventData:
		default:
			slow = append(slow, c)
		}
	}
	cm.mu.RUnlock()

	for _, c := range slow {
		log.Warn().
			Str("connection_id", c.ID).
			Str("room_code", message.RoomCode).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(c)
		c.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_code", message.RoomCode).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:      len(cm.roomConnections),
		ConnectedDevices: len(cm.deviceConnections),
		RoomConnections:  make(map[string]int, len(cm.roomConnections)),
	}
	for code, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[code] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client messages and hands them to the manager's handler one
// at a time, so a single connection's requests are processed in order.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client
func (c *Connection) handleClientMessage(message []byte) {
	if c.Manager.handler == nil {
		log.Debug().
			Str("connection_id", c.ID).
			RawJSON("message", message).
			Msg("received client message")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.RequestTimeout)
	defer cancel()
	c.Manager.handler.Handle(ctx, c, message)
}
