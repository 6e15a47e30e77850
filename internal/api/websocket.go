package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trainlink-org/shared-lib/internal/infrastructure/config"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/logging"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/metrics"
	"github.com/trainlink-org/shared-lib/internal/loco"
	"github.com/trainlink-org/shared-lib/internal/throttle"
)

// WebSocket message types.
const (
	// Client to server.
	WSTypeListen  = "listen"
	WSTypeForget  = "forget"
	WSTypeCommand = "command"
	WSTypePing    = "ping"

	// Server to client.
	WSTypeLoaded   = "loaded"
	WSTypeThrottle = "throttle"
	WSTypeEvent    = "event"
	WSTypePong     = "pong"
	WSTypeResponse = "response"
	WSTypeError    = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// Registry event names broadcast to every client.
const (
	EventLocoAdded   = "loco.added"
	EventLocoUpdated = "loco.updated"
	EventLocoDeleted = "loco.deleted"
)

// WSMessage is a message sent to or from a WebSocket client.
//
// A throttle front end binds throttle 1 to a loco with
//
//	{"type":"listen","id":"a","throttle_id":1,"loco":"66"}
//
// and from then on receives
//
//	{"type":"throttle","throttle_id":1,"payload":{"locoAddress":66,...}}
type WSMessage struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	ThrottleID *int              `json:"throttle_id,omitempty"`
	Loco       string            `json:"loco,omitempty"`
	Command    *throttle.Command `json:"command,omitempty"`
	EventType  string            `json:"event_type,omitempty"`
	Timestamp  string            `json:"timestamp,omitempty"`
	Payload    any               `json:"payload,omitempty"`
}

// throttleID returns the message's throttle ID. A missing ID means throttle 0.
func (m WSMessage) throttleID() int {
	if m.ThrottleID == nil {
		return 0
	}
	return *m.ThrottleID
}

// Hub tracks connected WebSocket clients and broadcasts registry changes
// to all of them. It implements loco.Observer.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected throttle front end.
type WSClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	session   *throttle.Session
	throttles *throttle.Hub
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected",
		"session", client.session.ID(), "clients", h.ClientCount())
}

// Unregister removes a client and its throttle listeners. Only the caller
// that removes the client from the map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	client.session.Close()
	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected",
		"session", client.session.ID(), "clients", h.ClientCount())
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LocoAdded implements loco.Observer.
func (h *Hub) LocoAdded(l *loco.Loco) {
	h.Broadcast(EventLocoAdded, l.Record())
}

// LocoUpdated implements loco.Observer.
func (h *Hub) LocoUpdated(old, replacement *loco.Loco) {
	h.Broadcast(EventLocoUpdated, map[string]any{
		"old_address": old.Address(),
		"old_name":    old.Name(),
		"loco":        replacement.Record(),
	})
}

// LocoDeleted implements loco.Observer.
func (h *Hub) LocoDeleted(l *loco.Loco) {
	h.Broadcast(EventLocoDeleted, l.Record())
}

// closeAll disconnects all clients and closes their send channels so
// writePump goroutines exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.session.Close()
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection and starts a throttle session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, wsSendBufferSize),
		session:   s.throttles.NewSession(),
		throttles: s.throttles,
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)

	client.session.OnLoaded(func() {
		client.sendResponse("", WSTypeLoaded, map[string]any{"session": client.session.ID()})
	})
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeListen:
		c.handleListen(msg)
	case WSTypeForget:
		c.session.Forget(msg.throttleID())
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"forgotten": msg.throttleID()})
	case WSTypeCommand:
		c.handleCommand(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleListen binds a throttle ID to a loco and sends its current state.
func (c *WSClient) handleListen(msg WSMessage) {
	if msg.Loco == "" {
		c.sendError(msg.ID, "loco is required")
		return
	}
	throttleID := msg.throttleID()
	id := loco.ParseIdentifier(msg.Loco)
	current, ok := c.throttles.Throttle(id)
	if !ok && id.IsName() {
		c.sendError(msg.ID, "loco not found")
		return
	}

	c.session.Listen(current, throttleID, func(t loco.Throttle) {
		c.sendThrottle(throttleID, t)
	})
	c.sendThrottle(throttleID, current)
}

// handleCommand applies a throttle command to the loco named in the message.
func (c *WSClient) handleCommand(msg WSMessage) {
	if msg.Command == nil || msg.Loco == "" {
		c.sendError(msg.ID, "loco and command are required")
		return
	}
	t, err := c.throttles.Apply(metrics.TransportWebSocket, loco.ParseIdentifier(msg.Loco), *msg.Command)
	if err != nil {
		switch {
		case errors.Is(err, loco.ErrNotFound):
			c.sendError(msg.ID, "loco not found")
		default:
			c.sendError(msg.ID, err.Error())
		}
		return
	}
	c.sendResponse(msg.ID, WSTypeResponse, t)
}

func (c *WSClient) sendThrottle(throttleID int, t loco.Throttle) {
	data, err := json.Marshal(WSMessage{
		Type:       WSTypeThrottle,
		ThrottleID: &throttleID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Payload:    t,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data for the client. Closed channels (client gone) and
// full buffers (slow client) drop the message.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

// sendResponse sends a response message to the client.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
