package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// replayBufferSize bounds how many past events per channel a late
// subscriber can catch up on, mirroring tarsy's catchupLimit but backed by
// an in-memory ring instead of a database query.
const replayBufferSize = 200

// ClientMessage is the JSON structure for client -> server WebSocket
// messages, unchanged in shape from tarsy's ClientMessage.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"`
}

// ConnectionManager manages WebSocket connections and channel
// subscriptions for a single process. Milton runs as one process with no
// cross-pod fan-out, so this is the entire distribution layer.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	channels  map[string]map[string]bool
	channelMu sync.RWMutex

	replay   map[string][]StreamEvent
	replayMu sync.Mutex

	writeTimeout time.Duration
	log          *slog.Logger
}

// Connection represents a single WebSocket client. subscriptions is only
// ever touched from the single goroutine running HandleConnection for this
// connection, following tarsy's same no-lock-needed reasoning.
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc

	// requestScopedChannel is set by HandleRequestConnection so Publish
	// knows to close this connection once that channel's terminal event
	// is delivered.
	requestScopedChannel string
}

// NewConnectionManager builds a ConnectionManager with the given per-send
// write timeout.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[string]bool),
		replay:      make(map[string][]StreamEvent),
		writeTimeout: writeTimeout,
		log:          slog.With("component", "events"),
	}
}

// HandleConnection manages one WebSocket connection's lifecycle. Blocks
// until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": connID})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("invalid websocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

// HandleRequestConnection serves one WebSocket connection scoped to a
// single request's channel (spec §6's WS /ws/request/{id}): it subscribes
// immediately (the client never sends a subscribe message), replays any
// buffered events, and closes the connection with the normal close code
// once a terminal (Complete) event has been delivered. Blocks until the
// connection closes.
func (m *ConnectionManager) HandleRequestConnection(parentCtx context.Context, conn *websocket.Conn, channel string) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:                    connID,
		Conn:                  conn,
		subscriptions:         make(map[string]bool),
		ctx:                   ctx,
		cancel:                cancel,
		requestScopedChannel:  channel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.subscribe(c, channel)
	m.replayTo(c, channel)

	if m.channelHasTerminalEvent(channel) {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "ping" {
			m.sendJSON(c, map[string]string{"type": "pong"})
		}
	}
}

func (m *ConnectionManager) channelHasTerminalEvent(channel string) bool {
	m.replayMu.Lock()
	defer m.replayMu.Unlock()
	buf := m.replay[channel]
	return len(buf) > 0 && buf[len(buf)-1].IsTerminal()
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		m.subscribe(c, msg.Channel)
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
		m.replayTo(c, msg.Channel)
	case "unsubscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.Channel)
	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *ConnectionManager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if _, exists := m.channels[channel]; !exists {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()

	c.subscriptions[channel] = true
}

func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[channel]; exists {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()
	delete(c.subscriptions, channel)
}

// replayTo sends a newly-subscribed connection every buffered event on
// channel so it doesn't miss events published before it subscribed.
func (m *ConnectionManager) replayTo(c *Connection, channel string) {
	m.replayMu.Lock()
	buffered := append([]StreamEvent(nil), m.replay[channel]...)
	m.replayMu.Unlock()

	for _, evt := range buffered {
		m.sendJSON(c, evt)
	}
}

// Publish broadcasts evt to every connection subscribed to channel and
// appends it to the channel's replay buffer.
func (m *ConnectionManager) Publish(channel string, evt StreamEvent) {
	m.replayMu.Lock()
	buf := append(m.replay[channel], evt)
	if len(buf) > replayBufferSize {
		buf = buf[len(buf)-replayBufferSize:]
	}
	m.replay[channel] = buf
	m.replayMu.Unlock()

	m.channelMu.RLock()
	connIDs, exists := m.channels[channel]
	if !exists {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(connIDs))
	for id := range connIDs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		m.sendJSON(conn, evt)
		if evt.IsTerminal() && conn.requestScopedChannel == channel {
			_ = conn.Conn.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregisterConnection(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("failed to marshal websocket message", "connection_id", c.ID, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	if err := c.Conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		m.log.Warn("failed to send websocket message", "connection_id", c.ID, "error", err)
	}
}
