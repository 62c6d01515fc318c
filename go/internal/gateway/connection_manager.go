package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Channel is a logical stream scoped by the WebSocket path a client connected to
type Channel string

const (
	ChannelDataInput Channel = "/ws/data-input"
	ChannelUISignals Channel = "/ws/ui-signals"
	ChannelDebug     Channel = "/ws/debug"
)

// MessageHandler receives connection lifecycle callbacks from a ConnectionManager
type MessageHandler interface {
	OnConnect(c *Connection)
	OnMessage(c *Connection, message []byte)
	OnDisconnect(c *Connection)
}

// ConnectionManager manages the WebSocket connections of one listener
type ConnectionManager struct {
	// Name identifies the listener in logs and mirrored frames
	Name string

	// Connection pools organized by channel
	channelConnections map[Channel]map[*Connection]bool
	mu                 sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	handler MessageHandler
	mirror  Mirror
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Channel Channel
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Connection metadata
	RemoteAddr  string
	ConnectedAt time.Time
	LastPing    time.Time

	sendMu sync.Mutex
	closed bool

	// pipeline is set for data-input connections
	pipeline *Pipeline
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024, // config updates are the largest inbound frames
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// phones and TVs load pages from the same LAN host under different ports
			return true
		},
	}
}

// NewConnectionManager creates a connection manager for one listener
func NewConnectionManager(name string, config ConnectionConfig, handler MessageHandler, mirror Mirror) *ConnectionManager {
	cm := &ConnectionManager{
		Name:               name,
		channelConnections: make(map[Channel]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		handler: handler,
		mirror:  mirror,
	}

	if mirror != nil {
		mirror.Join(cm)
	}

	return cm
}

// UpgradeConnection upgrades an HTTP connection to WebSocket on the given channel
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, channel Channel) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	// Create connection object
	connection := &Connection{
		ID:          uuid.New().String(),
		Channel:     channel,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	// Register the connection
	cm.registerConnection(connection)

	if cm.handler != nil {
		cm.handler.OnConnect(connection)
	}

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("listener", cm.Name).
		Str("connection_id", connection.ID).
		Str("channel", string(channel)).
		Str("remote_addr", connection.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.channelConnections[conn.Channel] == nil {
		cm.channelConnections[conn.Channel] = make(map[*Connection]bool)
	}
	cm.channelConnections[conn.Channel][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("channel", string(conn.Channel)).
		Int("total_connections", len(cm.channelConnections[conn.Channel])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.channelConnections[conn.Channel]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			removed = true

			// Clean up empty channel pools
			if len(connections) == 0 {
				delete(cm.channelConnections, conn.Channel)
			}
		}
	}
	cm.mu.Unlock()

	if !removed {
		return
	}

	conn.closeSend()
	if cm.handler != nil {
		cm.handler.OnDisconnect(conn)
	}

	log.Info().
		Str("listener", cm.Name).
		Str("connection_id", conn.ID).
		Str("channel", string(conn.Channel)).
		Msg("connection unregistered")
}

// Publish sends msg to every open connection on channel, on this listener and on every
// mirrored listener
func (cm *ConnectionManager) Publish(channel Channel, msg any) error {
	return cm.PublishExcept(channel, msg, nil)
}

// PublishExcept is Publish without delivering to except
func (cm *ConnectionManager) PublishExcept(channel Channel, msg any, except *Connection) error {
	// Marshal the message once
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message for broadcast: %w", err)
	}

	cm.deliver(channel, frame, except)

	if cm.mirror != nil {
		cm.mirror.Forward(cm, channel, frame)
	}
	return nil
}

// deliver enqueues frame for the local connections on channel. A connection whose send
// buffer is full or closed misses the frame; the others are unaffected.
func (cm *ConnectionManager) deliver(channel Channel, frame []byte, except *Connection) int {
	cm.mu.RLock()
	connections, exists := cm.channelConnections[channel]
	if !exists {
		cm.mu.RUnlock()
		return 0
	}

	// Snapshot to avoid holding the lock during delivery
	targetConnections := make([]*Connection, 0, len(connections))
	for conn := range connections {
		if conn == except {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	delivered := 0
	for _, conn := range targetConnections {
		if conn.enqueue(frame) {
			delivered++
			continue
		}
		log.Warn().
			Str("connection_id", conn.ID).
			Str("channel", string(channel)).
			Msg("connection send buffer unavailable, skipping message")
	}

	log.Debug().
		Str("listener", cm.Name).
		Str("channel", string(channel)).
		Int("connections", delivered).
		Msg("message broadcasted")

	return delivered
}

// SendTo sends msg to a single connection
func (cm *ConnectionManager) SendTo(conn *Connection, msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if !conn.enqueue(frame) {
		return fmt.Errorf("connection %s is not accepting messages", conn.ID)
	}
	return nil
}

// CloseAll closes every connection of this listener
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.channelConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// ConnectionStats summarizes the open connections of a listener
type ConnectionStats struct {
	Listener           string         `json:"listener"`
	TotalConnections   int            `json:"total_connections"`
	ChannelConnections map[string]int `json:"channel_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		Listener:           cm.Name,
		ChannelConnections: make(map[string]int),
	}
	for channel, connections := range cm.channelConnections {
		stats.TotalConnections += len(connections)
		stats.ChannelConnections[string(channel)] = len(connections)
	}
	return stats
}

// enqueue queues frame without blocking. It reports false when the connection is closed
// or its buffer is full.
func (c *Connection) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
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
				// Channel was closed
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

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
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

		if c.Manager.handler != nil {
			c.Manager.handler.OnMessage(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
