package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const sendBuffer = 256

// Client is a connected websocket client.
type Client struct {
	conn     *websocket.Conn
	username string
	families map[string]bool // nil means every message
	send     chan Message
	logger   *zap.Logger
}

// NewClient creates a client that receives messages of the given families
// ("object", "job"). No families means all of them.
func NewClient(conn *websocket.Conn, username string, families []string, logger *zap.Logger) *Client {
	c := &Client{
		conn:     conn,
		username: username,
		send:     make(chan Message, sendBuffer),
		logger:   logger,
	}
	if len(families) > 0 {
		c.families = make(map[string]bool, len(families))
		for _, f := range families {
			c.families[f] = true
		}
	}
	return c
}

func (c *Client) wants(msg Message) bool {
	return c.families == nil || c.families[msg.Type.Family()]
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("username", c.username))
}

// Unregister removes a client and closes its send channel. Unknown clients
// are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.String("username", c.username))
}

// Broadcast queues msg for every interested client. Clients whose buffer is
// full miss the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(msg) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			wsDropped.Inc()
			h.logger.Warn("client send buffer full, dropping message",
				zap.String("username", c.username),
				zap.String("type", string(msg.Type)))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump writes queued messages until the send channel closes or ctx ends.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains the connection until the peer goes away.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
