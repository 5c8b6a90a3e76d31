// Package feed pushes queue changes to connected dashboards over WebSocket.
// It is the delivery end of the events outbox: the deliverer hands it entries
// and the hub fans them out to every subscriber.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opdline/clinic-queue/internal/events"
	"github.com/opdline/clinic-queue/pkg/logging"
)

// sendBuffer bounds each subscriber's queue; a client that cannot keep up is
// dropped rather than allowed to stall the fan-out.
const sendBuffer = 16

const writeTimeout = 5 * time.Second

// Message is the wire format pushed to subscribers.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub tracks WebSocket subscribers and broadcasts queue changes to them.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// NewHub creates an empty hub. Origin checks are left to the CORS middleware
// in front of the upgrade endpoint.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handle implements events.DeliveryHandler: each outbox entry becomes one
// broadcast message.
func (h *Hub) Handle(ctx context.Context, entry events.OutboxEntry) error {
	h.Broadcast(Message{
		Type:      entry.Type,
		Payload:   entry.Payload,
		Timestamp: entry.CreatedAt,
	})
	return nil
}

// Broadcast queues the message to every subscriber, dropping those whose
// buffers are full.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow feed subscriber")
		h.remove(c)
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams queue changes until the client
// disconnects.
// GET /feed
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	// Feed connections are long lived; clear the deadline the HTTP server's
	// read timeout left on the hijacked connection.
	_ = conn.SetReadDeadline(time.Time{})

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("feed subscriber connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// ServeHTTP lets the hub mount directly on a route.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		_ = c.conn.Close()
	}
}

// readPump consumes (and discards) client frames so pings and close frames
// are processed; returning unregisters the client.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
		_ = c.conn.Close()
	}
}
