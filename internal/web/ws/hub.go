// Package ws broadcasts engine events to connected frontends as JSON
// text frames. Every frame carries a "type" field; slow consumers have
// frames dropped rather than stalling the engine.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gazehq/gaze-engine/internal/constants"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every registered client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log.With("component", "ws"),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client connected", "clients", total)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client disconnected", "clients", total)
}

// Broadcast marshals the event and queues it for every client. A client
// whose send buffer is full misses the frame.
func (h *Hub) Broadcast(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshaling event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping event for slow client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, constants.EventChannelBuffer)}
}
