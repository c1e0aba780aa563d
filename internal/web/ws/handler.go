package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// tokenProtocolPrefix carries the auth token inside the websocket
	// subprotocol header, where browser clients can actually put it.
	tokenProtocolPrefix = "gaze-token."

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Handler upgrades /ws requests and pumps hub frames to the client.
type Handler struct {
	hub       *Hub
	token     string
	devBypass bool
}

func NewHandler(hub *Hub, token string, devBypass bool) *Handler {
	return &Handler{hub: hub, token: token, devBypass: devBypass}
}

// clientToken extracts the token from the Sec-WebSocket-Protocol header
// or the ?token= query parameter.
func clientToken(r *http.Request) (token, subprotocol string) {
	for _, proto := range websocket.Subprotocols(r) {
		if strings.HasPrefix(proto, tokenProtocolPrefix) {
			return strings.TrimPrefix(proto, tokenProtocolPrefix), proto
		}
	}
	return r.URL.Query().Get("token"), ""
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, subprotocol := clientToken(r)
	if !h.devBypass && (h.token == "" || token != h.token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	if subprotocol != "" {
		upgrader.Subprotocols = []string{subprotocol}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn)
	h.hub.register(c)

	if data, err := json.Marshal(control{Type: TypeAuthSuccess}); err == nil {
		c.send <- data
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump answers application-level pings and detects disconnects.
func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg control
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case TypePing, TypeHeartbeat:
			if reply, err := json.Marshal(control{Type: TypePong}); err == nil {
				select {
				case c.send <- reply:
				default:
				}
			}
		}
	}
}
