package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/threshold"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	clientBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope of everything written to websocket clients.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type client struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Empty filters match everything.
	domain   threshold.Domain
	deviceID string
}

func (c *client) wants(u poller.Update) bool {
	if c.domain != "" && c.domain != u.Measurement.Domain {
		return false
	}
	return c.deviceID == "" || c.deviceID == u.Measurement.DeviceID
}

// Hub fans poller updates out to websocket clients. Clients may narrow the
// feed with the domain and device_id query parameters.
type Hub struct {
	logger *slog.Logger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int32
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Timestamp: time.Now().UTC(), Data: data})
}

// Run serves registrations and forwards updates until ctx is done, at which
// point every client is disconnected.
func (h *Hub) Run(ctx context.Context, updates <-chan poller.Update) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
			h.logger.Info("websocket client connected", "client", c.id, "clients", len(h.clients))

			if data, err := encode("connected", map[string]string{"client_id": c.id.String()}); err == nil {
				h.deliver(c, data)
			}

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.logger.Info("websocket client disconnected", "client", c.id, "clients", len(h.clients))
			}

		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			h.broadcast(u)
		}
	}
}

func (h *Hub) broadcast(u poller.Update) {
	data, err := encode("update", newDeviceStatus(u))
	if err != nil {
		h.logger.Error("encoding update failed", "err", err)
		return
	}

	for c := range h.clients {
		if c.wants(u) {
			h.deliver(c, data)
		}
	}
}

// deliver drops the client if its buffer is full.
func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("websocket client too slow, disconnecting", "client", c.id)
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int32(len(h.clients)))
}

// ServeHTTP upgrades the connection and registers the client. Run must be
// running.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var d threshold.Domain
	if raw := q.Get("domain"); raw != "" {
		var ok bool
		if d, ok = threshold.ParseDomain(raw); !ok {
			writeError(w, http.StatusNotFound, "unknown domain")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		id:       uuid.New(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, clientBuffer),
		domain:   d,
		deviceID: q.Get("device_id"),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards client messages and detects closed connections.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "client", c.id, "err", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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
