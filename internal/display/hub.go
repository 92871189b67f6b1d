package display

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/blesensor/internal/central"
)

// Event is the JSON envelope sent to websocket clients.
type Event struct {
	Type    string `json:"type"` // "status", "reading" or "failure"
	Payload any    `json:"payload"`
}

// StatusPayload carries a status line.
type StatusPayload struct {
	Text string `json:"text"`
}

// ReadingPayload carries one decoded value.
type ReadingPayload struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// FailurePayload carries a per-characteristic failure.
type FailurePayload struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client serializes writes to one connection; gorilla/websocket allows a
// single concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(ev Event, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(ev)
}

// Hub broadcasts updates to every connected websocket client. The most
// recent status and readings are replayed to clients as they join.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	last    map[string]Event // keyed by status or reading label
	order   []string
}

var _ central.Shell = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		last:    make(map[string]Event),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[WS] upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}

	// Hold the client's write lock across registration so the replay
	// reaches it before any broadcast does.
	c.mu.Lock()
	h.mu.Lock()
	snapshot := make([]Event, 0, len(h.order))
	for _, key := range h.order {
		snapshot = append(snapshot, h.last[key])
	}
	h.clients[c] = true
	h.mu.Unlock()

	var replayErr error
	for _, ev := range snapshot {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if replayErr = conn.WriteJSON(ev); replayErr != nil {
			break
		}
	}
	c.mu.Unlock()
	if replayErr != nil {
		h.remove(c)
		return
	}

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				h.remove(c)
				return
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
}

func (h *Hub) Status(text string) {
	h.broadcast("status", Event{Type: "status", Payload: StatusPayload{Text: text}})
}

func (h *Hub) Value(label string, value int, unit string) {
	h.broadcast("reading:"+label, Event{Type: "reading", Payload: ReadingPayload{Label: label, Value: value, Unit: unit}})
}

func (h *Hub) Failure(label, reason string) {
	h.broadcast("reading:"+label, Event{Type: "failure", Payload: FailurePayload{Label: label, Reason: reason}})
}

func (h *Hub) broadcast(key string, ev Event) {
	h.mu.Lock()
	if _, ok := h.last[key]; !ok {
		h.order = append(h.order, key)
	}
	h.last[key] = ev
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	// Write deadline keeps a slow client from stalling the others.
	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed []*client
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.write(ev, 100*time.Millisecond); err != nil {
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	for _, c := range failed {
		h.remove(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
