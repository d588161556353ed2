package notify

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/innarclinica/clinic-platform/pkg/logging"
)

// Frame is one event pushed to connected clients.
type Frame struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

// inbound is what clients may send upstream. Only pings are meaningful;
// everything else is ignored.
type inbound struct {
	Type string `json:"type"`
}

// Hub fans queue and schedule events out to every connected client.
// Reception desks, consultorio screens and the waiting-room TV all hold
// one socket each; delivery is best effort and a slow client only loses
// its own frames.
type Hub struct {
	logger *logging.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[string]*wsConn),
	}
}

func generateConnID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and keeps the connection
// registered until the client goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn)
	}).ServeHTTP(w, r)
}

func (h *Hub) serveWS(conn *websocket.Conn) {
	id := generateConnID()
	wsc := &wsConn{conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	h.conns[id] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[id] == wsc {
			delete(h.conns, id)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("notify: connection opened", "conn_id", id)

	for {
		var msg inbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("notify: connection closed", "conn_id", id, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, Frame{Event: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
		}
	}
}

// Broadcast pushes one event to every connected client. A send failure
// drops that client's frame only; the connection reaper in serveWS will
// notice the broken socket on its next read.
func (h *Hub) Broadcast(event string, payload any) {
	frame := Frame{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.RLock()
	conns := make([]*wsConn, 0, len(h.conns))
	for _, wsc := range h.conns {
		conns = append(conns, wsc)
	}
	h.mu.RUnlock()

	for _, wsc := range conns {
		if err := websocket.JSON.Send(wsc.conn, frame); err != nil {
			h.logger.Debug("notify: send failed", "event", event, "error", err)
		}
	}
}

// ConnectionCount reports the active client count, for health reporting.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
