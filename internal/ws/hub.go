package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/shared/types"
)

// sendBuffer bounds the per-client outbound queue. A client that falls
// this far behind starts losing events instead of stalling the hub.
const sendBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local daemon, allow any origin
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (cl *client) writeLoop() {
	for payload := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	_ = cl.conn.Close()
}

// Hub fans playback events out to connected WebSocket clients. It
// implements notify.StreamPublisher.
type Hub struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:  logger.Named("ws"),
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Publish broadcasts one event to every connected client. Clients with
// a full queue skip the event.
func (h *Hub) Publish(ev types.StreamEvent) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		h.logger.Warn("Dropping unencodable stream event",
			zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
			h.metrics.RecordWSMessage("out", ev.Type)
		default:
			h.metrics.RecordWSMessage("dropped", ev.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// Close disconnects every client and rejects future connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// Handle upgrades the request and serves the event stream until the
// client disconnects.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(cl) {
		_ = conn.Close()
		return
	}
	h.metrics.IncWSConnections()
	h.logger.Debug("Stream client connected",
		zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		h.remove(cl)
		h.metrics.DecWSConnections()
		_ = conn.Close()
		h.logger.Debug("Stream client disconnected",
			zap.String("remote", conn.RemoteAddr().String()))
	}()

	go cl.writeLoop()

	h.enqueue(cl, types.StreamEvent{
		Type:      "system",
		Message:   "connected to replayd event stream",
		Timestamp: time.Now().UnixMilli(),
	})

	h.readLoop(cl)
}

type inboundMessage struct {
	Type string `json:"type"`
}

func (h *Hub) readLoop(cl *client) {
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.enqueue(cl, types.StreamEvent{
				Type:      "error",
				Message:   "malformed message",
				Timestamp: time.Now().UnixMilli(),
			})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "ping":
			h.enqueue(cl, types.StreamEvent{
				Type:      "pong",
				Timestamp: time.Now().UnixMilli(),
			})
		default:
			h.enqueue(cl, types.StreamEvent{
				Type:      "error",
				Message:   "unknown message type",
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}
}

// enqueue serializes one direct reply onto the client queue.
func (h *Hub) enqueue(cl *client, ev types.StreamEvent) {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	select {
	case cl.send <- payload:
		h.metrics.RecordWSMessage("out", ev.Type)
	default:
		h.metrics.RecordWSMessage("dropped", ev.Type)
	}
}
