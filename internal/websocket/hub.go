// Package websocket serves the /ws chat channel and tracks live connections.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"codesherpa/internal/logging"
	"codesherpa/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame types
const (
	FrameStatus   = "status"
	FrameResponse = "response"
	FrameError    = "error"
)

// DefaultSessionID is used when a frame carries no session_id
const DefaultSessionID = "ws_session"

// Processor handles one chat message. The orchestrator satisfies it.
type Processor interface {
	Process(ctx context.Context, input map[string]interface{}, sessionID string) (map[string]interface{}, error)
}

// Frame is one outbound message
type Frame struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// Hub tracks connected clients and hands their messages to the processor
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	done       chan struct{}
	once       sync.Once

	processor Processor
	upgrader  websocket.Upgrader
	pongWait  time.Duration
	log       *zap.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithPongWait sets how long a connection may stay silent before it is
// dropped. Pings are sent at nine tenths of this interval.
func WithPongWait(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

// WithAllowedOrigins restricts upgrades to the given origins. Requests without
// an Origin header, such as native clients, are always accepted.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[strings.TrimSpace(o)] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// NewHub creates a hub. A nil processor makes every chat frame fail with
// "Orchestrator not initialized".
func NewHub(processor Processor, opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		processor:  processor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pongWait: defaultPongWait,
		log:      logging.Named("websocket"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations until Shutdown is called
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.log.Info("websocket hub shutdown complete")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnection(1)
			h.log.Debug("client connected", zap.String("client_id", client.id), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWebSocketConnection(-1)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", zap.String("client_id", client.id), zap.Int("total", total))
		}
	}
}

// Shutdown stops the hub and closes every client. It is safe to call more than once.
func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })
}

// Broadcast queues frame for every connected client and returns how many
// accepted it. Clients whose buffer is full are skipped.
func (h *Hub) Broadcast(frame Frame) int {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("failed to marshal broadcast frame", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		select {
		case client.send <- data:
			delivered++
			metrics.Get().RecordWebSocketMessage(frame.Type, "out")
		default:
			h.log.Warn("skipping client during broadcast", zap.String("client_id", client.id))
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and serves the connection
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, uuid.NewString())
	select {
	case h.register <- client:
	case <-h.shutdown:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// leave unregisters client unless the hub has already stopped
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
