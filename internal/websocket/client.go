package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"codesherpa/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Default time allowed to read the next pong message from the peer
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 256 * 1024

	sendBuffer = 64
)

// inbound is a chat frame sent by the client
type inbound struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	CodeContext string `json:"code_context"`
}

// Client is one WebSocket connection
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// readPump handles inbound frames one at a time. Processing runs on this
// goroutine, so a connection's messages are answered in order while other
// connections proceed independently.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		metrics.Get().RecordWebSocketMessage("chat", "in")
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendFrame(Frame{Type: FrameError, Content: "Invalid JSON format"})
		return
	}

	c.sendFrame(Frame{Type: FrameStatus, Content: "thinking"})

	if c.hub.processor == nil {
		c.sendFrame(Frame{Type: FrameError, Content: "Orchestrator not initialized"})
		return
	}

	sessionID := strings.TrimSpace(msg.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	input := map[string]interface{}{"message": msg.Message}
	if msg.CodeContext != "" {
		input["code_context"] = msg.CodeContext
	}

	// Pongs are not read while a model call is in flight, so the read
	// deadline is lifted for its duration and restored afterwards.
	c.conn.SetReadDeadline(time.Time{})
	result, err := c.hub.processor.Process(c.ctx, input, sessionID)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.hub.log.Error("chat processing failed", zap.String("client_id", c.id), zap.Error(err))
		c.sendFrame(Frame{Type: FrameError, Content: err.Error()})
		return
	}
	c.sendFrame(Frame{Type: FrameResponse, Content: result})
}

// sendFrame queues a frame for writePump. Frames for a saturated client are dropped.
func (c *Client) sendFrame(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.hub.log.Error("failed to marshal frame", zap.Error(err))
		return
	}
	defer func() {
		// send is closed when the hub shuts down underneath us
		_ = recover()
	}()
	select {
	case c.send <- data:
		metrics.Get().RecordWebSocketMessage(frame.Type, "out")
	case <-c.ctx.Done():
	default:
		c.hub.log.Warn("dropping frame for slow client", zap.String("client_id", c.id), zap.String("type", frame.Type))
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	// Pings go out before the peer's pong deadline lapses
	ticker := time.NewTicker(c.hub.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
