package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Chat requests carry their own history, so inbound frames are larger than control chatter.
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// MessageHandler handles one inbound text frame. It runs on the read goroutine, so frames from a
// single client are processed in order.
type MessageHandler func(c *Client, data []byte)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	ID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	OnMessage MessageHandler

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, onMessage MessageHandler) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		ID:        uuid.New(),
		Send:      make(chan []byte, sendBuffer),
		OnMessage: onMessage,
	}
}

// Push queues a frame without blocking. It reports false when the client is closed or its buffer is full.
func (c *Client) Push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Deliver is Push with back-pressure: it retries until the frame is queued, the client closes,
// or wait elapses.
func (c *Client) Deliver(data []byte, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if c.Push(data) {
			return true
		}
		if c.isClosed() || time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// readPump pumps messages from the websocket connection to the message handler.
func (c *Client) readPump() {
	defer func() {
		c.Hub.logger.Debug("Client", "readPump exiting", map[string]interface{}{"client_id": c.ID})
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{"client_id": c.ID, "error": err.Error()})
			}
			break
		}
		if messageType != websocket.TextMessage || c.OnMessage == nil {
			continue
		}

		c.OnMessage(c, data)
		// A turn can outlast pongWait while no read is pending.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps messages from the hub to the websocket connection. Each queued payload is
// written as its own frame so JSON events stay separable.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("Client", "Ping failed", map[string]interface{}{"client_id": c.ID, "error": err.Error()})
				return
			}
		}
	}
}
