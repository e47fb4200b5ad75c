package websocket

import (
	"encoding/json"
	"sync"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/events"

	"github.com/google/uuid"
)

// Hub tracks live websocket clients and fans bus events out to them.
// Cross-instance delivery is NATS's job: every instance runs its own subscriber.
type Hub struct {
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	closeOnce  sync.Once

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		clients:    make(map[uuid.UUID]*Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				client.close()
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID})
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds c to the hub. Once the hub is closed it closes c instead of blocking.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.close()
	}
}

// Unregister removes c from the hub. Once the hub is closed it only closes c.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
		c.close()
	}
}

// Close stops Run and closes every client's outbound channel.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a notification frame to every connected client. Slow clients miss the frame.
func (h *Hub) Broadcast(event events.Event) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "notification",
		"data": events.BaseEvent{
			Type:       event.EventType(),
			Data:       event.Payload(),
			OccurredAt: event.Timestamp(),
		},
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode notification", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.Push(data) {
			h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{"client_id": client.ID})
		}
	}
}

// Send delivers a raw frame to one client. It reports false when the client is gone or saturated.
func (h *Hub) Send(clientID uuid.UUID, data []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.Push(data)
}
