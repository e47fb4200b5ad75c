package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/internal/service"
	internalWS "ai-marketchat-be/internal/websocket"
	"ai-marketchat-be/pkg/analyst/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// How long a turn waits for a slow client to drain its queue before giving up.
const deliverWait = 10 * time.Second

var errClientGone = errors.New("websocket client gone")

// ChatSocketHandler serves chat turns over a websocket. The same connection also receives
// conversation notifications from the hub.
type ChatSocketHandler struct {
	chatService service.IChatService
	hub         *internalWS.Hub
	logger      logger.ILogger
}

func NewChatSocketHandler(chatService service.IChatService, hub *internalWS.Hub, log logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		chatService: chatService,
		hub:         hub,
		logger:      log,
	}
}

// ServeWs upgrades the request and runs the connection until the peer leaves.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatSocketHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
			client := internalWS.ServeWs(h.hub, conn, h.HandleFrame)
			h.logger.Info("ChatSocketHandler", "WebSocket session ended", map[string]interface{}{"client_id": client.ID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// HandleFrame runs one chat turn for a text frame and answers with JSON event frames ending in
// {"type":"done"}.
func (h *ChatSocketHandler) HandleFrame(client *internalWS.Client, data []byte) {
	defer h.send(client, stream.Event{Type: stream.TypeDone})

	var req dto.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.send(client, stream.Error("Invalid request body"))
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		h.send(client, stream.Error(err.Error()))
		return
	}

	_, err := h.chatService.Converse(context.Background(), &req, func(ev stream.Event) error {
		return h.send(client, ev)
	})
	if err == nil {
		return
	}

	if service.IsInvalidInput(err) {
		h.send(client, stream.Error(err.Error()))
		return
	}
	if !errors.Is(err, errClientGone) {
		h.logger.Warn("ChatSocketHandler", "Turn failed", map[string]interface{}{"client_id": client.ID, "error": err.Error()})
	}
	h.send(client, stream.Error(constant.ChatTurnErrorMessage))
}

func (h *ChatSocketHandler) send(client *internalWS.Client, ev stream.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !client.Deliver(raw, deliverWait) {
		return errClientGone
	}
	return nil
}

// RegisterRoutes registers the websocket route.
func (h *ChatSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/ws", h.ServeWs)
}
