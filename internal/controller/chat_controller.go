package controller

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/pkg/serverutils"
	"ai-marketchat-be/internal/service"
	"ai-marketchat-be/pkg/analyst/stream"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService    service.IChatService
	historyService service.IHistoryService
}

func NewChatController(chatService service.IChatService, historyService service.IHistoryService) IChatController {
	return &chatController{
		chatService:    chatService,
		historyService: historyService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Post("", c.Chat)
	h.Get("/history", c.History)
	h.Get("/history/:id", c.Messages)
	h.Delete("", c.Delete)
	h.Delete("/:id", c.Delete)
}

// Chat answers one turn as a server-sent event stream.
func (c *chatController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	turn, err := c.chatService.Begin(ctx.UserContext(), &req)
	if err != nil {
		if service.IsInvalidInput(err) {
			return serverutils.NewBadRequest(err.Error())
		}
		return err
	}

	// Replay-mode answers are produced before any byte is written, so failures surface as a 500.
	if err := c.chatService.Generate(ctx.UserContext(), turn); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The request context is recycled once the handler returns.
		streamCtx := context.Background()

		sink := func(ev stream.Event) error {
			if _, err := w.Write(stream.SSE(ev)); err != nil {
				return err
			}
			return w.Flush()
		}

		if _, err := c.chatService.Stream(streamCtx, turn, sink); err != nil {
			sink(stream.Error(constant.ChatTurnErrorMessage))
		}

		w.Write(stream.DoneFrame)
		w.Flush()
	})

	return nil
}

// History lists recent conversations, or one conversation's messages when chat_id is given.
func (c *chatController) History(ctx *fiber.Ctx) error {
	if chatId := strings.TrimSpace(ctx.Query("chat_id")); chatId != "" {
		return c.messages(ctx, chatId)
	}

	res, err := c.historyService.ListRecent(ctx.UserContext(), constant.RecentChatsLimit)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) Messages(ctx *fiber.Ctx) error {
	return c.messages(ctx, ctx.Params("id"))
}

func (c *chatController) messages(ctx *fiber.Ctx, chatId string) error {
	res, err := c.historyService.LoadMessages(ctx.UserContext(), chatId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat messages", res))
}

func (c *chatController) Delete(ctx *fiber.Ctx) error {
	chatId := strings.TrimSpace(ctx.Params("id"))
	if chatId == "" {
		chatId = strings.TrimSpace(ctx.Query("chat_id"))
	}
	if chatId == "" {
		return serverutils.NewBadRequest("chat_id is required")
	}

	res := dto.DeleteChatResponse{ChatId: chatId, Deleted: true}
	err := c.historyService.Delete(ctx.UserContext(), chatId)
	if errors.Is(err, constant.ErrConversationNotFound) {
		res.Deleted = false
		return ctx.JSON(serverutils.SuccessResponse("Chat not found", res))
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete chat", res))
}
