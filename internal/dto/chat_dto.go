package dto

import (
	"time"

	"ai-marketchat-be/internal/entity"

	"github.com/google/uuid"
)

type ChatMessageDTO struct {
	Role    string `json:"role" validate:"required"`
	Content string `json:"content"`
}

// ChatRequest is one chat turn. ChatId is optional; older clients send it as chatId.
type ChatRequest struct {
	ChatId       string           `json:"chat_id,omitempty"`
	LegacyChatId string           `json:"chatId,omitempty"`
	Messages     []ChatMessageDTO `json:"messages" validate:"required,min=1,dive"`
}

// ResolvedChatId returns whichever chat id spelling the client used.
func (r *ChatRequest) ResolvedChatId() string {
	if r.ChatId != "" {
		return r.ChatId
	}
	return r.LegacyChatId
}

type ChatSummaryResponse struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   string    `json:"preview"`
}

type ChatListResponse struct {
	Chats []ChatSummaryResponse `json:"chats"`
}

type MessageResponse struct {
	Id        uuid.UUID               `json:"id"`
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	CreatedAt time.Time               `json:"created_at"`
	Metadata  *entity.MessageMetadata `json:"metadata,omitempty"`
}

type ChatMessagesResponse struct {
	ChatId   string            `json:"chat_id"`
	Title    string            `json:"title"`
	Messages []MessageResponse `json:"messages"`
}

type DeleteChatResponse struct {
	ChatId  string `json:"chat_id"`
	Deleted bool   `json:"deleted"`
}

// ChatTurnResult describes a finished turn once its messages are stored.
type ChatTurnResult struct {
	ChatId  string `json:"chat_id"`
	Title   string `json:"title"`
	Created bool   `json:"created"`
	Answer  string `json:"answer"`
	Ticker  string `json:"ticker,omitempty"`
}
