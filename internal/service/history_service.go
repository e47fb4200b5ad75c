package service

import (
	"context"
	"fmt"
	"strings"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/repository/specification"
	"ai-marketchat-be/internal/repository/unitofwork"
	"ai-marketchat-be/pkg/analyst/title"
	"ai-marketchat-be/pkg/events"
)

type IHistoryService interface {
	ListRecent(ctx context.Context, limit int) (*dto.ChatListResponse, error)
	LoadMessages(ctx context.Context, chatId string) (*dto.ChatMessagesResponse, error)
	Delete(ctx context.Context, chatId string) error
}

type historyService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  IPublisherService
	logger     logger.ILogger
}

func NewHistoryService(uowFactory unitofwork.RepositoryFactory, publisher IPublisherService, log logger.ILogger) IHistoryService {
	return &historyService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
	}
}

// ListRecent returns conversations newest-first with a preview of their opening message.
func (s *historyService) ListRecent(ctx context.Context, limit int) (*dto.ChatListResponse, error) {
	if limit <= 0 || limit > constant.RecentChatsLimit {
		limit = constant.RecentChatsLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	chats := make([]dto.ChatSummaryResponse, 0, len(conversations))
	for _, c := range conversations {
		first, err := uow.MessageRepository().FindOne(ctx,
			specification.ByConversationID{ConversationID: c.Id},
			specification.OrderBy{Field: "created_at"},
		)
		if err != nil {
			return nil, fmt.Errorf("load preview for %s: %w", c.Id, err)
		}

		preview := title.Preview("")
		if first != nil {
			preview = title.Preview(first.Content)
		}

		name := c.Title
		if strings.TrimSpace(name) == "" {
			name = title.Fallback(c.CreatedAt)
		}

		chats = append(chats, dto.ChatSummaryResponse{
			Id:        c.Id,
			Title:     name,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			Preview:   preview,
		})
	}

	return &dto.ChatListResponse{Chats: chats}, nil
}

// LoadMessages returns a conversation's messages oldest-first. Unknown ids yield an empty list.
func (s *historyService) LoadMessages(ctx context.Context, chatId string) (*dto.ChatMessagesResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByConversationKey{ID: chatId})
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	res := &dto.ChatMessagesResponse{ChatId: chatId, Messages: []dto.MessageResponse{}}
	if conversation == nil {
		return res, nil
	}
	res.Title = conversation.Title

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: chatId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	for _, m := range messages {
		res.Messages = append(res.Messages, dto.MessageResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Metadata:  m.Metadata,
		})
	}
	return res, nil
}

// Delete removes the messages and then the conversation in one transaction. It returns
// constant.ErrConversationNotFound when there was nothing to delete.
func (s *historyService) Delete(ctx context.Context, chatId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			uow.Rollback()
		}
	}()

	removed, err := uow.MessageRepository().DeleteByConversationId(ctx, chatId)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	affected, err := uow.ConversationRepository().Delete(ctx, chatId)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if affected == 0 {
		return constant.ErrConversationNotFound
	}

	committed = true
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	s.logger.Info("HistoryService", "Conversation deleted", map[string]interface{}{"chat_id": chatId, "messages": removed})

	if s.publisher != nil {
		event := events.NewEvent(constant.EventConversationDeleted, map[string]interface{}{"chat_id": chatId})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("HistoryService", "Failed to publish delete event", map[string]interface{}{"chat_id": chatId, "error": err.Error()})
		}
	}
	return nil
}
