package contract

import (
	"context"

	"ai-marketchat-be/internal/entity"
	"ai-marketchat-be/internal/repository/specification"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	CreateBatch(ctx context.Context, messages []*entity.Message) error
	DeleteByConversationId(ctx context.Context, conversationId string) (int64, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
