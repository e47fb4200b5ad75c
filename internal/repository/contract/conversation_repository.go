package contract

import (
	"context"

	"ai-marketchat-be/internal/entity"
	"ai-marketchat-be/internal/repository/specification"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	Update(ctx context.Context, conversation *entity.Conversation) error
	// Delete removes the conversation row; it returns the number of rows affected.
	Delete(ctx context.Context, id string) (int64, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
