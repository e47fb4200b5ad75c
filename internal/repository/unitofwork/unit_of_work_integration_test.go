package unitofwork

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-marketchat-be/internal/entity"
	"ai-marketchat-be/internal/model"
	"ai-marketchat-be/internal/repository/specification"
	"ai-marketchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConversationStore(t *testing.T) {
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.Conversation{}, &model.Message{}))

	ctx := context.Background()
	factory := NewRepositoryFactory(gormDB)
	chatId := "chat_it_" + uuid.NewString()
	now := time.Now().UTC()

	t.Run("Append turn in one transaction", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))

		err := uow.ConversationRepository().Create(ctx, &entity.Conversation{Id: chatId, Title: "Integration", CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		err = uow.MessageRepository().CreateBatch(ctx, []*entity.Message{
			{Id: uuid.New(), ConversationId: chatId, Role: "user", Content: "A", CreatedAt: now},
			{Id: uuid.New(), ConversationId: chatId, Role: "assistant", Content: "B", CreatedAt: now.Add(time.Millisecond),
				Metadata: &entity.MessageMetadata{Ticker: "TCS", StreamMode: "stream"}},
		})
		require.NoError(t, err)
		require.NoError(t, uow.Commit())
	})

	t.Run("Read back in order", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		msgs, err := uow.MessageRepository().FindAll(ctx,
			specification.ByConversationID{ConversationID: chatId},
			specification.OrderBy{Field: "created_at"},
		)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "A", msgs[0].Content)
		assert.Equal(t, "B", msgs[1].Content)
		require.NotNil(t, msgs[1].Metadata)
		assert.Equal(t, "TCS", msgs[1].Metadata.Ticker)
	})

	t.Run("Rolled back writes are invisible", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		require.NoError(t, uow.MessageRepository().Create(ctx, &entity.Message{Id: uuid.New(), ConversationId: chatId, Role: "user", Content: "C", CreatedAt: now}))
		require.NoError(t, uow.Rollback())

		count, err := factory.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: chatId})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Delete removes messages and conversation", func(t *testing.T) {
		uow := factory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		_, err := uow.MessageRepository().DeleteByConversationId(ctx, chatId)
		require.NoError(t, err)
		n, err := uow.ConversationRepository().Delete(ctx, chatId)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, uow.Commit())

		count, err := factory.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: chatId})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
