package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/dto"
	"ai-marketchat-be/internal/entity"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/repository/specification"
	"ai-marketchat-be/internal/repository/unitofwork"
	"ai-marketchat-be/internal/tracer"
	"ai-marketchat-be/pkg/analyst/history"
	"ai-marketchat-be/pkg/analyst/prompt"
	"ai-marketchat-be/pkg/analyst/stream"
	"ai-marketchat-be/pkg/events"
	"ai-marketchat-be/pkg/llm"
	"ai-marketchat-be/pkg/marketdata"
	"ai-marketchat-be/pkg/sentiment"
	"ai-marketchat-be/pkg/ticker"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	answerTemperature = 0.8
	maxChatIdLength   = 128
	tracerName        = "ai-marketchat-be/internal/service"
)

// Turn states, logged as they are entered.
const (
	stateReceiving        = "RECEIVING"
	stateResolvingContext = "RESOLVING_CONTEXT"
	stateGatheringData    = "GATHERING_DATA"
	stateGenerating       = "GENERATING"
	statePersisting       = "PERSISTING"
	stateStreaming        = "STREAMING"
	stateDone             = "DONE"
	stateErrored          = "ERRORED"
)

// EventSink receives the frames of one answer. Returning an error aborts the turn.
type EventSink func(ev stream.Event) error

// QuoteFetcher is satisfied by *marketdata.Fetcher.
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbol string) marketdata.Result
}

// TitleGenerator is satisfied by *title.Generator.
type TitleGenerator interface {
	Generate(ctx context.Context, firstMessage string, now time.Time) string
}

// ChatOptions are the orchestrator's tunables.
type ChatOptions struct {
	// Streaming forwards model deltas as they arrive when the provider supports it.
	Streaming   bool
	ReplayDelay time.Duration
}

// ChatTurn carries one request through the turn states.
type ChatTurn struct {
	ChatId     string
	Query      string
	Ticker     string
	Mode       string
	History    []llm.Message
	Existing   *entity.Conversation
	Market     *marketdata.Result
	Sentiment  sentiment.Result
	Prompt     string
	Answer     string
	Title      string
	ReceivedAt time.Time

	generated bool
}

type IChatService interface {
	// Begin validates the request, loads context and gathers market data and sentiment.
	// The only error it returns wraps constant.ErrInvalidInput.
	Begin(ctx context.Context, req *dto.ChatRequest) (*ChatTurn, error)
	// Generate produces the full answer for replay-mode turns. Stream-mode turns generate inside
	// Stream, so this is a no-op for them. Transports call it before committing a response so a
	// model failure can still be reported as a plain error.
	Generate(ctx context.Context, turn *ChatTurn) error
	// Stream emits the start frame and the answer tokens, and persists the turn. It does not emit
	// the terminating frame; transports add an error frame when it fails and then end the stream.
	Stream(ctx context.Context, turn *ChatTurn, sink EventSink) (*dto.ChatTurnResult, error)
	// Converse runs a whole turn.
	Converse(ctx context.Context, req *dto.ChatRequest, sink EventSink) (*dto.ChatTurnResult, error)
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	llm        llm.LLMProvider
	titles     TitleGenerator
	quotes     QuoteFetcher
	sentiment  sentiment.Analyzer
	publisher  IPublisherService
	options    ChatOptions
	logger     logger.ILogger
	chatLogger logger.ILogger
	now        func() time.Time
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	titles TitleGenerator,
	quotes QuoteFetcher,
	analyzer sentiment.Analyzer,
	publisher IPublisherService,
	options ChatOptions,
	sysLogger logger.ILogger,
	chatLogger logger.ILogger,
) IChatService {
	if options.ReplayDelay < 0 {
		options.ReplayDelay = 0
	}
	return &chatService{
		uowFactory: uowFactory,
		llm:        llmProvider,
		titles:     titles,
		quotes:     quotes,
		sentiment:  analyzer,
		publisher:  publisher,
		options:    options,
		logger:     sysLogger,
		chatLogger: chatLogger,
		now:        time.Now,
	}
}

func (s *chatService) transition(turn *ChatTurn, state string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["chat_id"] = turn.ChatId
	details["state"] = state
	s.logger.Debug("ChatService", "Turn state "+state, details)
}

func (s *chatService) Converse(ctx context.Context, req *dto.ChatRequest, sink EventSink) (*dto.ChatTurnResult, error) {
	turn, err := s.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Generate(ctx, turn); err != nil {
		return nil, err
	}
	return s.Stream(ctx, turn, sink)
}

func (s *chatService) Begin(ctx context.Context, req *dto.ChatRequest) (*ChatTurn, error) {
	turn := &ChatTurn{ReceivedAt: s.now()}

	// 1. Receiving
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages must not be empty", constant.ErrInvalidInput)
	}

	queryIdx := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == constant.ChatMessageRoleUser {
			queryIdx = i
			break
		}
	}
	if queryIdx < 0 {
		return nil, fmt.Errorf("%w: no user message", constant.ErrInvalidInput)
	}
	turn.Query = strings.TrimSpace(req.Messages[queryIdx].Content)
	if turn.Query == "" {
		return nil, fmt.Errorf("%w: latest user message is empty", constant.ErrInvalidInput)
	}

	turn.ChatId = strings.TrimSpace(req.ResolvedChatId())
	if turn.ChatId == "" {
		turn.ChatId = constant.ChatIDPrefix + strconv.FormatInt(turn.ReceivedAt.UnixMilli(), 10)
	}
	if len(turn.ChatId) > maxChatIdLength {
		return nil, fmt.Errorf("%w: chat_id longer than %d characters", constant.ErrInvalidInput, maxChatIdLength)
	}
	s.transition(turn, stateReceiving, nil)

	// 2. ResolvingContext
	s.transition(turn, stateResolvingContext, nil)
	turn.Existing, turn.History = s.loadStoredHistory(ctx, turn.ChatId)
	if len(turn.History) == 0 {
		turn.History = clientHistory(req.Messages, queryIdx)
	}
	turn.Ticker, _ = ticker.Resolve(turn.Query, history.Contents(turn.History))

	// 3. GatheringData
	s.transition(turn, stateGatheringData, map[string]interface{}{"ticker": turn.Ticker})
	s.gather(ctx, turn)

	turn.Prompt = prompt.Build(prompt.Input{
		Query:     turn.Query,
		Ticker:    turn.Ticker,
		History:   history.Digest(turn.History),
		Market:    turn.Market,
		Sentiment: turn.Sentiment,
	})

	turn.Mode = stream.ModeReplay
	if _, ok := s.llm.(llm.StreamingProvider); ok && s.options.Streaming {
		turn.Mode = stream.ModeStream
	}

	return turn, nil
}

// loadStoredHistory returns the conversation and its newest messages (oldest first). Store
// failures degrade to no history.
func (s *chatService) loadStoredHistory(ctx context.Context, chatId string) (*entity.Conversation, []llm.Message) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByConversationKey{ID: chatId})
	if err != nil {
		s.logger.Warn("ChatService", "Conversation lookup failed, continuing without history", map[string]interface{}{"chat_id": chatId, "error": err.Error()})
		return nil, nil
	}
	if conversation == nil {
		return nil, nil
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: chatId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: constant.HistoryWindow},
	)
	if err != nil {
		s.logger.Warn("ChatService", "History load failed, continuing without history", map[string]interface{}{"chat_id": chatId, "error": err.Error()})
		return conversation, nil
	}

	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[len(messages)-1-i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return conversation, out
}

func clientHistory(messages []dto.ChatMessageDTO, queryIdx int) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for i, m := range messages {
		if i == queryIdx || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history.Window(out, constant.HistoryWindow)
}

// gather fetches the quote and the sentiment concurrently; each degrades on its own.
func (s *chatService) gather(ctx context.Context, turn *ChatTurn) {
	ctx, span := startTurnSpan(ctx, "chat.gather", turn)
	defer span.End()

	var wg sync.WaitGroup

	if turn.Ticker != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.quotes.Fetch(ctx, turn.Ticker)
			turn.Market = &res
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		turn.Sentiment = s.sentiment.Classify(ctx, turn.Query)
	}()

	wg.Wait()

	if turn.Market != nil {
		span.SetAttributes(tracer.AttrQuoteStatus.String(string(turn.Market.Status)))
	}
	if turn.Market != nil && !turn.Market.Available() {
		s.logger.Warn("ChatService", "Market data unavailable", map[string]interface{}{
			"chat_id": turn.ChatId, "ticker": turn.Ticker, "status": turn.Market.Status, "reason": turn.Market.Reason,
		})
	}
	if turn.Sentiment.Degraded() {
		s.logger.Debug("ChatService", "Sentiment degraded to keyword heuristic", map[string]interface{}{
			"chat_id": turn.ChatId, "reason": turn.Sentiment.Reason,
		})
	}
}

func startTurnSpan(ctx context.Context, name string, turn *ChatTurn) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
		tracer.AttrChatID.String(turn.ChatId),
		tracer.AttrTicker.String(turn.Ticker),
		tracer.AttrStreamMode.String(turn.Mode),
	))
}

func (s *chatService) modelInput(turn *ChatTurn) []llm.Message {
	return []llm.Message{{Role: constant.ChatMessageRoleUser, Content: turn.Prompt}}
}

func (s *chatService) Generate(ctx context.Context, turn *ChatTurn) error {
	if turn.Mode != stream.ModeReplay || turn.generated {
		return nil
	}
	s.transition(turn, stateGenerating, map[string]interface{}{"mode": turn.Mode})
	s.chatLogger.Info("Prompt", turn.ChatId, map[string]interface{}{"prompt": turn.Prompt})

	ctx, span := startTurnSpan(ctx, "chat.generate", turn)
	defer span.End()

	answer, err := s.llm.Chat(ctx, s.modelInput(turn), llm.WithTemperature(answerTemperature))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate answer")
		s.transition(turn, stateErrored, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("generate answer: %w", err)
	}

	turn.Answer = answer
	turn.generated = true
	s.chatLogger.Info("Answer", turn.ChatId, map[string]interface{}{"answer": answer})
	return nil
}

func (s *chatService) Stream(ctx context.Context, turn *ChatTurn, sink EventSink) (*dto.ChatTurnResult, error) {
	if err := sink(stream.Start(turn.ChatId, turn.Ticker, turn.Mode)); err != nil {
		return nil, fmt.Errorf("send start: %w", err)
	}

	if turn.Mode == stream.ModeStream {
		return s.streamLive(ctx, turn, sink)
	}
	return s.streamReplay(ctx, turn, sink)
}

func (s *chatService) streamLive(ctx context.Context, turn *ChatTurn, sink EventSink) (*dto.ChatTurnResult, error) {
	streaming := s.llm.(llm.StreamingProvider)

	s.transition(turn, stateGenerating, map[string]interface{}{"mode": turn.Mode})
	s.chatLogger.Info("Prompt", turn.ChatId, map[string]interface{}{"prompt": turn.Prompt})

	s.transition(turn, stateStreaming, nil)
	answer, err := streaming.ChatStream(ctx, s.modelInput(turn), func(delta string) error {
		return sink(stream.Token(delta))
	}, llm.WithTemperature(answerTemperature))
	if err != nil {
		s.transition(turn, stateErrored, map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("stream answer: %w", err)
	}
	turn.Answer = answer
	turn.generated = true
	s.chatLogger.Info("Answer", turn.ChatId, map[string]interface{}{"answer": answer})

	result, err := s.persist(ctx, turn)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, turn, result)
	return result, nil
}

func (s *chatService) streamReplay(ctx context.Context, turn *ChatTurn, sink EventSink) (*dto.ChatTurnResult, error) {
	if err := s.Generate(ctx, turn); err != nil {
		return nil, err
	}

	result, persistErr := s.persist(ctx, turn)

	// The answer is shown even when it could not be stored.
	s.transition(turn, stateStreaming, nil)
	err := stream.Replay(ctx, turn.Answer, s.options.ReplayDelay, func(piece string) error {
		return sink(stream.Token(piece))
	})
	if err != nil {
		s.transition(turn, stateErrored, map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("replay answer: %w", err)
	}
	if persistErr != nil {
		return nil, persistErr
	}

	s.finish(ctx, turn, result)
	return result, nil
}

// persist stores the turn in one transaction: the conversation is created (with a generated
// title) or touched, then the user and assistant messages are appended.
func (s *chatService) persist(ctx context.Context, turn *ChatTurn) (*dto.ChatTurnResult, error) {
	s.transition(turn, statePersisting, nil)

	// Title generation talks to the model; keep it outside the transaction.
	if turn.Existing == nil && turn.Title == "" {
		turn.Title = s.titles.Generate(ctx, turn.Query, turn.ReceivedAt)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, s.persistFailed(turn, fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			uow.Rollback()
		}
	}()

	now := s.now()
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByConversationKey{ID: turn.ChatId})
	if err != nil {
		return nil, s.persistFailed(turn, fmt.Errorf("find conversation: %w", err))
	}

	created := false
	if conversation == nil {
		title := turn.Title
		if title == "" {
			title = s.titles.Generate(ctx, turn.Query, turn.ReceivedAt)
		}
		conversation = &entity.Conversation{
			Id:        turn.ChatId,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
			return nil, s.persistFailed(turn, fmt.Errorf("create conversation: %w", err))
		}
		created = true
	} else {
		conversation.UpdatedAt = now
		if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
			return nil, s.persistFailed(turn, fmt.Errorf("touch conversation: %w", err))
		}
	}

	userAt := turn.ReceivedAt
	assistantAt := now
	if !assistantAt.After(userAt) {
		assistantAt = userAt.Add(time.Millisecond)
	}

	messages := []*entity.Message{
		{
			Id:             uuid.New(),
			ConversationId: turn.ChatId,
			Role:           constant.ChatMessageRoleUser,
			Content:        turn.Query,
			CreatedAt:      userAt,
		},
		{
			Id:             uuid.New(),
			ConversationId: turn.ChatId,
			Role:           constant.ChatMessageRoleAssistant,
			Content:        turn.Answer,
			Metadata:       s.metadata(turn),
			CreatedAt:      assistantAt,
		},
	}
	if err := uow.MessageRepository().CreateBatch(ctx, messages); err != nil {
		return nil, s.persistFailed(turn, fmt.Errorf("append messages: %w", err))
	}

	if err := uow.Commit(); err != nil {
		committed = true // the transaction is finished either way
		return nil, s.persistFailed(turn, fmt.Errorf("commit turn: %w", err))
	}
	committed = true

	return &dto.ChatTurnResult{
		ChatId:  turn.ChatId,
		Title:   conversation.Title,
		Created: created,
		Answer:  turn.Answer,
		Ticker:  turn.Ticker,
	}, nil
}

func (s *chatService) persistFailed(turn *ChatTurn, err error) error {
	s.transition(turn, stateErrored, map[string]interface{}{"error": err.Error()})
	s.logger.Error("ChatService", "Failed to persist turn", map[string]interface{}{"chat_id": turn.ChatId, "error": err.Error()})
	return err
}

func (s *chatService) metadata(turn *ChatTurn) *entity.MessageMetadata {
	meta := &entity.MessageMetadata{
		Ticker:          turn.Ticker,
		SentimentLabel:  string(turn.Sentiment.Label),
		SentimentScore:  turn.Sentiment.Score,
		SentimentStatus: string(turn.Sentiment.Status),
		StreamMode:      turn.Mode,
	}
	if turn.Market != nil {
		meta.QuoteStatus = string(turn.Market.Status)
		if turn.Market.Snapshot != nil {
			meta.QuoteSource = turn.Market.Snapshot.Source
		}
	}
	return meta
}

func (s *chatService) finish(ctx context.Context, turn *ChatTurn, result *dto.ChatTurnResult) {
	s.transition(turn, stateDone, map[string]interface{}{"created": result.Created})

	if s.publisher == nil {
		return
	}
	event := events.NewEvent(constant.EventChatTurnCompleted, map[string]interface{}{
		"chat_id": result.ChatId,
		"title":   result.Title,
		"ticker":  result.Ticker,
		"created": result.Created,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("ChatService", "Failed to publish turn event", map[string]interface{}{"chat_id": turn.ChatId, "error": err.Error()})
	}
}

// IsInvalidInput reports whether err came from request validation.
func IsInvalidInput(err error) bool {
	return errors.Is(err, constant.ErrInvalidInput)
}
