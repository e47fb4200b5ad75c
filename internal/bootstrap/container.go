package bootstrap

import (
	"context"
	"log"
	"os"
	"regexp"

	"ai-marketchat-be/internal/config"
	"ai-marketchat-be/internal/constant"
	"ai-marketchat-be/internal/controller"
	"ai-marketchat-be/internal/handler"
	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/internal/repository/memory"
	"ai-marketchat-be/internal/repository/unitofwork"
	"ai-marketchat-be/internal/service"
	"ai-marketchat-be/internal/websocket"
	"ai-marketchat-be/pkg/analyst/title"
	"ai-marketchat-be/pkg/llm/factory"
	"ai-marketchat-be/pkg/marketdata"
	marketfactory "ai-marketchat-be/pkg/marketdata/factory"
	pktNats "ai-marketchat-be/pkg/nats"
	"ai-marketchat-be/pkg/sentiment"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController   controller.IChatController
	MarketController controller.IMarketController

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService // nil without NATS

	// WebSockets
	ChatSocketHandler *handler.ChatSocketHandler
	WebSocketHub      *websocket.Hub

	closers []func()
}

// NewContainer wires every process-wide client once. A nil db selects the in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	c := &Container{}

	// 1. Core Facades
	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		log.Printf("[WARN] No database handle, conversations are kept in memory")
		uowFactory = memory.NewRepositoryFactory(memory.NewStore())
	}
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	chatLogger := logger.NewIsolatedLogger(cfg.App.ChatLogFilePath)
	c.closers = append(c.closers, func() { sysLogger.Sync(); chatLogger.Sync() })

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	// Redis
	rdb := connectRedis(cfg.App.RedisURL)
	if rdb != nil {
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(wsLogger)
	go wsHub.Run()
	c.closers = append(c.closers, wsHub.Close)

	// 3. Providers
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Keys.HuggingFace,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	marketProvider, err := marketfactory.NewMarketDataProvider(marketfactory.Options{
		Provider:        cfg.Market.Provider,
		AlphaVantageKey: cfg.Keys.AlphaVantage,
		AlphaVantageURL: cfg.Market.AlphaVantageURL,
		NSEServiceURL:   cfg.Market.NSEServiceURL,
		Timeout:         cfg.Market.Timeout,
		CacheTTL:        cfg.Market.CacheTTL,
	}, rdb, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Market Data Provider: %v", err)
	}
	log.Printf("[INFO] Using Market Data Provider: %s", marketProvider.Name())

	classifier := sentiment.NewClassifier(cfg.Ai.SentimentURL, cfg.Keys.FinBERT, cfg.Ai.SentimentTimeout)
	titles := title.NewGenerator(llmProvider, cfg.Ai.TitleTimeout)

	// 4. Services
	publisherService := service.NewPublisherService(constant.ChatEventsTopic, pubSub)

	var forwarder service.EventForwarder
	if natsPub != nil {
		forwarder = natsPub
	}
	c.ConsumerService = service.NewConsumerService(pubSub, constant.ChatEventsTopic, forwarder, wsHub, sysLogger)

	chatService := service.NewChatService(
		uowFactory,
		llmProvider,
		titles,
		marketdata.NewFetcher(marketProvider),
		classifier,
		publisherService,
		service.ChatOptions{
			Streaming:   cfg.Ai.Streaming,
			ReplayDelay: cfg.Ai.ReplayDelay,
		},
		sysLogger,
		chatLogger,
	)
	historyService := service.NewHistoryService(uowFactory, publisherService, sysLogger)
	marketService := service.NewMarketService(marketProvider, sysLogger)

	// 4.5 Notifications: NATS brings every instance's events back to its own hub
	if natsSub != nil {
		c.NotificationService = service.NewNotificationService(natsSub, wsHub, durableName(), wsLogger)
	}

	// 5. Controllers
	c.ChatController = controller.NewChatController(chatService, historyService)
	c.MarketController = controller.NewMarketController(marketService)
	c.ChatSocketHandler = handler.NewChatSocketHandler(chatService, wsHub, wsLogger)
	c.WebSocketHub = wsHub

	return c
}

// Close releases clients in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func connectRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Quotes are cached in process only", err)
		rdb.Close()
		return nil
	}
	return rdb
}

var invalidDurableChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// durableName is stable per host so a restarted instance resumes its own consumer.
func durableName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = watermill.NewShortUUID()
	}
	return "chat-notify-" + invalidDurableChars.ReplaceAllString(host, "_")
}
