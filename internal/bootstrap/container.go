package bootstrap

import (
	"context"
	"log"

	"medibot-be/internal/config"
	"medibot-be/internal/controller"
	"medibot-be/internal/handler"
	"medibot-be/internal/pkg/logger"
	"medibot-be/internal/registry"
	"medibot-be/internal/repository/memory"
	"medibot-be/internal/repository/unitofwork"
	"medibot-be/internal/service"
	"medibot-be/pkg/relay"

	pktNats "medibot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// WebSocket surface
	SessionHandler *handler.SessionHandler
	WebSocketHub   *registry.Hub

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Persistence Queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/registry.log")
	wsHub := registry.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// In-memory session storage
	sessionRepo := memory.NewSessionRepository()

	// Relay dialing client
	relayClient := relay.NewClient(cfg.Relay, sysLogger)

	// 4. Services
	publisherService := service.NewPublisherService(pubSub)
	consumerService := service.NewConsumerService(pubSub, uowFactory, sysLogger)

	var eventBus service.EventPublisher
	if natsPub != nil {
		eventBus = natsPub
	}

	sessionService := service.NewSessionService(
		sessionRepo,
		relayClient,
		publisherService,
		eventBus,
		uowFactory,
		cfg.Chat,
		sysLogger,
	)

	chatService := service.NewChatService(uowFactory)

	// Operator notices from the bus fan out to every live connection.
	if natsSub != nil {
		noticeService := service.NewNoticeService(natsSub, wsHub, wsLogger)
		go noticeService.Start()
	}

	// 5. Surface
	sessionHandler := handler.NewSessionHandler(wsHub, sessionService, wsLogger)

	return &Container{
		ChatController:  controller.NewChatController(chatService),
		SessionHandler:  sessionHandler,
		WebSocketHub:    wsHub,
		ConsumerService: consumerService,
	}
}
