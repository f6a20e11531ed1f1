package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"medibot-be/internal/config"
	"medibot-be/internal/pkg/logger"
	"medibot-be/internal/relay"
	"medibot-be/pkg/llm/factory"
	ragcontext "medibot-be/pkg/rag/context"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	sysLogger := logger.NewZapLogger("logs/relay.log", cfg.App.Environment == "production")
	defer sysLogger.Sync()

	// 2. Backends
	fetcher := ragcontext.NewFetcher(cfg.Context.URL, cfg.Context.Timeout, cfg.Context.MaxBytes)

	provider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	h := relay.NewHandler(cfg.Relay, fetcher, provider, sysLogger)

	// 3. Server
	app := fiber.New()

	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return websocket.New(func(conn *websocket.Conn) {
				h.Serve(conn)
			})(c)
		}
		return fiber.ErrUpgradeRequired
	})

	log.Printf("✅ Relay is running on ws://localhost:%s/ws", cfg.Relay.Port)
	log.Fatal(app.Listen(":" + cfg.Relay.Port))
}
