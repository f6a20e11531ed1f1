package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"medibot-be/internal/pkg/logger"
	"medibot-be/internal/registry"
)

// SessionHandler exposes the client-facing websocket endpoint and hands
// accepted connections to the registry.
type SessionHandler struct {
	hub    *registry.Hub
	router registry.Router
	logger logger.ILogger
}

func NewSessionHandler(hub *registry.Hub, router registry.Router, log logger.ILogger) *SessionHandler {
	return &SessionHandler{
		hub:    hub,
		router: router,
		logger: log,
	}
}

// ServeWs handles websocket requests from the peer.
func (h *SessionHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionHandler", "Starting WebSocket session", map[string]interface{}{"remote": conn.RemoteAddr().String()})
			registry.ServeWs(h.hub, h.router, conn)
			h.logger.Info("SessionHandler", "WebSocket session ended", nil)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the websocket route.
func (h *SessionHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
