package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"medibot-be/internal/pkg/serverutils"
	"medibot-be/internal/service"
)

type IChatController interface {
	RegisterRoutes(api fiber.Router)
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(api fiber.Router) {
	chat := api.Group("/chat/v1")
	chat.Get("/chats/:userId", c.GetChats)
}

// GetChats returns the caller's chat index: one entry per titled chat,
// newest first.
func (c *chatController) GetChats(ctx *fiber.Ctx) error {
	userId := ctx.Params("userId")
	if userId == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "userId is required"))
	}

	chats, err := c.chatService.GetChats(ctx.UserContext(), userId)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "user not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Chats retrieved", chats))
}
