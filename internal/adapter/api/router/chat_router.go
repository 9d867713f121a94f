package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

// SetupChatRouter mounts the chat request surface. The attachment route is
// only mounted when a media store is configured.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware, attachments bool) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("", chatHandler.ListSessions)
	chatGroup.POST("", chatHandler.StartSession)
	chatGroup.GET("/:id", chatHandler.GetSession)
	chatGroup.PATCH("/:id", chatHandler.UpdateSession)

	chatGroup.GET("/:id/messages", chatHandler.GetMessages)
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)

	if attachments {
		chatGroup.POST("/:id/attachments", chatHandler.UploadAttachment)
	}
}
