package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

type Handlers struct {
	Chat         *handler.ChatHandler
	Notification *handler.NotificationHandler
	Presence     *handler.PresenceHandler
	WebSocket    *handler.WebSocketHandler
	Metrics      http.Handler
	// Attachments mounts the upload route.
	Attachments bool
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	SetupHealthRouter(e, h.Metrics)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupChatRouter(e, h.Chat, authMiddleware, h.Attachments)
	SetupNotificationRouter(e, h.Notification, authMiddleware)
	SetupPresenceRouter(e, h.Presence, authMiddleware)
}
