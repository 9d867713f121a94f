package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
)

// SetupWebSocketRouter mounts /ws. Authentication happens inside the gateway.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
