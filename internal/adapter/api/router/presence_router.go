package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

func SetupPresenceRouter(e *echo.Echo, presenceHandler *handler.PresenceHandler, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/v1/presence/:userId", presenceHandler.GetStatus, authMiddleware.Authenticate)
}
