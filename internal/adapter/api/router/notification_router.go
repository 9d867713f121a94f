package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

func SetupNotificationRouter(e *echo.Echo, notificationHandler *handler.NotificationHandler, authMiddleware *middleware.AuthMiddleware) {
	notificationGroup := e.Group("/v1/notifications")
	notificationGroup.Use(authMiddleware.Authenticate)

	notificationGroup.GET("", notificationHandler.GetNotifications)
	notificationGroup.GET("/unread-count", notificationHandler.GetUnreadCount)
	notificationGroup.PUT("/read-all", notificationHandler.MarkAllAsRead)
	notificationGroup.PUT("/:id/read", notificationHandler.MarkAsRead)
	notificationGroup.DELETE("/:id", notificationHandler.DeleteNotification)

	adminGroup := e.Group("/v1/admin/notifications")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(middleware.AdminOnly)

	adminGroup.POST("", notificationHandler.CreateNotification)
}
