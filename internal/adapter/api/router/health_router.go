package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
)

func SetupHealthRouter(e *echo.Echo, metricsHandler http.Handler) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/metrics", echo.WrapHandler(metricsHandler))
}
