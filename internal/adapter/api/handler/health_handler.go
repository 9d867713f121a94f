package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "classifieds/internal/infrastructure/websocket"
)

type HealthHandler struct {
	wsManager *ws.Manager
}

var healthHandler *HealthHandler

func NewHealthHandler(wsManager *ws.Manager) *HealthHandler {
	return &HealthHandler{
		wsManager: wsManager,
	}
}

func SetupHealthHandler(wsManager *ws.Manager) {
	healthHandler = NewHealthHandler(wsManager)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"connections": h.wsManager.ConnectedClients(),
	})
}
