package handler

import (
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "classifieds/internal/infrastructure/websocket"
	"classifieds/pkg/logger"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

func NewWebSocketHandler(wsManager *ws.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades and serves the connection. The credential may come
// from ?token=, the Authorization header, or the first frame.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed: %v", err)
		return nil
	}

	h.wsManager.ServeConn(conn, token)
	return nil
}
