package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/infrastructure/presence"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{
		registry: registry,
	}
}

func (h *PresenceHandler) GetStatus(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return response.Error(c, errors.InvalidArgument("userId is required", nil))
	}
	return response.Success(c, h.registry.Status(c.Request().Context(), userID))
}
