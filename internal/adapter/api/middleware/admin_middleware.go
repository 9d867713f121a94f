package middleware

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

// AdminOnly must run after AuthMiddleware.Authenticate.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get("uid").(string); !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if role, _ := c.Get("role").(string); role != entity.RoleAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		return next(c)
	}
}
