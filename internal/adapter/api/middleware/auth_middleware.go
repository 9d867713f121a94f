package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

type AuthMiddleware struct {
	authUseCase *usecase.AuthUseCase
}

func NewAuthMiddleware(authUseCase *usecase.AuthUseCase) *AuthMiddleware {
	return &AuthMiddleware{
		authUseCase: authUseCase,
	}
}

// Authenticate requires "Authorization: Bearer <token>" and sets uid and role on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		identity, err := m.authUseCase.Authenticate(c.Request().Context(), parts[1])
		if err != nil {
			return response.Error(c, err)
		}

		c.Set("uid", identity.UserID)
		c.Set("role", identity.Role)

		return next(c)
	}
}
