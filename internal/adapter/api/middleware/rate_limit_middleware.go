package middleware

import (
	"fmt"
	"math"

	"github.com/labstack/echo/v4"

	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/response"
)

// RateLimit throttles requests per client IP using the action's bucket.
func RateLimit(rl *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			allowed, wait := rl.Allow(ip, action)
			if !allowed {
				logger.Warn("RATE LIMIT: blocked request from %s (retry in %v)", ip, wait)
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
