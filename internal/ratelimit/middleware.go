package ratelimit

import (
	"log/slog"

	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

// Middleware rejects callers over their budget with 429. Limiter failures
// are logged and the request is let through.
func Middleware(limiter Limiter, m *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "ratelimit")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}
			if !allowed {
				if m != nil {
					m.RateLimited.Inc()
				}
				return shared.TooManyRequests("rate_limit_exceeded", "too many requests")
			}

			return next(c)
		}
	}
}
