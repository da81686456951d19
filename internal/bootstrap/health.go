package bootstrap

import (
	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/health"
	"github.com/eleven-am/verse-backend/internal/transcription"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const version = "1.0.0"

func ProvideHealthHandler(
	normalizer *audio.FFmpegNormalizer,
	redis *redis.Client,
	realtime transcription.Config,
	taxonomy *classifier.Table,
) *health.Handler {
	return health.NewHandler(normalizer, redis, realtime, taxonomy, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
