package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/processing"
	"github.com/eleven-am/verse-backend/internal/ratelimit"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	ProcessingHandler *processing.Handler
	Limiter           ratelimit.Limiter
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
	Config            *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	var mw []echo.MiddlewareFunc
	if params.Limiter != nil {
		mw = append(mw, ratelimit.Middleware(params.Limiter, params.Metrics, params.Logger))
	}
	params.ProcessingHandler.RegisterRoutes(e.Group(""), mw...)

	e.GET("/metrics", echo.WrapHandler(params.Metrics.Handler()))

	if params.Config.StaticDir != "" {
		e.Static("/assets", params.Config.StaticDir)
	}
	if params.Config.IndexHTML != "" {
		e.GET("/", func(c echo.Context) error {
			return c.File(params.Config.IndexHTML)
		})
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

var HandlersModule = fx.Options(
	fx.Provide(ProvideLogger),
	fx.Invoke(RegisterRoutes),
)
