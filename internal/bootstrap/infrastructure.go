package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideRedisClient returns nil when REDIS_ADDR is unset; the rate limiter
// then keeps its counters in process.
func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// ProvideLimiter returns nil when rate limiting is disabled.
func ProvideLimiter(lc fx.Lifecycle, cfg *Config, client *redis.Client, logger *slog.Logger) ratelimit.Limiter {
	if cfg.RateLimitPerMinute == 0 {
		logger.Info("rate limiting disabled")
		return nil
	}

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.PerMinute = cfg.RateLimitPerMinute

	if client != nil {
		logger.Info("rate limiting with redis", "addr", cfg.RedisAddr, "per_minute", rlCfg.PerMinute)
		return ratelimit.NewRedisLimiter(client, rlCfg)
	}

	local := ratelimit.NewLocalLimiter(rlCfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			local.Close()
			return nil
		},
	})
	logger.Info("rate limiting in process", "per_minute", rlCfg.PerMinute)
	return local
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideLimiter,
		ProvideMetrics,
	),
)
