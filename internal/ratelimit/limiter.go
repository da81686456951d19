package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	PerMinute       int
	CleanupInterval time.Duration
	KeyPrefix       string
}

func DefaultConfig() Config {
	return Config{
		PerMinute:       30,
		CleanupInterval: 5 * time.Minute,
		KeyPrefix:       "verse:ratelimit",
	}
}

// LocalLimiter keeps one token bucket per key in process memory. Buckets
// idle for longer than CleanupInterval are dropped.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	cfg      Config
	stop     chan struct{}
	stopOnce sync.Once
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(cfg Config) *LocalLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	l := &LocalLimiter{
		limiters: make(map[string]*localEntry),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		perSecond := rate.Limit(float64(l.cfg.PerMinute) / 60)
		entry = &localEntry{limiter: rate.NewLimiter(perSecond, l.cfg.PerMinute)}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow(), nil
}

func (l *LocalLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *LocalLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.evictIdle(now)
		}
	}
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.cfg.CleanupInterval {
			delete(l.limiters, key)
		}
	}
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RedisLimiter counts requests per key in fixed one-minute windows shared by
// every replica pointed at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &RedisLimiter{client: client, cfg: cfg, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Truncate(time.Minute)
	redisKey := fmt.Sprintf("%s:%s:%d", l.cfg.KeyPrefix, key, window.Unix())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, 2*time.Minute)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	return incr.Val() <= int64(l.cfg.PerMinute), nil
}
