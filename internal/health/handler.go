package health

import (
	"context"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/transcription"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type TaxonomyStats struct {
	Religions []classifier.Religion `json:"religions"`
}

type Stats struct {
	Requests RequestStats  `json:"requests"`
	Taxonomy TaxonomyStats `json:"taxonomy"`
	Runtime  RuntimeStats  `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

// ConverterCheck reports whether the external audio converter can be run.
type ConverterCheck interface {
	Available() error
}

type Handler struct {
	converter ConverterCheck
	redis     *redis.Client
	realtime  transcription.Config
	taxonomy  *classifier.Table
	version   string
	startTime time.Time

	totalRequests     atomic.Uint64
	activeConnections atomic.Int64
}

// NewHandler builds the health handler. A nil redis client means the
// in-process rate limiter is in use and redis is not reported.
func NewHandler(
	converter ConverterCheck,
	redis *redis.Client,
	realtime transcription.Config,
	taxonomy *classifier.Table,
	version string,
) *Handler {
	return &Handler{
		converter: converter,
		redis:     redis,
		realtime:  realtime,
		taxonomy:  taxonomy,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

func (h *Handler) IncrementRequests() {
	h.totalRequests.Add(1)
}

func (h *Handler) IncrementConnections() {
	h.activeConnections.Add(1)
}

func (h *Handler) DecrementConnections() {
	h.activeConnections.Add(-1)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) ComponentStatus{
		"ffmpeg":   h.checkConverter,
		"realtime": h.checkRealtime,
		"taxonomy": h.checkTaxonomy,
	}
	if h.redis != nil {
		checks["redis"] = h.checkRedis
	}

	components := make(map[string]ComponentStatus, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(len(checks))
	for name, check := range checks {
		go func() {
			defer wg.Done()
			status := check(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()

	overallStatus := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var religions []classifier.Religion
	if h.taxonomy != nil {
		religions = h.taxonomy.Religions()
	}

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Requests: RequestStats{
				TotalRequests:     h.totalRequests.Load(),
				ActiveConnections: h.activeConnections.Load(),
			},
			Taxonomy: TaxonomyStats{Religions: religions},
			Runtime: RuntimeStats{
				Goroutines:         runtime.NumGoroutine(),
				MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
				MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
				MemorySysMB:        memStats.Sys / 1024 / 1024,
				NumGC:              memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

// checkConverter reports degraded rather than unhealthy: WAV uploads are
// still served without ffmpeg.
func (h *Handler) checkConverter(_ context.Context) ComponentStatus {
	start := time.Now()
	if h.converter == nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "converter not configured",
		}
	}

	if err := h.converter.Available(); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ffmpeg not found",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkRealtime(_ context.Context) ComponentStatus {
	start := time.Now()
	u, err := url.Parse(h.realtime.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "realtime url invalid",
		}
	}

	if h.realtime.APIKey == "" {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "api key not configured",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkTaxonomy(_ context.Context) ComponentStatus {
	start := time.Now()
	if h.taxonomy == nil || len(h.taxonomy.Religions()) == 0 {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "taxonomy not loaded",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func computeOverallStatus(components map[string]ComponentStatus) Status {
	hasDegraded := false
	for _, status := range components {
		switch status.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
