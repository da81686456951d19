package bootstrap

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/processing"
	"github.com/eleven-am/verse-backend/internal/ratelimit"
	"go.uber.org/fx"
)

func TestAppGraph(t *testing.T) {
	err := fx.ValidateApp(
		fx.Provide(LoadConfig),
		InfrastructureModule,
		PipelineModule,
		ServerModule,
		HealthModule,
		HandlersModule,
	)
	if err != nil {
		t.Fatalf("dependency graph is incomplete: %v", err)
	}
}

func TestRegisterRoutes(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "index.html")
	if err := os.WriteFile(index, []byte("<html>upload</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}

	table, err := classifier.DefaultTable()
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	pipeline := processing.NewPipeline(nil, nil, classifier.New(table), m, logger)

	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{PerMinute: 1})
	defer limiter.Close()

	e := NewEchoServer()
	RegisterRoutes(e, HandlerParams{
		ProcessingHandler: processing.NewHandler(pipeline, processing.Config{}, logger),
		Limiter:           limiter,
		Metrics:           m,
		Logger:            logger,
		Config:            &Config{IndexHTML: index},
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "upload") {
		t.Errorf("index: status %d body %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected request id header")
	}

	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/process-audio", nil))
	if first.Code != http.StatusBadRequest {
		t.Errorf("first upload without a file: status %d", first.Code)
	}

	second := httptest.NewRecorder()
	e.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/process-audio", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second upload should be rate limited, got %d", second.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "verse_rate_limited_total 1") {
		t.Error("metrics endpoint should expose the rate limiter counter")
	}
}
