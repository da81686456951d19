package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "verse"

// Outcome labels for a processed clip.
const (
	OutcomeSuccess             = "success"
	OutcomeConversionFailed    = "conversion_failed"
	OutcomeTranscriptionFailed = "transcription_failed"
	OutcomeRejected            = "rejected"
)

// Metrics holds the service collectors. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	ClipsProcessed         *prometheus.CounterVec
	ProcessingDuration     *prometheus.HistogramVec
	NormalizationFailures  prometheus.Counter
	NormalizedAudioSeconds prometheus.Histogram
	TranscriptionSessions  *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	ActiveSessions         prometheus.Gauge
	Classifications        *prometheus.CounterVec
	RateLimited            prometheus.Counter
	WebsocketConnections   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ClipsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clips_processed_total",
			Help:      "Audio clips handled, by entry point and outcome",
		}, []string{"entry", "outcome"}),
		ProcessingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "End to end time from upload to classification",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"entry"}),
		NormalizationFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_failures_total",
			Help:      "Uploads that ffmpeg could not convert",
		}),
		NormalizedAudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "normalized_audio_seconds",
			Help:      "Duration of normalized clips",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		TranscriptionSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_sessions_total",
			Help:      "Realtime transcription sessions, by result",
		}, []string{"result"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Time from dial to resolved transcription session",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcription_sessions_active",
			Help:      "Transcription sessions currently open",
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification results, by category and religion",
		}, []string{"category", "religion"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		WebsocketConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open client websocket connections",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordClip(entry, outcome string, seconds float64) {
	m.ClipsProcessed.WithLabelValues(entry, outcome).Inc()
	m.ProcessingDuration.WithLabelValues(entry).Observe(seconds)
}

func (m *Metrics) RecordNormalization(audioSeconds float64, err error) {
	if err != nil {
		m.NormalizationFailures.Inc()
		return
	}
	m.NormalizedAudioSeconds.Observe(audioSeconds)
}

// SessionStarted marks a transcription session as open and returns the
// function that records its result.
func (m *Metrics) SessionStarted() func(result string, seconds float64) {
	m.ActiveSessions.Inc()
	return func(result string, seconds float64) {
		m.ActiveSessions.Dec()
		m.TranscriptionSessions.WithLabelValues(result).Inc()
		m.TranscriptionDuration.Observe(seconds)
	}
}

func (m *Metrics) RecordClassification(category, religion string) {
	if religion == "" {
		religion = "none"
	}
	m.Classifications.WithLabelValues(category, religion).Inc()
}
