package processing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/transcription"
)

const (
	EntryHTTP      = "http"
	EntryWebsocket = "websocket"
)

// Outcome is what one clip produced. Transcript is kept for logging and for
// callers that opt in to echoing it.
type Outcome struct {
	RequestID  string
	Transcript transcription.Transcript
	Result     classifier.Result
}

// Pipeline runs normalize, transcribe and classify for one clip at a time.
// It holds no per-request state and is shared by every handler goroutine.
type Pipeline struct {
	normalizer  audio.Normalizer
	transcriber transcription.Transcriber
	classifier  *classifier.Classifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewPipeline(n audio.Normalizer, t transcription.Transcriber, c *classifier.Classifier, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{
		normalizer:  n,
		transcriber: t,
		classifier:  c,
		metrics:     m,
		logger:      logger.With("component", "processing"),
	}
}

func (p *Pipeline) Process(ctx context.Context, requestID, entry string, data []byte, format string) (Outcome, error) {
	logger := p.logger.With("request_id", requestID, "entry", entry)
	start := time.Now()

	buf, err := p.normalizer.Normalize(ctx, data, format)
	p.metrics.RecordNormalization(buf.Duration().Seconds(), err)
	if err != nil {
		logger.Error("audio normalization failed",
			"category", FailureCategory(err),
			"format", format,
			"bytes", len(data),
			"error", err)
		p.metrics.RecordClip(entry, metrics.OutcomeConversionFailed, time.Since(start).Seconds())
		return Outcome{}, err
	}

	sessionStart := time.Now()
	done := p.metrics.SessionStarted()
	transcript, err := p.transcriber.Transcribe(ctx, buf)
	done(sessionResult(err), time.Since(sessionStart).Seconds())
	if err != nil {
		logger.Error("transcription failed",
			"category", FailureCategory(err),
			"audio_duration", buf.Duration(),
			"error", err)
		p.metrics.RecordClip(entry, metrics.OutcomeTranscriptionFailed, time.Since(start).Seconds())
		return Outcome{}, err
	}

	result := p.classifier.Classify(transcript.Text)
	p.metrics.RecordClassification(string(result.Category), string(result.Religion))
	p.metrics.RecordClip(entry, metrics.OutcomeSuccess, time.Since(start).Seconds())

	logger.Info("clip processed",
		"category", result.Category,
		"religion", result.Religion,
		"subtopic", result.Subtopic,
		"placeholder_transcript", transcript.Placeholder,
		"elapsed", time.Since(start))
	logger.Debug("transcript",
		"text", transcript.Text,
		"matched_religions", p.classifier.Matches(transcript.Text))

	return Outcome{RequestID: requestID, Transcript: transcript, Result: result}, nil
}

// FailureCategory names the failure for logs and metrics. Callers never see
// it; they only get the generic processing message.
func FailureCategory(err error) string {
	var convErr *audio.ConversionFailedError
	if errors.As(err, &convErr) {
		return "conversion_failed"
	}
	var sessErr *transcription.SessionError
	if errors.As(err, &sessErr) {
		return string(sessErr.Kind)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "internal"
}

func sessionResult(err error) string {
	if err == nil {
		return "ok"
	}
	return FailureCategory(err)
}
