package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/eleven-am/verse-backend/internal/classifier"
	"github.com/eleven-am/verse-backend/internal/metrics"
	"github.com/eleven-am/verse-backend/internal/processing"
	"github.com/eleven-am/verse-backend/internal/transcription"
	"go.uber.org/fx"
)

func ProvideFFmpegNormalizer(cfg *Config, logger *slog.Logger) *audio.FFmpegNormalizer {
	n := audio.NewFFmpegNormalizer(audio.FFmpegConfig{
		Path:    cfg.FFmpegPath,
		TempDir: cfg.AudioTempDir,
		Timeout: cfg.FFmpegTimeout,
	}, logger)
	if err := n.Available(); err != nil {
		logger.Warn("ffmpeg not found, only WAV uploads will be accepted", "path", cfg.FFmpegPath, "error", err)
	}
	return n
}

func ProvideNormalizer(n *audio.FFmpegNormalizer) audio.Normalizer {
	return n
}

func ProvideTranscriptionConfig(cfg *Config) transcription.Config {
	return transcription.Config{
		URL:              cfg.RealtimeURL,
		APIKey:           cfg.OpenAIAPIKey,
		Timeout:          cfg.TranscriptionTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
}

func ProvideTranscriber(cfg transcription.Config, logger *slog.Logger) transcription.Transcriber {
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, transcription sessions will be rejected")
	}
	return transcription.NewClient(cfg, logger)
}

func ProvideTaxonomy(cfg *Config, logger *slog.Logger) (*classifier.Table, error) {
	table, err := classifier.LoadTable(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	source := cfg.TaxonomyPath
	if source == "" {
		source = "embedded"
	}
	logger.Info("taxonomy loaded", "source", source, "religions", table.Religions())
	return table, nil
}

func ProvideClassifier(table *classifier.Table) *classifier.Classifier {
	return classifier.New(table)
}

func ProvidePipeline(
	n audio.Normalizer,
	t transcription.Transcriber,
	c *classifier.Classifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *processing.Pipeline {
	return processing.NewPipeline(n, t, c, m, logger)
}

func ProvideProcessingHandler(p *processing.Pipeline, cfg *Config, logger *slog.Logger) *processing.Handler {
	return processing.NewHandler(p, processing.Config{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		IncludeTranscript: cfg.IncludeTranscript,
	}, logger)
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideFFmpegNormalizer,
		ProvideNormalizer,
		ProvideTranscriptionConfig,
		ProvideTranscriber,
		ProvideTaxonomy,
		ProvideClassifier,
		ProvidePipeline,
		ProvideProcessingHandler,
	),
)
