package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/verse-backend/internal/audio"
	"github.com/eleven-am/verse-backend/internal/shared"
	"github.com/gorilla/websocket"
)

// Client opens one Session per Transcribe call. Sessions are never pooled.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = normalizeConfig(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger.With("component", "transcription"),
	}
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) Transcribe(ctx context.Context, buf audio.Buffer) (Transcript, error) {
	sess := newSession(shared.NewID("rt_"), c.logger)
	start := time.Now()

	if err := sess.connect(ctx, c.dialer, c.cfg.URL, c.headers()); err != nil {
		return Transcript{}, err
	}

	t, err := sess.await(buf, c.cfg.Timeout)
	if err != nil {
		sess.logger.Warn("transcription session failed", "error", err, "elapsed", time.Since(start))
		return Transcript{}, err
	}

	sess.logger.Info("transcription session resolved",
		"elapsed", time.Since(start),
		"audio_duration", buf.Duration(),
		"placeholder", t.Placeholder)
	return t, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	if c.cfg.BetaHeader != "" {
		h.Set("OpenAI-Beta", c.cfg.BetaHeader)
	}
	return h
}

func normalizeConfig(cfg Config) Config {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.BetaHeader == "" {
		cfg.BetaHeader = DefaultBetaHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return cfg
}
