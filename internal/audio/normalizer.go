package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultFFmpegPath    = "ffmpeg"
	defaultFFmpegTimeout = 30 * time.Second
	maxDiagnosticLength  = 512
)

type Normalizer interface {
	Normalize(ctx context.Context, data []byte, format string) (Buffer, error)
}

// ConversionFailedError carries the converter's diagnostic text.
type ConversionFailedError struct {
	Reason string
	Err    error
}

func (e *ConversionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return "conversion failed: " + e.Reason
}

func (e *ConversionFailedError) Unwrap() error {
	return e.Err
}

type FFmpegConfig struct {
	Path    string
	TempDir string
	Timeout time.Duration
}

type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

type FFmpegNormalizer struct {
	cfg    FFmpegConfig
	run    commandRunner
	logger *slog.Logger
}

func NewFFmpegNormalizer(cfg FFmpegConfig, logger *slog.Logger) *FFmpegNormalizer {
	if cfg.Path == "" {
		cfg.Path = defaultFFmpegPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFFmpegTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegNormalizer{
		cfg:    cfg,
		run:    runCommand,
		logger: logger.With("component", "normalizer"),
	}
}

// Available reports whether the configured ffmpeg binary can be resolved.
func (n *FFmpegNormalizer) Available() error {
	_, err := exec.LookPath(n.cfg.Path)
	return err
}

func (n *FFmpegNormalizer) Normalize(ctx context.Context, data []byte, format string) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, &ConversionFailedError{Reason: "empty audio payload"}
	}

	if IsWAV(data) {
		buf, err := normalizeWAV(data)
		if err == nil {
			n.logger.Debug("normalized WAV without ffmpeg", "bytes", buf.Len(), "duration", buf.Duration())
			return buf, nil
		}
		n.logger.Debug("WAV fast path rejected payload, falling back to ffmpeg", "error", err)
	}

	return n.convert(ctx, data, format)
}

func (n *FFmpegNormalizer) convert(ctx context.Context, data []byte, format string) (Buffer, error) {
	staged, err := Stage(n.cfg.TempDir, format, data)
	if err != nil {
		return Buffer{}, &ConversionFailedError{Reason: "stage input", Err: err}
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			n.logger.Warn("failed to remove staged audio", "path", staged.Path(), "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	stdout, stderr, err := n.run(ctx, n.cfg.Path,
		"-hide_banner", "-loglevel", "error",
		"-i", staged.Path(),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		"pipe:1",
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Buffer{}, &ConversionFailedError{Reason: "ffmpeg timed out", Err: err}
		}
		return Buffer{}, &ConversionFailedError{Reason: diagnostic(stderr), Err: err}
	}
	if len(stdout) == 0 {
		return Buffer{}, &ConversionFailedError{Reason: "ffmpeg produced no audio: " + diagnostic(stderr)}
	}

	// ffmpeg never emits half a sample for s16le, but a truncated pipe might
	stdout = stdout[:len(stdout)-len(stdout)%BytesPerSample]
	return Buffer{data: stdout}, nil
}

func normalizeWAV(data []byte) (Buffer, error) {
	samples, info, err := DecodeWAV(data)
	if err != nil {
		return Buffer{}, err
	}
	if len(samples) == 0 {
		return Buffer{}, fmt.Errorf("WAV payload has no samples")
	}

	mono := DownmixInt16(samples, info.Channels)
	mono = ResampleInt16(mono, info.SampleRate, SampleRate)
	return Buffer{data: Int16ToPCMBytes(mono)}, nil
}

func diagnostic(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return "unknown ffmpeg error"
	}
	if len(msg) > maxDiagnosticLength {
		msg = msg[len(msg)-maxDiagnosticLength:]
	}
	return msg
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "AV_LOG_FORCE_NOCOLOR=1")
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
