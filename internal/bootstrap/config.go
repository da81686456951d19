package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/eleven-am/verse-backend/internal/processing"
	"github.com/eleven-am/verse-backend/internal/transcription"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	RealtimeURL          string
	OpenAIAPIKey         string
	TranscriptionTimeout time.Duration
	HandshakeTimeout     time.Duration

	FFmpegPath     string
	FFmpegTimeout  time.Duration
	AudioTempDir   string
	MaxUploadBytes int64

	IncludeTranscript bool
	TaxonomyPath      string

	RateLimitPerMinute int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	StaticDir string
	IndexHTML string
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RealtimeURL:          getEnv("REALTIME_URL", transcription.DefaultURL),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		TranscriptionTimeout: getEnvDuration("TRANSCRIPTION_TIMEOUT", transcription.DefaultTimeout),
		HandshakeTimeout:     getEnvDuration("HANDSHAKE_TIMEOUT", transcription.DefaultHandshakeTimeout),

		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegTimeout:  getEnvDuration("FFMPEG_TIMEOUT", 30*time.Second),
		AudioTempDir:   getEnv("AUDIO_TEMP_DIR", ""),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", processing.DefaultMaxUploadBytes)),

		IncludeTranscript: getEnvBool("INCLUDE_TRANSCRIPT", false),
		TaxonomyPath:      getEnv("TAXONOMY_PATH", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),

		StaticDir: getEnv("STATIC_DIR", ""),
		IndexHTML: getEnv("INDEX_HTML", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.RealtimeURL == "" {
		errs = append(errs, errors.New("REALTIME_URL must not be empty"))
	}
	if c.TranscriptionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TRANSCRIPTION_TIMEOUT must be positive, got %s", c.TranscriptionTimeout))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HANDSHAKE_TIMEOUT must be positive, got %s", c.HandshakeTimeout))
	}
	if c.FFmpegTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FFMPEG_TIMEOUT must be positive, got %s", c.FFmpegTimeout))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
