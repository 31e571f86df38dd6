// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidScaleMode is returned when SCALE_MODE is neither "fit" nor "fill".
	ErrInvalidScaleMode = errors.New("config: SCALE_MODE must be \"fit\" or \"fill\"")
	// ErrInvalidEncodeConcurrency is returned when MAX_CONCURRENT_ENCODES is not positive.
	ErrInvalidEncodeConcurrency = errors.New("config: MAX_CONCURRENT_ENCODES must be positive")
	// ErrInvalidTimeout is returned when RENDER_TIMEOUT or FETCH_TIMEOUT is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
	// ErrInvalidRetries is returned when FETCH_MAX_RETRIES is negative.
	ErrInvalidRetries = errors.New("config: FETCH_MAX_RETRIES must not be negative")
)

// Config holds all configuration for the application.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	// Server settings
	Port               int    `env:"PORT, default=8080" json:"port"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins"`

	// Scratch settings
	ScratchDir string `env:"SCRATCH_DIR, default=/tmp/yt-render" json:"scratch_dir"`

	// Encoder settings
	FFmpegPath           string        `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath          string        `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`
	ScaleMode            string        `env:"SCALE_MODE, default=fit" json:"scale_mode"` // "fit" or "fill"
	EncodePreset         string        `env:"ENCODE_PRESET, default=medium" json:"encode_preset"`
	AudioBitrate         string        `env:"AUDIO_BITRATE, default=192k" json:"audio_bitrate"`
	MaxConcurrentEncodes int           `env:"MAX_CONCURRENT_ENCODES, default=2" json:"max_concurrent_encodes"`
	RenderTimeout        time.Duration `env:"RENDER_TIMEOUT, default=10m" json:"render_timeout"`

	// Fetch settings
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT, default=2m" json:"fetch_timeout"`
	FetchMaxRetries   int           `env:"FETCH_MAX_RETRIES, default=2" json:"fetch_max_retries"`
	FetchRetryBackoff time.Duration `env:"FETCH_RETRY_BACKOFF, default=500ms" json:"fetch_retry_backoff"`
	FetchUserAgent    string        `env:"FETCH_USER_AGENT, default=Mozilla/5.0" json:"fetch_user_agent"`

	// Publisher settings. An empty bucket leaves the publisher unconfigured:
	// the server starts, and every render fails at the upload stage.
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3KeyPrefix        string        `env:"S3_KEY_PREFIX, default=renders" json:"s3_key_prefix"`
	SignedURLTTL       time.Duration `env:"SIGNED_URL_TTL, default=24h" json:"signed_url_ttl"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// PublisherEnabled returns true if a storage bucket is configured.
func (c *Config) PublisherEnabled() bool {
	return c.S3Bucket != ""
}

// AllowedOrigins splits CORSAllowedOrigins into its non-empty entries.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ScaleMode) {
	case "fit", "fill":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidScaleMode, c.ScaleMode)
	}
	if c.MaxConcurrentEncodes <= 0 {
		return ErrInvalidEncodeConcurrency
	}
	if c.RenderTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.FetchMaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ScratchDir: %s, ScaleMode: %s, MaxConcurrentEncodes: %d, RenderTimeout: %s, FetchTimeout: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, SignedURLTTL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ScratchDir,
		c.ScaleMode,
		c.MaxConcurrentEncodes,
		c.RenderTimeout,
		c.FetchTimeout,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.SignedURLTTL,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
