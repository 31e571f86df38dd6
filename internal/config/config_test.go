package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ALLOWED_ORIGINS", "SCRATCH_DIR",
		"FFMPEG_PATH", "FFPROBE_PATH", "SCALE_MODE", "ENCODE_PRESET", "AUDIO_BITRATE",
		"MAX_CONCURRENT_ENCODES", "RENDER_TIMEOUT",
		"FETCH_TIMEOUT", "FETCH_MAX_RETRIES", "FETCH_RETRY_BACKOFF", "FETCH_USER_AGENT",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_KEY_PREFIX", "SIGNED_URL_TTL",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/yt-render", cfg.ScratchDir)
	assert.Equal(t, "fit", cfg.ScaleMode)
	assert.Equal(t, "medium", cfg.EncodePreset)
	assert.Equal(t, "192k", cfg.AudioBitrate)
	assert.Equal(t, 2, cfg.MaxConcurrentEncodes)
	assert.Equal(t, 10*time.Minute, cfg.RenderTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 2, cfg.FetchMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.FetchRetryBackoff)
	assert.Equal(t, "Mozilla/5.0", cfg.FetchUserAgent)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "renders", cfg.S3KeyPrefix)
	assert.Equal(t, 24*time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.PublisherEnabled())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("SCRATCH_DIR", "/custom/scratch")
	t.Setenv("SCALE_MODE", "fill")
	t.Setenv("MAX_CONCURRENT_ENCODES", "4")
	t.Setenv("RENDER_TIMEOUT", "90s")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("FETCH_MAX_RETRIES", "0")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("SIGNED_URL_TTL", "0s")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/scratch", cfg.ScratchDir)
	assert.Equal(t, "fill", cfg.ScaleMode)
	assert.Equal(t, 4, cfg.MaxConcurrentEncodes)
	assert.Equal(t, 90*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.FetchMaxRetries)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, time.Duration(0), cfg.SignedURLTTL)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.PublisherEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoad_InvalidScaleMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCALE_MODE", "stretch")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScaleMode)
}

func TestLoad_InvalidNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ScaleMode:            "fit",
			MaxConcurrentEncodes: 1,
			RenderTimeout:        time.Minute,
			FetchTimeout:         time.Second,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("scale mode is case insensitive", func(t *testing.T) {
		cfg := valid()
		cfg.ScaleMode = "FILL"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero encode concurrency", func(t *testing.T) {
		cfg := valid()
		cfg.MaxConcurrentEncodes = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidEncodeConcurrency)
	})

	t.Run("zero render timeout", func(t *testing.T) {
		cfg := valid()
		cfg.RenderTimeout = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := valid()
		cfg.FetchMaxRetries = -1
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidRetries)
	})
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		ScratchDir:         "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "AKIAEXAMPLE")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())

	var buf bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&buf, nil))
	testLogger.Info("test message")
	assert.Contains(t, buf.String(), `"msg"`)
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.IsType(t, &slog.TextHandler{}, logger.Handler())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
