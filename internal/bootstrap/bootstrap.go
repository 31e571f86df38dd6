// Package bootstrap provides dependency initialization for the render service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/config"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/fetch"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/media"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/render"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
// Everything here is built once and shared read-only by all requests.
type Dependencies struct {
	Pipeline *render.Pipeline
	Scratch  *storage.Scratch
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	scratch, err := storage.NewScratch(cfg.ScratchDir, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	scale, err := media.ParseScaleMode(cfg.ScaleMode)
	if err != nil {
		return nil, err
	}
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath,
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithScaleMode(scale),
		media.WithPreset(cfg.EncodePreset),
		media.WithAudioBitrate(cfg.AudioBitrate),
	)

	fetcher := fetch.NewClient(
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithUserAgent(cfg.FetchUserAgent),
		fetch.WithMaxRetries(cfg.FetchMaxRetries),
		fetch.WithBaseBackoff(cfg.FetchRetryBackoff),
		fetch.WithLogger(logger),
	)

	pipeline := render.NewPipeline(fetcher, processor, scratch, publisher,
		render.WithLogger(logger),
		render.WithTimeout(cfg.RenderTimeout),
		render.WithMaxConcurrentEncodes(cfg.MaxConcurrentEncodes),
	)

	return &Dependencies{
		Pipeline: pipeline,
		Scratch:  scratch,
	}, nil
}

// initPublisher creates the S3 publisher, or an unconfigured one when no
// bucket is set.
func initPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if !cfg.PublisherEnabled() {
		logger.Warn("S3_BUCKET is not set; renders will fail at the upload stage")
		return storage.UnconfiguredPublisher{}, nil
	}

	s3Cfg := storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		KeyPrefix:       cfg.S3KeyPrefix,
		URLTTL:          cfg.SignedURLTTL,
	}
	publisher, err := storage.NewS3Publisher(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("create S3 publisher: %w", err)
	}
	logger.Info("S3 publisher configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.String("key_prefix", cfg.S3KeyPrefix),
		slog.Duration("signed_url_ttl", cfg.SignedURLTTL),
	)
	return publisher, nil
}
