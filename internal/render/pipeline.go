// Package render provides the render pipeline: it validates a slideshow
// request, sequences fetch, encode, concat, mux and publish, and owns the
// scratch files of every render from creation to cleanup.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/fetch"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/media"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/render/id"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/storage"
)

// Fetcher downloads an already normalized URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) error
}

// Scratch hands out a private workspace per render.
type Scratch interface {
	NewWorkspace(renderID string) (*storage.Workspace, error)
}

const (
	defaultTimeout        = 10 * time.Minute
	defaultEncodeParallel = 2
	videoContentType      = "video/mp4"
)

// Pipeline renders slideshow requests. It holds no per-render state and is
// safe for concurrent use.
type Pipeline struct {
	fetcher   Fetcher
	processor media.Processor
	scratch   Scratch
	publisher storage.Publisher
	validator *validator.Validate
	logger    *slog.Logger

	timeout    time.Duration
	maxEncodes int
	newID      func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTimeout bounds a whole render. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithMaxConcurrentEncodes limits how many segments of one render are
// encoded at the same time. 1 encodes sequentially.
func WithMaxConcurrentEncodes(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxEncodes = n
		}
	}
}

// WithIDGenerator replaces the render ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewPipeline creates a new Pipeline.
func NewPipeline(fetcher Fetcher, processor media.Processor, scratch Scratch, publisher storage.Publisher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    fetcher,
		processor:  processor,
		scratch:    scratch,
		publisher:  publisher,
		validator:  newValidator(),
		logger:     slog.Default(),
		timeout:    defaultTimeout,
		maxEncodes: defaultEncodeParallel,
		newID:      id.Generate,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the per-render state through the stages.
type run struct {
	id      string
	req     Request
	ws      *storage.Workspace
	tracker *Tracker
	logger  *slog.Logger

	audioPath  string
	imagePaths []string
	segments   []string
	videoPath  string
	finalPath  string
}

// Render executes one render synchronously.
//
// A validation failure wraps ErrInvalidRequest and creates no files. Any
// later failure is a *StageError; if the time budget ran out it also wraps
// ErrTimeout. The render's scratch files are removed before Render returns,
// whatever the outcome. Cancelling ctx kills running ffmpeg processes.
func (p *Pipeline) Render(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	r := &run{id: p.newID()}
	r.logger = p.logger.With(slog.String("render_id", r.id))
	r.tracker = NewTracker(r.logger)

	norm, err := validate(p.validator, req)
	if err != nil {
		_ = r.tracker.TransitionTo(StateFailed)
		r.logger.Warn("render request rejected", slog.String("error", err.Error()))
		return nil, err
	}
	r.req = norm

	r.logger.Info("render started",
		slog.Int("width", norm.Width),
		slog.Int("height", norm.Height),
		slog.Int("fps", norm.FPS),
		slog.Int("scenes", len(norm.Scenes)),
		slog.Int("skipped_scenes", len(req.Scenes)-len(norm.Scenes)),
	)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.timeout, ErrTimeout)
		defer cancel()
	}

	if err := r.tracker.TransitionTo(StateFetching); err != nil {
		return nil, err
	}

	r.ws, err = p.scratch.NewWorkspace(r.id)
	if err != nil {
		return nil, p.fail(ctx, r, StageFetch, fmt.Errorf("create workspace: %w", err))
	}
	defer func() {
		// The request context may already be done; cleanup must still run.
		if cerr := r.ws.Cleanup(context.WithoutCancel(ctx)); cerr != nil {
			r.logger.Warn("workspace cleanup incomplete", slog.String("error", cerr.Error()))
		}
	}()

	steps := []struct {
		stage Stage
		next  State
		fn    func(context.Context, *run) error
	}{
		{StageFetch, StateEncoding, p.fetchInputs},
		{StageEncode, StateConcatenating, p.encodeSegments},
		{StageConcat, StateMuxing, p.concatSegments},
		{StageMux, StatePublishing, p.muxAudio},
	}
	for _, step := range steps {
		stepStart := time.Now()
		if err := step.fn(ctx, r); err != nil {
			return nil, p.fail(ctx, r, step.stage, err)
		}
		r.logger.Info("render stage completed",
			slog.String("stage", string(step.stage)),
			slog.Duration("elapsed", time.Since(stepStart)),
		)
		if err := r.tracker.TransitionTo(step.next); err != nil {
			return nil, err
		}
	}

	duration := p.probeDuration(ctx, r)

	url, err := p.publisher.Publish(ctx, r.finalPath, videoContentType)
	if err != nil {
		return nil, p.fail(ctx, r, StageUpload, err)
	}
	if err := r.tracker.TransitionTo(StateDone); err != nil {
		return nil, err
	}

	r.logger.Info("render completed",
		slog.String("video_url", url),
		slog.Float64("duration_seconds", duration),
		slog.Duration("elapsed", time.Since(started)),
	)

	return &Result{
		RenderID: r.id,
		VideoURL: url,
		Meta: Meta{
			Width:           norm.Width,
			Height:          norm.Height,
			FPS:             norm.FPS,
			SceneCount:      len(norm.Scenes),
			DurationSeconds: duration,
		},
	}, nil
}

// fail moves the render to StateFailed and tags err with its stage.
func (p *Pipeline) fail(ctx context.Context, r *run, stage Stage, err error) error {
	_ = r.tracker.TransitionTo(StateFailed)

	if errors.Is(context.Cause(ctx), ErrTimeout) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, p.timeout, err)
	}

	r.logger.Error("render failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
	return &StageError{Stage: stage, Err: err}
}

// fetchInputs downloads the audio first, then every scene image in order.
// The first failure aborts the render.
func (p *Pipeline) fetchInputs(ctx context.Context, r *run) error {
	r.audioPath = r.ws.Path("audio" + fetch.SuffixFor(r.req.AudioURL, ".mp3"))
	if err := p.fetcher.Fetch(ctx, r.req.AudioURL, r.audioPath); err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}

	r.imagePaths = make([]string, len(r.req.Scenes))
	for i, scene := range r.req.Scenes {
		dst := r.ws.Path(fmt.Sprintf("img_%03d%s", i, fetch.SuffixFor(scene.ImageURL, ".jpg")))
		if err := p.fetcher.Fetch(ctx, scene.ImageURL, dst); err != nil {
			return fmt.Errorf("fetch image %d: %w", i, err)
		}
		r.imagePaths[i] = dst
	}
	return nil
}

// encodeSegments encodes one segment per scene on a bounded pool. Segment
// paths are assigned by index so the order matches the scenes. The first
// failure cancels the remaining encodes.
func (p *Pipeline) encodeSegments(ctx context.Context, r *run) error {
	r.segments = make([]string, len(r.req.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxEncodes)

	for i, scene := range r.req.Scenes {
		if gctx.Err() != nil {
			break
		}
		spec := media.SegmentSpec{
			ImagePath:  r.imagePaths[i],
			OutputPath: r.ws.Path(fmt.Sprintf("seg_%03d.mp4", i)),
			Duration:   scene.DurationSeconds,
			FPS:        r.req.FPS,
			Width:      r.req.Width,
			Height:     r.req.Height,
		}
		r.segments[i] = spec.OutputPath

		i := i
		g.Go(func() error {
			// A sibling may have failed while this one waited for a slot.
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.processor.EncodeSegment(gctx, spec); err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Only reachable when the parent context ended between launches.
	return ctx.Err()
}

func (p *Pipeline) concatSegments(ctx context.Context, r *run) error {
	r.videoPath = r.ws.Path("video.mp4")
	return p.processor.Concat(ctx, r.segments, r.videoPath)
}

func (p *Pipeline) muxAudio(ctx context.Context, r *run) error {
	r.finalPath = r.ws.Path(r.id + ".mp4")
	return p.processor.Mux(ctx, r.videoPath, r.audioPath, r.finalPath)
}

// probeDuration reports the final duration. Failures are logged only.
func (p *Pipeline) probeDuration(ctx context.Context, r *run) float64 {
	probe, err := p.processor.Probe(ctx, r.finalPath)
	if err != nil {
		r.logger.Warn("probe of final video failed", slog.String("error", err.Error()))
		return 0
	}
	return probe.DurationSeconds()
}
