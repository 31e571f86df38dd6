package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("invalid fps: must be positive")
	// ErrInvalidScaleMode is returned for an unknown scale mode.
	ErrInvalidScaleMode = errors.New("invalid scale mode")
	// ErrNoSegments is returned when no segments are provided for concatenation.
	ErrNoSegments = errors.New("no segments provided")
	// ErrOutputMissing is returned when ffmpeg exits cleanly but the declared output does not exist.
	ErrOutputMissing = errors.New("ffmpeg reported success but output is missing")
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath  string
	scale        ScaleMode
	preset       string
	audioBitrate string
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithFFprobePath sets the ffprobe binary.
func WithFFprobePath(path string) Option {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithScaleMode selects fit (pad) or fill (crop) normalization for every segment.
func WithScaleMode(mode ScaleMode) Option {
	return func(p *FFmpegProcessor) {
		if mode != "" {
			p.scale = mode
		}
	}
}

// WithPreset sets the libx264 preset used for segments.
func WithPreset(preset string) Option {
	return func(p *FFmpegProcessor) {
		if preset != "" {
			p.preset = preset
		}
	}
}

// WithAudioBitrate sets the AAC bitrate used when muxing, e.g. "192k".
func WithAudioBitrate(bitrate string) Option {
	return func(p *FFmpegProcessor) {
		if bitrate != "" {
			p.audioBitrate = bitrate
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  "ffprobe",
		scale:        ScaleFit,
		preset:       "medium",
		audioBitrate: "192k",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)

// EncodeSegment loops a still image for spec.Duration seconds at spec.FPS.
// Every segment of a render uses the same codec profile so Concat can stream copy.
func (p *FFmpegProcessor) EncodeSegment(ctx context.Context, spec SegmentSpec) error {
	if spec.Width <= 0 || spec.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, spec.Width, spec.Height)
	}
	if spec.Duration <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidDuration, spec.Duration)
	}
	if spec.FPS <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFPS, spec.FPS)
	}

	if err := p.runFFmpeg(ctx, "encode", p.segmentArgs(spec)); err != nil {
		return err
	}
	return checkOutput(spec.OutputPath)
}

// segmentArgs builds the ffmpeg argument vector for one segment.
func (p *FFmpegProcessor) segmentArgs(spec SegmentSpec) []string {
	fps := strconv.Itoa(spec.FPS)
	return []string{
		"-y",         // Overwrite output file without asking
		"-loop", "1", // Repeat the single input frame
		"-framerate", fps,
		"-t", formatSeconds(spec.Duration),
		"-i", spec.ImagePath,
		"-vf", scaleFilter(p.scale, spec.Width, spec.Height),
		"-r", fps,
		"-c:v", "libx264",
		"-preset", p.preset,
		"-pix_fmt", "yuv420p", // 4:2:0 for broad player compatibility
		"-movflags", "+faststart", // moov atom first so playback can start early
		"-an",
		spec.OutputPath,
	}
}

// scaleFilter returns the video filter that normalizes any input aspect ratio
// to exactly w x h.
func scaleFilter(mode ScaleMode, w, h int) string {
	if mode == ScaleFill {
		// scale up until both sides cover the frame, then crop the centered overflow
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
	}
	// scale down to fit inside the frame, then pad with centered black bars
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1", w, h, w, h)
}

// Concat joins segments in the given order using the concat demuxer with stream copy.
// The list file is written next to output and removed afterwards.
func (p *FFmpegProcessor) Concat(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}

	listFile, err := p.createConcatList(segments, filepath.Dir(output))
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		"-movflags", "+faststart",
		output,
	}
	if err := p.runFFmpeg(ctx, "concat", args); err != nil {
		return err
	}
	return checkOutput(output)
}

// createConcatList writes the concat demuxer list file into dir.
func (p *FFmpegProcessor) createConcatList(segments []string, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create list file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeConcatList(f, segments); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// writeConcatList writes one "file '<abs path>'" line per segment.
func writeConcatList(w io.Writer, segments []string) error {
	for _, path := range segments {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(w, "file '%s'\n", escapedPath); err != nil {
			return fmt.Errorf("write to concat list: %w", err)
		}
	}
	return nil
}

// Mux copies the video stream, transcodes the audio to AAC and truncates to
// the shorter stream.
func (p *FFmpegProcessor) Mux(ctx context.Context, videoPath, audioPath, output string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", p.audioBitrate,
		"-shortest", // a short voice track truncates the slideshow and vice versa
		"-movflags", "+faststart",
		output,
	}
	if err := p.runFFmpeg(ctx, "mux", args); err != nil {
		return err
	}
	return checkOutput(output)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, op string, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s cancelled: %w", op, ctx.Err())
		}
		return &FFmpegError{
			Op:     op,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// checkOutput verifies that ffmpeg actually produced the declared output.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	return nil
}

// formatSeconds renders a duration for ffmpeg without float noise.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg %s error: %v\nargs: %v\nstderr: %s", e.Op, e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
