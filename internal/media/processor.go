// Package media provides the ffmpeg-backed steps of the render pipeline:
// still-image segment encoding, stream-copy concatenation, audio muxing and probing.
package media

import (
	"context"
	"fmt"
	"strings"
)

// ScaleMode selects how an image is normalized to the target frame.
type ScaleMode string

const (
	// ScaleFit scales the image to fit inside the frame and pads with black bars.
	ScaleFit ScaleMode = "fit"
	// ScaleFill scales the image to cover the frame and center-crops the overflow.
	ScaleFill ScaleMode = "fill"
)

// ParseScaleMode converts a configuration value into a ScaleMode.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch ScaleMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScaleFit, "":
		return ScaleFit, nil
	case ScaleFill:
		return ScaleFill, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScaleMode, s)
	}
}

// SegmentSpec describes one still-image segment to encode.
type SegmentSpec struct {
	// ImagePath is the local still image.
	ImagePath string
	// OutputPath is where the encoded segment is written.
	OutputPath string
	// Duration is the segment length in seconds.
	Duration float64
	// FPS is the output frame rate.
	FPS int
	// Width and Height are the exact output frame size.
	Width  int
	Height int
}

// Processor defines the encoding steps the render pipeline sequences.
// Implementations must be safe for concurrent use; every call is independent.
type Processor interface {
	// EncodeSegment turns a still image into a fixed-length video segment of
	// exactly spec.Width x spec.Height at spec.FPS.
	EncodeSegment(ctx context.Context, spec SegmentSpec) error

	// Concat joins same-profile segments in order without re-encoding.
	Concat(ctx context.Context, segments []string, output string) error

	// Mux combines a video with an audio track, transcoding only the audio
	// and stopping at the shorter of the two streams.
	Mux(ctx context.Context, videoPath, audioPath, output string) error

	// Probe inspects a media file.
	Probe(ctx context.Context, path string) (ProbeResult, error)
}
