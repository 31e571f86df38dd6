package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrFFprobeExecution is returned when ffprobe fails or its output cannot be parsed.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// ProbeResult is the subset of ffprobe's JSON output the pipeline reads.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the container.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

// ProbeFormat holds container-level metadata.
type ProbeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// VideoSize returns the frame size of the first video stream.
func (r ProbeResult) VideoSize() (width, height int, ok bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s.Width, s.Height, true
		}
	}
	return 0, 0, false
}

// HasAudio reports whether the container carries an audio stream.
func (r ProbeResult) HasAudio() bool {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			return true
		}
	}
	return false
}

// Probe runs ffprobe against path and decodes its JSON report.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ProbeResult{}, fmt.Errorf("%w: %w: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return ProbeResult{}, fmt.Errorf("%w: parse output: %w", ErrFFprobeExecution, err)
	}
	return result, nil
}
