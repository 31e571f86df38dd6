package render

import (
	"errors"
	"fmt"

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/media"
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageEncode Stage = "encode"
	StageConcat Stage = "concat"
	StageMux    Stage = "mux"
	StageUpload Stage = "upload"
)

var (
	// ErrInvalidRequest is returned when a request fails validation. Nothing was fetched or written.
	ErrInvalidRequest = errors.New("invalid render request")
	// ErrTimeout is returned when the render exceeds its time budget.
	ErrTimeout = errors.New("render timed out")
)

// StageError is returned for any failure after validation.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stderr returns the captured ffmpeg diagnostics, if the failure came from ffmpeg.
func (e *StageError) Stderr() string {
	var ffErr *media.FFmpegError
	if errors.As(e.Err, &ffErr) {
		return ffErr.Stderr
	}
	return ""
}

// HasEncoderOutput reports whether the stage runs ffmpeg, whose stderr is
// the useful diagnostic for the caller.
func (s Stage) HasEncoderOutput() bool {
	return s == StageEncode || s == StageConcat || s == StageMux
}
