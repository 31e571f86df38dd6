package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/render"
)

const (
	// ServiceName is reported by GET /.
	ServiceName = "yt-render-ffmpeg"

	maxBodyBytes = 1 << 20
	// maxStderrBytes keeps the tail of ffmpeg output, where the actual error is.
	maxStderrBytes = 8 << 10
)

// Renderer runs a render synchronously.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	renderer  Renderer
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(renderer Renderer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		renderer:  renderer,
		validator: newValidator(),
		logger:    logger,
	}
}

// Index handles GET / requests.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfoResponse{OK: true, Service: ServiceName})
}

// Health handles liveness probes. It has no side effects.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Render handles POST /render requests. The render runs within the request;
// the response is sent when the video is published or the render failed.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("request_id", RequestIDFromContext(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, describeValidation(err))
		return
	}

	result, err := h.renderer.Render(r.Context(), req.toDomain())
	if err != nil {
		h.writeRenderError(w, r, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RenderResponse{
		Status:   "ok",
		VideoURL: result.VideoURL,
		RenderID: result.RenderID,
		Meta: MetaResponse{
			W:        result.Meta.Width,
			H:        result.Meta.Height,
			FPS:      result.Meta.FPS,
			Scenes:   result.Meta.SceneCount,
			Duration: result.Meta.DurationSeconds,
		},
	})
}

// writeRenderError maps pipeline errors onto status codes and the error body.
func (h *Handlers) writeRenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var stageErr *render.StageError
	hasStage := errors.As(err, &stageErr)

	switch {
	case errors.Is(err, render.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return

	case errors.Is(err, render.ErrTimeout):
		resp := ErrorResponse{Status: "error", Error: err.Error()}
		if hasStage {
			resp.Stage = string(stageErr.Stage)
		}
		writeJSON(w, http.StatusGatewayTimeout, resp)
		return
	}

	if r.Context().Err() != nil {
		logger.Info("client went away before the render finished", slog.String("error", err.Error()))
	}

	if !hasStage {
		logger.Error("render failed without a stage", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ErrorResponse{Status: "error", Stage: string(stageErr.Stage)}
	if stageErr.Stage.HasEncoderOutput() {
		resp.Stderr = tail(stageErr.Stderr(), maxStderrBytes)
		if resp.Stderr == "" {
			// Cancelled or missing-output failures have no ffmpeg output.
			resp.Stderr = stageErr.Err.Error()
		}
	} else {
		resp.Error = stageErr.Err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// toDomain applies the documented defaults.
func (req RenderRequest) toDomain() render.Request {
	out := render.Request{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
		AudioURL: req.AudioURL,
		Scenes:   make([]render.Scene, 0, len(req.Scenes)),
	}
	if req.Size != nil {
		if req.Size.W != nil {
			out.Width = *req.Size.W
		}
		if req.Size.H != nil {
			out.Height = *req.Size.H
		}
	}
	if req.FPS != nil {
		out.FPS = *req.FPS
	}
	for _, s := range req.Scenes {
		seconds := DefaultSceneSeconds
		if s.Seconds != nil {
			seconds = *s.Seconds
		}
		out.Scenes = append(out.Scenes, render.Scene{ImageURL: s.ImageURL, DurationSeconds: seconds})
	}
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Status: "error",
		Error:  message,
	})
}
