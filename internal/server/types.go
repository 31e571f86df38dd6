// Package server provides the HTTP surface of the render service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// Defaults applied to omitted request fields.
const (
	DefaultWidth        = 1280
	DefaultHeight       = 720
	DefaultFPS          = 24
	DefaultSceneSeconds = 5.0
)

// RenderRequest is the HTTP request body for POST /render.
// Pointer fields distinguish "omitted" (default applies) from an explicit value.
type RenderRequest struct {
	// Size is the output frame size.
	Size *SizeRequest `json:"size"`
	// FPS is the output frame rate.
	FPS *int `json:"fps" validate:"omitempty,lte=120"`
	// AudioURL is the narration track.
	AudioURL string `json:"audio_url" validate:"required,max=4096"`
	// Scenes are the timed images, shown in order.
	Scenes []SceneRequest `json:"scenes" validate:"max=500,dive"`
}

// SizeRequest is the requested frame size.
type SizeRequest struct {
	W *int `json:"w" validate:"omitempty,lte=7680"`
	H *int `json:"h" validate:"omitempty,lte=7680"`
}

// SceneRequest is one timed image.
type SceneRequest struct {
	ImageURL string   `json:"image_url" validate:"max=4096"`
	Seconds  *float64 `json:"seconds" validate:"omitempty,lte=3600"`
}

// RenderResponse is the HTTP response for a successful render.
type RenderResponse struct {
	Status   string       `json:"status"`
	VideoURL string       `json:"video_url"`
	Meta     MetaResponse `json:"meta"`
	RenderID string       `json:"render_id"`
}

// MetaResponse describes the rendered video.
type MetaResponse struct {
	W      int `json:"w"`
	H      int `json:"h"`
	FPS    int `json:"fps"`
	Scenes int `json:"scenes"`
	// Duration is the probed duration in seconds, omitted when unknown.
	Duration float64 `json:"duration,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Status string `json:"status"`
	// Stage is the pipeline step that failed, absent for request errors.
	Stage string `json:"stage,omitempty"`
	// Error is the human-readable error message.
	Error string `json:"error,omitempty"`
	// Stderr is the encoder diagnostic output for encode, concat and mux failures.
	Stderr string `json:"stderr,omitempty"`
}

// ServiceInfoResponse is the HTTP response for GET /.
type ServiceInfoResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}
