package render

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/fetch"
)

// Request describes one slideshow render.
type Request struct {
	// Width and Height are the exact output frame size. libx264 with yuv420p
	// needs both to be even.
	Width  int `validate:"gt=0,even"`
	Height int `validate:"gt=0,even"`
	// FPS is the output frame rate.
	FPS int `validate:"gt=0"`
	// AudioURL is the narration track.
	AudioURL string `validate:"required"`
	// Scenes are shown in order.
	Scenes []Scene `validate:"min=1"`
}

// Scene is one timed image.
type Scene struct {
	ImageURL        string
	DurationSeconds float64
}

// usable reports whether the scene can be rendered. Unusable scenes are
// skipped, not rejected.
func (s Scene) usable() bool {
	return s.ImageURL != "" && s.DurationSeconds > 0
}

// Result is a finished render.
type Result struct {
	RenderID string
	VideoURL string
	Meta     Meta
}

// Meta describes the published video.
type Meta struct {
	Width      int
	Height     int
	FPS        int
	SceneCount int
	// DurationSeconds is the probed duration of the final file, 0 when unknown.
	DurationSeconds float64
}

// newValidator returns a validator with the render-specific rules registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("even", validateEven)
	return v
}

func validateEven(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int()%2 == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fl.Field().Uint()%2 == 0
	default:
		return false
	}
}

// normalize cleans every URL and drops unusable scenes. The caller's
// request is not modified.
func normalize(req Request) Request {
	out := req
	out.AudioURL = fetch.NormalizeURL(req.AudioURL)
	out.Scenes = make([]Scene, 0, len(req.Scenes))
	for _, s := range req.Scenes {
		s.ImageURL = fetch.NormalizeURL(s.ImageURL)
		if s.usable() {
			out.Scenes = append(out.Scenes, s)
		}
	}
	return out
}

// validate normalizes and checks req. Every failure wraps ErrInvalidRequest.
func validate(v *validator.Validate, req Request) (Request, error) {
	norm := normalize(req)
	if err := v.Struct(norm); err != nil {
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}
	return norm, nil
}

// describeValidation turns validator errors into a message for API callers.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Scenes":
			msgs = append(msgs, "no usable scenes: each scene needs an image_url and a positive duration")
		case "AudioURL":
			msgs = append(msgs, "audio_url is required")
		default:
			switch fe.Tag() {
			case "even":
				msgs = append(msgs, fmt.Sprintf("%s must be even, got %v", strings.ToLower(fe.Field()), fe.Value()))
			default:
				msgs = append(msgs, fmt.Sprintf("%s must be positive, got %v", strings.ToLower(fe.Field()), fe.Value()))
			}
		}
	}
	return strings.Join(msgs, "; ")
}
