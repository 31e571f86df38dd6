package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation turns validator errors on a request DTO into a message
// naming JSON fields, e.g. "audio_url is required".
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the struct name: "RenderRequest.size.w" -> "size.w".
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}

		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max", "lte":
			switch fe.Kind() {
			case reflect.String:
				msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
			case reflect.Slice:
				msgs = append(msgs, fmt.Sprintf("%s must have at most %s items", field, fe.Param()))
			default:
				msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
			}
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q check", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
