package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/validation"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

// parseJSONBody decodes the request body with the app's JSON decoder. An
// empty body leaves out untouched. The Content-Type header is not required.
// A value of the wrong JSON type is reported against its field.
func parseJSONBody(c *fiber.Ctx, out interface{}) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	if err := c.App().Config().JSONDecoder(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if field := payloadFieldName(out, typeErr.Field); field != "" {
				return validation.NewFieldsError(apperrors.FieldError{
					Field:   field,
					Message: field + " has an invalid type",
				})
			}
		}
		return apperrors.NewValidationError("Invalid JSON payload", apperrors.FieldError{
			Field:   "body",
			Message: "body must be a valid JSON object",
		})
	}
	return nil
}

// payloadFieldName resolves the decoder's field reference, a Go field name or
// a JSON key possibly prefixed by its parent path, to the JSON key on out.
func payloadFieldName(out interface{}, ref string) string {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		ref = ref[i+1:]
	}
	if ref == "" {
		return ""
	}
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ""
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "-" {
			continue
		}
		if tag == ref || strings.EqualFold(f.Name, ref) {
			if tag == "" {
				return f.Name
			}
			return tag
		}
	}
	return ""
}
