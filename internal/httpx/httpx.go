// Package httpx holds the JSON request and response helpers shared by the
// HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"atlasgym/internal/errs"

	"github.com/go-playground/validator/v10"
)

// ChallengeHeader carries the answer to the secondary admin challenge.
const ChallengeHeader = "X-Admin-Challenge"

var validate = validator.New()

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Error writes err with the status errs.HTTPStatus assigns it.
func Error(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		JSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	body := map[string]any{"error": err.Error()}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
		if ve.Index >= 0 {
			body["index"] = ve.Index
		}
	}
	JSON(w, status, body)
}

// Validate runs the struct tags of v and returns the first failure as a
// ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return errs.Invalid("body", "is invalid")
	}
	f := ve[0]
	return errs.Invalid(jsonName(f.Field()), describe(f))
}

// Bind decodes the JSON body into v and validates it.
func Bind(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Invalid("body", "is not valid JSON")
	}
	return Validate(v)
}

// Challenge returns the challenge answer, or nil when the header is absent.
func Challenge(r *http.Request) *string {
	v, ok := r.Header[http.CanonicalHeaderKey(ChallengeHeader)]
	if !ok || len(v) == 0 {
		return nil
	}
	answer := v[0]
	return &answer
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + f.Param()
	case "gte", "min":
		return "must be at least " + f.Param()
	case "oneof":
		return "must be one of " + f.Param()
	default:
		return "failed " + f.Tag()
	}
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
