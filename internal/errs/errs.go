// Package errs holds the error taxonomy shared by every gym service.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAccessDenied    = errors.New("access denied")
	ErrChallengeFailed = errors.New("authorization challenge failed")
	ErrNotFound        = errors.New("not found")
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrConflict        = errors.New("conflict: key already exists")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrUnauthenticated = errors.New("authentication failed")
)

// ValidationError reports a missing or malformed field. Index is the
// position of the offending participant or line, or -1 when the request has
// a single subject.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("validation failed: participant %d: %s %s", e.Index+1, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a single-subject request.
func Invalid(field, reason string) error {
	return &ValidationError{Index: -1, Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// HTTPStatus maps err onto the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrChallengeFailed):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnknownPlan):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
