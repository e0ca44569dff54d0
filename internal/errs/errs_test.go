package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Invalid("name", "is required"), http.StatusBadRequest},
		{&ValidationError{Index: 2, Field: "phone", Reason: "is required"}, http.StatusBadRequest},
		{fmt.Errorf("delete: %w", ErrAccessDenied), http.StatusForbidden},
		{ErrChallengeFailed, http.StatusForbidden},
		{NotFound("member", "abc"), http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "%v", c.err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Index: 1, Field: "name", Reason: "is required"}
	assert.Equal(t, "validation failed: participant 2: name is required", err.Error())
	assert.Equal(t, "validation failed: amount is required", Invalid("amount", "is required").Error())
	assert.True(t, errors.Is(NotFound("member", "x"), ErrNotFound))
}
