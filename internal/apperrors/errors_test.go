package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("voucher not found"), http.StatusNotFound},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"unauthorized", Unauthorized("login"), http.StatusUnauthorized},
		{"invalid state", InvalidState("already paid"), http.StatusBadRequest},
		{"invalid input", InvalidInput("amount must be positive"), http.StatusBadRequest},
		{"conflict", Conflict("retry"), http.StatusConflict},
		{"internal", Internal(errors.New("boom"), "failed"), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := errors.Wrap(InvalidState("voucher is cancelled"), "record payment")

	assert.True(t, Is(err, KindInvalidState))
	assert.Equal(t, "voucher is cancelled", Message(err))
}

func TestMessageHidesInternalDetail(t *testing.T) {
	err := errors.New("mongo: connection refused")
	assert.Equal(t, "Something went wrong. Please try again later.", Message(err))

	wrapped := Internal(err, "failed to load voucher")
	assert.Equal(t, "failed to load voucher", Message(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")
}
