package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiError(t *testing.T) {
	tcases := []struct {
		name      string
		err       *ApiError
		code      int
		message   string
		messageDe string
	}{
		{"bad request", NewBadRequestError(), http.StatusBadRequest, "bad request", "ungültige Anfrage"},
		{"unauthorized", NewUnauthorizedError(), http.StatusUnauthorized, "unauthorized", "nicht autorisiert"},
		{"forbidden", NewForbiddenError(), http.StatusForbidden, "forbidden", "zugriff verweigert"},
		{"not found", NewNotFoundError(), http.StatusNotFound, "not found", "nicht gefunden"},
		{"validation", NewValidationError("limit"), http.StatusBadRequest, "bad request: invalid or missing limit", "ungültige Anfrage: limit fehlt oder ist ungültig"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.StatusCode)
			assert.Equal(t, tc.message, tc.err.Message)
			assert.Equal(t, tc.messageDe, tc.err.MessageDe)
		})
	}
}

func TestInternalServerErrorWraps(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalServerError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: db down", err.Error())
}
