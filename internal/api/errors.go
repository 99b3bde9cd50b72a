package api

import (
	"fmt"
	"net/http"
	"strings"
)

// ApiError is the JSON error body. Messages are returned in English and German.
type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	MessageDe  string `json:"message_de"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

var germanStatusText = map[int]string{
	http.StatusBadRequest:          "ungültige Anfrage",
	http.StatusUnauthorized:        "nicht autorisiert",
	http.StatusForbidden:           "zugriff verweigert",
	http.StatusNotFound:            "nicht gefunden",
	http.StatusInternalServerError: "interner serverfehler",
}

func newApiError(code int, err error) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    strings.ToLower(http.StatusText(code)),
		MessageDe:  germanStatusText[code],
		Err:        err,
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, nil)
}

// NewValidationError is a bad request naming the offending field.
func NewValidationError(field string) *ApiError {
	e := newApiError(http.StatusBadRequest, nil)
	e.Message = fmt.Sprintf("%s: invalid or missing %s", e.Message, field)
	e.MessageDe = fmt.Sprintf("%s: %s fehlt oder ist ungültig", e.MessageDe, field)
	return e
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, nil)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, nil)
}
