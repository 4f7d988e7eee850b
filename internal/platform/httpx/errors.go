// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

// ErrMalformedBody indicates the request body could not be decoded.
var ErrMalformedBody = errors.New("malformed request body")

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "Internal Error", "")
		return
	}
	title := http.StatusText(status)
	if errors.Is(err, shared.ErrInvalidState) {
		title = "Invalid State"
	}
	detail := err.Error()
	if !errors.Is(err, ErrMalformedBody) {
		detail = shared.UserSafeMessage(err)
	}
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Code:   shared.ErrorCode(err),
		Detail: detail,
		Fields: shared.ErrorFields(err),
	})
}
