package handler

import (
	"errors"
	"net/http"
	"strings"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/usecase"
	"go-clinic-scheduling/pkg/response"
)

// writeUsecaseError maps a usecase error to its HTTP status. The wrapped detail is
// returned to the caller for domain errors; anything else becomes a 500 with fallback.
func writeUsecaseError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrActorNotFound):
		response.Unauthorized(w, "")
	case errors.Is(err, entity.ErrValidation):
		response.BadRequest(w, detail(err))
	case errors.Is(err, entity.ErrForbidden):
		response.Forbidden(w, detail(err))
	case errors.Is(err, entity.ErrNotFound):
		response.NotFound(w, detail(err))
	case errors.Is(err, entity.ErrConflict), errors.Is(err, entity.ErrInvalidTransition):
		response.Conflict(w, detail(err))
	case errors.Is(err, entity.ErrSlotUnavailable):
		response.UnprocessableEntity(w, detail(err))
	default:
		response.InternalServerError(w, fallback)
	}
}

// detail capitalizes the wrapped error text for the response message
func detail(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
