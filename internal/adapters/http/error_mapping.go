package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCaseNotFound),
		domain.IsKind(err, domain.ErrLogNotFound),
		domain.IsKind(err, domain.ErrTableNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrQueryRejected),
		domain.IsKind(err, domain.ErrUnsupportedArtifact),
		domain.IsKind(err, domain.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
