package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/graphlens/pkg/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors onto HTTP statuses and stable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, "unsupported_file_type"
	case errors.Is(err, domain.ErrMalformedJSON):
		return http.StatusBadRequest, "malformed_json"
	case errors.Is(err, domain.ErrNotAPNG):
		return http.StatusUnprocessableEntity, "not_a_png"
	case errors.Is(err, domain.ErrNoWorkflowFound):
		return http.StatusUnprocessableEntity, "no_workflow_found"
	case errors.Is(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound, "history_not_found"
	case errors.Is(err, domain.ErrNoGraphLoaded):
		return http.StatusNotFound, "no_graph_loaded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal"
}
