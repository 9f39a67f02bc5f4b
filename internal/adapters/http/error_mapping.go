package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrPoolNotFound), domain.IsKind(err, domain.ErrMessageNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCacheConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrAllSourcesUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "http_internal_error",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", message,
		)
		message = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}
