package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"missiondeck/internal/domain"
	"missiondeck/internal/httputil"
)

// handleError converts domain errors to HTTP responses. Retrieval never
// surfaces pool errors; what reaches here is validation, overload, or a
// genuine bug.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrQueueOverflow):
		httputil.RespondError(w, http.StatusServiceUnavailable, "generation capacity saturated, try again shortly")
	case errors.Is(err, domain.ErrGenerationFailed), errors.Is(err, domain.ErrDuplicateExhausted):
		httputil.RespondError(w, http.StatusServiceUnavailable, "content generation failed, try again shortly")
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	default:
		logger.Error("unexpected handler error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
