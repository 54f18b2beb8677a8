package handlers

import (
	"errors"
	"net/http"

	"videojobs/internal/domain"
	"videojobs/internal/middleware"
)

// statusFor maps service errors onto HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidSettings):
		return http.StatusBadRequest, "invalid_settings"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden, string(domain.KindQuotaExceeded)
	case errors.Is(err, domain.ErrStorageExceeded):
		return http.StatusForbidden, string(domain.KindStorageExceeded)
	case errors.Is(err, domain.ErrDurationExceeded):
		return http.StatusForbidden, string(domain.KindDurationExceeded)
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, string(domain.KindInvalidTransition)
	case errors.Is(err, domain.ErrDuplicateOperation):
		return http.StatusConflict, "duplicate_operation"
	}
	return http.StatusInternalServerError, "internal"
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Logger.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		msg = "internal error"
	}
	a.error(w, code, kind, msg)
}
