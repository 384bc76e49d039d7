package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"renthaus/internal/domain"
	"renthaus/internal/logging"

	"github.com/rs/zerolog"
)

const internalErrorMessage = "internal server error"

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var unavailable *domain.UnavailableError
	var conflict *domain.ConflictError
	var gateway *domain.GatewayError

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &unavailable),
		errors.As(err, &conflict),
		errors.As(err, &gateway),
		errors.Is(err, domain.ErrVerificationFailed),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAlreadyPaid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes {"error": msg}. Internal errors are logged and
// replaced by a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, fallback *zerolog.Logger, err error) {
	code := statusFor(err)
	logger := logging.FromContext(r.Context(), fallback)

	message := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		message = internalErrorMessage
	} else {
		logger.Debug().Err(err).Int("status", code).Msg("Request rejected")
	}
	writeError(w, code, message)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Invalid("invalid JSON body")
	}
	return nil
}
