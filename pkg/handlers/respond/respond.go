// Package respond writes JSON responses and maps engine errors onto HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
)

// RetryAfterSeconds is suggested to callers after a gateway failure.
const RetryAfterSeconds = "30"

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Decode reads a JSON request body into v. Failures wrap escrow.ErrValidation.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", escrow.ErrValidation, err)
	}
	return nil
}

// Status maps an error to its HTTP status.
func Status(err error) int {
	var paramErr *api.InvalidParamFormatError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, escrow.ErrValidation), errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, escrow.ErrUnauthorized), errors.Is(err, escrow.ErrSignature):
		return http.StatusUnauthorized
	case errors.Is(err, escrow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an api.Error. Signature failures and internal errors get a
// generic message so nothing about the check or the internals leaks.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	message := err.Error()
	switch {
	case errors.Is(err, escrow.ErrSignature):
		message = "invalid signature"
	case status == http.StatusBadGateway:
		w.Header().Set("Retry-After", RetryAfterSeconds)
		message = "payment gateway unavailable, please retry"
	case status == http.StatusInternalServerError:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	JSON(w, status, api.Error{Message: message})
}
