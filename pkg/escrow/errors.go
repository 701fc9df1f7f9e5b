package escrow

import (
	"errors"
	"fmt"

	"github.com/chris/escrow-settlement/pkg/storage"
)

var (
	// ErrUnauthorized is returned when there is no authenticated caller.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller is not a party to the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced payment, item, dispute or withdrawal is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when the operation is not valid for the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
	// ErrGateway is returned when a gateway call failed or answered unexpectedly.
	// It is retryable from the caller's point of view.
	ErrGateway = errors.New("gateway error")
	// ErrSignature is returned when a webhook fails authentication.
	ErrSignature = errors.New("signature verification failed")
)

// notFound translates a storage miss into ErrNotFound and wraps anything else.
func notFound(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("failed to load %s: %w", msg, err)
}
