// Package gateway defines the contracts for external payment gateways and the
// canonical event every gateway webhook is translated into.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/escrow-settlement/pkg/models"
)

var (
	// ErrMissingSignature is returned when a webhook carries no signature header.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload is returned when an authenticated webhook body cannot be parsed.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrUnsupportedEvent is returned for authenticated events the engine does not act on.
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	// ErrUnsupported is returned when a gateway does not offer an operation.
	ErrUnsupported = errors.New("operation not supported by gateway")
)

// APIError is a non-success answer from a gateway API.
type APIError struct {
	Gateway    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Gateway, e.StatusCode, e.Message)
}

// Rejected reports whether the gateway definitively refused the request,
// as opposed to failing in a way that leaves the outcome unknown.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Outcome is the canonical classification of a gateway status.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeOther   Outcome = "other"
)

// EventKind says which state machine an event drives.
type EventKind string

const (
	EventPayment EventKind = "payment"
	EventPayout  EventKind = "payout"
)

// Event is the gateway-independent form of a webhook.
type Event struct {
	Kind EventKind
	// Reference is the caller-generated reference: a payment's gateway reference
	// or a withdrawal id.
	Reference     string
	Outcome       Outcome
	GatewayStatus string
	FailureReason string
	// TransferRef is the gateway's own id for a payout, when present.
	TransferRef string
}

// CheckoutRequest asks a gateway to open a hosted checkout.
type CheckoutRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

// Checkout is the gateway's answer to a CheckoutRequest.
type Checkout struct {
	CheckoutID string
	URL        string
}

// RecipientRequest describes a payout destination to register.
type RecipientRequest struct {
	Method        models.PayoutMethod
	AccountNumber string
	ProviderCode  string
	AccountName   string
	Currency      string
}

// TransferRequest asks a gateway to pay out to a registered recipient.
// Reference is the idempotency key; retrying with the same one never pays twice.
type TransferRequest struct {
	RecipientRef string
	Amount       int64
	Currency     string
	Reference    string
	Reason       string
}

// Transfer is the synchronous answer to a TransferRequest.
type Transfer struct {
	TransferRef string
	Status      string
	Outcome     Outcome
}

// CheckoutGateway creates hosted checkouts.
type CheckoutGateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// PayoutGateway registers recipients and sends transfers.
type PayoutGateway interface {
	Name() string
	CreateRecipient(ctx context.Context, req RecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// WebhookTranslator authenticates a gateway's webhooks and translates them into Events.
type WebhookTranslator interface {
	Name() string
	SignatureHeader() string
	Verify(body []byte, signature string) error
	ParsePaymentEvent(body []byte) (*Event, error)
	ParsePayoutEvent(body []byte) (*Event, error)
}
