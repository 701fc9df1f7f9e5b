package storage

import (
	"context"

	"github.com/chris/escrow-settlement/pkg/models"
)

// PaymentReader defines the interface for reading payment data.
type PaymentReader interface {
	// GetPayment retrieves a payment by its ID.
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)

	// GetPaymentByReference retrieves a payment by the reference shared with its gateway.
	GetPaymentByReference(ctx context.Context, gatewayName, reference string) (*models.Payment, error)
}

// PaymentManager defines the single-record payment writes used by initiation and webhooks.
type PaymentManager interface {
	// CreatePayment stores a new payment. It fails with ErrAlreadyExists on a duplicate ID.
	CreatePayment(ctx context.Context, payment *models.Payment) error

	// AttachCheckout records the gateway's checkout id and URL without touching the status.
	AttachCheckout(ctx context.Context, paymentID, checkoutID, checkoutURL string) error

	// EscrowPayment moves an initiated payment into escrow and marks its item paid_escrow.
	// It returns ErrStatusConflict if the payment is no longer initiated.
	EscrowPayment(ctx context.Context, paymentID, gatewayStatus string) error

	// FailPayment moves a payment from one of the given states to failed. If the payment
	// was in escrow its item is returned to available, or to sold when it has no stock
	// left. It returns ErrStatusConflict if the payment is not in one of the given states
	// and ErrConcurrentUpdate if the item changed while being returned.
	FailPayment(ctx context.Context, paymentID string, from []models.PaymentStatus, gatewayStatus, reason string) error
}

// PaymentStore combines the reader and manager interfaces.
type PaymentStore interface {
	PaymentReader
	PaymentManager
}
