package storage

import (
	"context"

	"github.com/chris/escrow-settlement/pkg/models"
)

// Settlement describes one atomic settlement of an escrowed or disputed payment.
// Every write it implies succeeds together or not at all.
type Settlement struct {
	PaymentID string
	// FromStatus is the status the payment must currently hold.
	FromStatus models.PaymentStatus
	// ToStatus is released or refunded.
	ToStatus models.PaymentStatus

	// DisputeID, when set, must equal the payment's active dispute. The dispute is
	// resolved with Outcome and the payment's active dispute is cleared.
	DisputeID      string
	Outcome        models.DisputeOutcome
	ResolutionNote string

	// PlatformFee is written once on release and added to the platform counter.
	PlatformFee *int64

	// Earning is created (unique per payment) and its amount credited to Earning.UserId.
	Earning *models.Earning

	// ItemID is updated to ItemStatus/ItemQuantity, guarded by ExpectedItemQuantity.
	ItemID               string
	ExpectedItemQuantity int
	ItemQuantity         int
	ItemStatus           models.ItemStatus
}

// SettlementStore defines the highly-privileged interface for settling a payment.
// It should only be exposed to the settlement and dispute resolution paths.
type SettlementStore interface {
	// Settle applies a settlement atomically. It returns ErrStatusConflict when the
	// payment (or dispute) is no longer in the expected state and ErrConcurrentUpdate
	// when only the item changed underneath.
	Settle(ctx context.Context, s Settlement) error
}
