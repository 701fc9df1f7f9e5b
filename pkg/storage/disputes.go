package storage

import (
	"context"

	"github.com/chris/escrow-settlement/pkg/models"
)

// DisputeStore defines the interface for opening and reading disputes.
type DisputeStore interface {
	// OpenDispute atomically creates the dispute record and flips its payment to disputed.
	// The payment must be in one of the allowed states and carry no active dispute,
	// otherwise ErrStatusConflict is returned.
	OpenDispute(ctx context.Context, dispute *models.DisputeRecord, allowedFrom []models.PaymentStatus) error

	// GetDispute retrieves a dispute by its ID.
	GetDispute(ctx context.Context, disputeID string) (*models.DisputeRecord, error)
}
