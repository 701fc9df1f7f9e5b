package storage

import (
	"context"

	"github.com/chris/escrow-settlement/pkg/models"
)

// AccountStore defines the interface for balances, earnings and payout details.
type AccountStore interface {
	// GetAccount retrieves a user's account. A user without one has a zero balance
	// and ErrNotFound is returned.
	GetAccount(ctx context.Context, userID string) (*models.Account, error)

	// ListAccounts retrieves every user account (the platform row excluded).
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// SetPayoutDestination stores a payout destination, creating the account if needed.
	SetPayoutDestination(ctx context.Context, userID string, dest models.PayoutDestination) error

	// SaveRecipient caches the gateway recipient verified for the destination fingerprint.
	SaveRecipient(ctx context.Context, userID, recipientRef, fingerprint string) error

	// ListEarningsByUser retrieves all earnings for a user, oldest first.
	ListEarningsByUser(ctx context.Context, userID string) ([]models.Earning, error)

	// GetPlatformStats retrieves the platform-wide counters.
	GetPlatformStats(ctx context.Context) (*models.PlatformStats, error)
}
