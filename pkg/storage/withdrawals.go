package storage

import (
	"context"
	"time"

	"github.com/chris/escrow-settlement/pkg/models"
)

// WithdrawalStore defines the payout ledger operations. Each method is one atomic transaction.
type WithdrawalStore interface {
	// GetWithdrawal retrieves a withdrawal by its ID.
	GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error)

	// ListWithdrawalsByUser retrieves all withdrawals for a user.
	ListWithdrawalsByUser(ctx context.Context, userID string) ([]models.Withdrawal, error)

	// GetStuckWithdrawals retrieves withdrawals still pending_gateway after maxAge.
	GetStuckWithdrawals(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error)

	// CreateWithdrawal debits the user's balance by w.Amount, stores w as pending_gateway
	// and moves every earning in w.EarningIds from available to withdrawal_pending.
	// It returns ErrInsufficientFunds when the balance is too low and
	// ErrConcurrentUpdate when one of the earnings is no longer available.
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error

	// MarkWithdrawalProcessing records the gateway transfer reference on a pending withdrawal.
	MarkWithdrawalProcessing(ctx context.Context, withdrawalID, transferRef string) error

	// CompleteWithdrawal moves a non-terminal withdrawal to released and its earnings to withdrawn.
	// It returns ErrStatusConflict if the withdrawal is already terminal.
	CompleteWithdrawal(ctx context.Context, withdrawalID, transferRef string) error

	// FailWithdrawal is the compensating transaction: it moves a non-terminal withdrawal
	// to failed, restores the debited balance and returns its earnings to available.
	// It returns ErrStatusConflict if the withdrawal is already terminal.
	FailWithdrawal(ctx context.Context, withdrawalID, reason string) error
}
