package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// AccountSummary is everything a user sees about their money.
type AccountSummary struct {
	Account     models.Account      `json:"account"`
	Earnings    []models.Earning    `json:"earnings"`
	Withdrawals []models.Withdrawal `json:"withdrawals"`
}

// GetPayment returns a payment to its buyer, its seller or an administrator.
func (e *Engine) GetPayment(ctx context.Context, actor models.Identity, paymentID string) (*models.Payment, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	payment, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment %s", paymentID)
	}
	if !payment.IsParty(actor.UserId) && !e.isAdmin(actor) {
		return nil, ErrForbidden
	}
	return payment, nil
}

// GetAccountSummary returns the caller's balance, earnings and withdrawals.
// A user who has never been credited gets an empty account.
func (e *Engine) GetAccountSummary(ctx context.Context, actor models.Identity) (*AccountSummary, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	account, err := e.store.GetAccount(ctx, actor.UserId)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		account = &models.Account{UserId: actor.UserId}
	case err != nil:
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	earnings, err := e.store.ListEarningsByUser(ctx, actor.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	withdrawals, err := e.store.ListWithdrawalsByUser(ctx, actor.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return &AccountSummary{Account: *account, Earnings: earnings, Withdrawals: withdrawals}, nil
}

// PlatformStats returns the platform-wide fee counters to administrators.
func (e *Engine) PlatformStats(ctx context.Context, actor models.Identity) (*models.PlatformStats, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	if !e.isAdmin(actor) {
		return nil, ErrForbidden
	}
	stats, err := e.store.GetPlatformStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform stats: %w", err)
	}
	return stats, nil
}
