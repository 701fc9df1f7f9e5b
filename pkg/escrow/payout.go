package escrow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// SetPayoutDestination validates and stores where the user's withdrawals go.
// A changed destination gets a new gateway recipient on the next withdrawal.
func (e *Engine) SetPayoutDestination(ctx context.Context, actor models.Identity, dest models.PayoutDestination) (*models.Account, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	dest.AccountNumber = strings.TrimSpace(dest.AccountNumber)
	dest.ProviderCode = strings.TrimSpace(dest.ProviderCode)
	dest.AccountName = strings.TrimSpace(dest.AccountName)
	if dest.Currency == "" {
		dest.Currency = e.cfg.Currency
	}
	if err := validateDestination(dest); err != nil {
		return nil, err
	}

	if err := e.store.SetPayoutDestination(ctx, actor.UserId, dest); err != nil {
		return nil, fmt.Errorf("failed to save payout destination: %w", err)
	}
	account, err := e.store.GetAccount(ctx, actor.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}
	return account, nil
}

func validateDestination(dest models.PayoutDestination) error {
	if dest.Method != models.PayoutBank && dest.Method != models.PayoutMobileMoney {
		return fmt.Errorf("%w: method must be %q or %q", ErrValidation, models.PayoutBank, models.PayoutMobileMoney)
	}
	number := strings.TrimPrefix(dest.AccountNumber, "+")
	if len(number) < 6 || len(number) > 20 || strings.IndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return fmt.Errorf("%w: account_number must be 6 to 20 digits", ErrValidation)
	}
	if dest.ProviderCode == "" {
		return fmt.Errorf("%w: provider_code is required", ErrValidation)
	}
	if dest.AccountName == "" {
		return fmt.Errorf("%w: account_name is required", ErrValidation)
	}
	return nil
}

// InitiateWithdrawal pays out the user's available earnings (oldest first, up to one
// transaction's worth). The balance is debited before the gateway is called; any
// gateway error or rejection is compensated by restoring it, and ErrGateway is returned.
func (e *Engine) InitiateWithdrawal(ctx context.Context, actor models.Identity) (*models.Withdrawal, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	if e.gateways.Payout == nil {
		return nil, fmt.Errorf("%w: payouts are not configured", ErrInvalidState)
	}

	account, err := e.store.GetAccount(ctx, actor.UserId)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no payout destination on file", ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.PayoutDestination == nil {
		return nil, fmt.Errorf("%w: no payout destination on file", ErrInvalidState)
	}

	earnings, err := e.store.ListEarningsByUser(ctx, actor.UserId)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	var (
		ids    []string
		amount int64
	)
	for _, earning := range earnings {
		if earning.Status != models.EarningAvailable {
			continue
		}
		ids = append(ids, earning.Id)
		amount += earning.Amount
		if len(ids) == maxEarningsPerWithdrawal {
			break
		}
	}
	if account.AvailableBalance <= 0 || account.AvailableBalance < e.cfg.MinimumWithdrawal {
		return nil, fmt.Errorf("%w: available balance %d is below the minimum withdrawal of %d", ErrInvalidState, account.AvailableBalance, e.cfg.MinimumWithdrawal)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: no available earnings to withdraw", ErrInvalidState)
	}

	recipientRef, err := e.ensureRecipient(ctx, account)
	if err != nil {
		return nil, err
	}

	now := e.now()
	w := &models.Withdrawal{
		Id:                  e.newID(),
		UserId:              actor.UserId,
		Amount:              amount,
		Currency:            account.PayoutDestination.Currency,
		Status:              models.WithdrawalPendingGateway,
		PayoutMethod:        account.PayoutDestination.Method,
		GatewayName:         e.gateways.Payout.Name(),
		GatewayRecipientRef: recipientRef,
		EarningIds:          ids,
		RequestedAt:         now,
		UpdatedAt:           now,
	}
	if err := e.store.CreateWithdrawal(ctx, w); err != nil {
		switch {
		case errors.Is(err, storage.ErrInsufficientFunds):
			return nil, fmt.Errorf("%w: insufficient available balance", ErrInvalidState)
		case errors.Is(err, storage.ErrConcurrentUpdate):
			return nil, fmt.Errorf("%w: balance changed during the request, try again", ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	slog.Info("Withdrawal created", "withdrawal_id", w.Id, "user_id", w.UserId, "amount", w.Amount, "earnings", len(ids))

	return e.dispatch(ctx, w, true)
}

// ensureRecipient returns the gateway recipient for the account's current destination,
// registering a new one only when the destination changed since it was last verified.
func (e *Engine) ensureRecipient(ctx context.Context, account *models.Account) (string, error) {
	dest := account.PayoutDestination
	fingerprint := destinationFingerprint(*dest)
	if account.RecipientRef != "" && account.RecipientFingerprint == fingerprint {
		return account.RecipientRef, nil
	}

	ref, err := e.gateways.Payout.CreateRecipient(ctx, gateway.RecipientRequest{
		Method:        dest.Method,
		AccountNumber: dest.AccountNumber,
		ProviderCode:  dest.ProviderCode,
		AccountName:   dest.AccountName,
		Currency:      dest.Currency,
	})
	if err != nil {
		slog.Warn("Failed to create transfer recipient", "user_id", account.UserId, "error", err)
		return "", fmt.Errorf("%w: could not register payout destination: %v", ErrGateway, err)
	}
	if err := e.store.SaveRecipient(ctx, account.UserId, ref, fingerprint); err != nil {
		// The next withdrawal registers again; the gateway deduplicates recipients.
		slog.Warn("Failed to cache transfer recipient", "user_id", account.UserId, "error", err)
	}
	return ref, nil
}

func destinationFingerprint(dest models.PayoutDestination) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		string(dest.Method), dest.AccountNumber, dest.ProviderCode, dest.AccountName, dest.Currency,
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}

// dispatch sends the transfer for a pending withdrawal, using its id as the
// idempotency reference. With compensateUnknown set, an error whose outcome is
// unknown is compensated too; otherwise only definitive rejections are.
func (e *Engine) dispatch(ctx context.Context, w *models.Withdrawal, compensateUnknown bool) (*models.Withdrawal, error) {
	logger := slog.With("withdrawal_id", w.Id, "user_id", w.UserId, "amount", w.Amount)

	transfer, err := e.gateways.Payout.InitiateTransfer(ctx, gateway.TransferRequest{
		RecipientRef: w.GatewayRecipientRef,
		Amount:       w.Amount,
		Currency:     w.Currency,
		Reference:    w.Id,
		Reason:       "Marketplace earnings withdrawal",
	})
	if err != nil {
		var apiErr *gateway.APIError
		rejected := errors.As(err, &apiErr) && apiErr.Rejected()
		if !rejected && !compensateUnknown {
			logger.Warn("Transfer dispatch failed, leaving withdrawal pending", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		e.compensate(ctx, w, "transfer failed: "+err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	switch transfer.Outcome {
	case gateway.OutcomeSuccess:
		if err := e.store.CompleteWithdrawal(ctx, w.Id, transfer.TransferRef); err != nil && !errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("failed to complete withdrawal %s: %w", w.Id, err)
		}
		logger.Info("Withdrawal released synchronously")
		e.notifyWithdrawal(ctx, w, notify.TypeWithdrawalReleased, "Your withdrawal has been paid out.")
	case gateway.OutcomeFailure:
		e.compensate(ctx, w, "transfer "+transfer.Status)
		return nil, fmt.Errorf("%w: transfer %s", ErrGateway, transfer.Status)
	default:
		if err := e.store.MarkWithdrawalProcessing(ctx, w.Id, transfer.TransferRef); err != nil && !errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("failed to mark withdrawal %s processing: %w", w.Id, err)
		}
		logger.Info("Transfer accepted by gateway", "transfer_ref", transfer.TransferRef, "status", transfer.Status)
	}

	updated, err := e.store.GetWithdrawal(ctx, w.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload withdrawal %s: %w", w.Id, err)
	}
	return updated, nil
}

// compensationTimeout bounds the refund write once the caller's context is gone.
const compensationTimeout = 10 * time.Second

// compensate restores the debited balance of a withdrawal that did not go through.
// It outlives the caller's context: a client disconnect must not leave the balance debited.
func (e *Engine) compensate(ctx context.Context, w *models.Withdrawal, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := e.store.FailWithdrawal(ctx, w.Id, reason)
	switch {
	case err == nil:
		slog.Warn("Withdrawal compensated, balance restored", "withdrawal_id", w.Id, "user_id", w.UserId, "amount", w.Amount, "reason", reason)
		e.notifyWithdrawal(ctx, w, notify.TypeWithdrawalFailed, "Your withdrawal failed and the amount was returned to your balance.")
	case errors.Is(err, storage.ErrStatusConflict):
		slog.Info("Withdrawal already settled by a webhook; nothing to compensate", "withdrawal_id", w.Id)
	default:
		// The reconciliation job picks up withdrawals left pending.
		slog.Error("CRITICAL: failed to compensate withdrawal", "withdrawal_id", w.Id, "user_id", w.UserId, "amount", w.Amount, "error", err)
	}
}
