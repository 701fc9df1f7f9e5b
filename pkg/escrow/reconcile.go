package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// WebhookResult says what an authenticated webhook did. Every result is acknowledged
// to the gateway with a 200.
type WebhookResult string

const (
	WebhookApplied          WebhookResult = "applied"
	WebhookIgnored          WebhookResult = "ignored"
	WebhookUnknownReference WebhookResult = "unknown_reference"
)

// reconcileAttempts bounds re-reads after losing a status compare-and-swap to a
// concurrent delivery.
const reconcileAttempts = 3

// SignatureHeader names the header carrying a gateway's webhook signature, or "" for
// an unknown gateway.
func (e *Engine) SignatureHeader(gatewayName string) string {
	if translator, ok := e.gateways.Webhooks[gatewayName]; ok {
		return translator.SignatureHeader()
	}
	return ""
}

// HandlePaymentWebhook authenticates a raw payment webhook and applies it.
func (e *Engine) HandlePaymentWebhook(ctx context.Context, gatewayName string, body []byte, signature string) (WebhookResult, error) {
	ev, err := e.translate(gatewayName, body, signature, gateway.WebhookTranslator.ParsePaymentEvent)
	if err != nil || ev == nil {
		return WebhookIgnored, err
	}
	return e.ApplyPaymentEvent(ctx, gatewayName, *ev)
}

// HandlePayoutWebhook authenticates a raw payout webhook and applies it.
func (e *Engine) HandlePayoutWebhook(ctx context.Context, gatewayName string, body []byte, signature string) (WebhookResult, error) {
	ev, err := e.translate(gatewayName, body, signature, gateway.WebhookTranslator.ParsePayoutEvent)
	if err != nil || ev == nil {
		return WebhookIgnored, err
	}
	return e.ApplyPayoutEvent(ctx, gatewayName, *ev)
}

// translate returns a nil event, and no error, for authenticated events that are not acted on.
func (e *Engine) translate(gatewayName string, body []byte, signature string, parse func(gateway.WebhookTranslator, []byte) (*gateway.Event, error)) (*gateway.Event, error) {
	translator, ok := e.gateways.Webhooks[gatewayName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrNotFound, gatewayName)
	}

	if err := translator.Verify(body, signature); err != nil {
		if errors.Is(err, gateway.ErrMissingSignature) {
			return nil, fmt.Errorf("%w: missing %s header", ErrValidation, translator.SignatureHeader())
		}
		slog.Warn("Rejected webhook with bad signature", "gateway", gatewayName)
		return nil, ErrSignature
	}

	ev, err := parse(translator, body)
	switch {
	case errors.Is(err, gateway.ErrUnsupportedEvent):
		slog.Info("Ignoring unsupported webhook event", "gateway", gatewayName, "error", err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return ev, nil
}

// ApplyPaymentEvent applies a canonical payment event. Events for terminal payments,
// and events that do not match the payment's current state, are ignored.
func (e *Engine) ApplyPaymentEvent(ctx context.Context, gatewayName string, ev gateway.Event) (WebhookResult, error) {
	logger := slog.With("gateway", gatewayName, "reference", ev.Reference, "outcome", ev.Outcome, "gateway_status", ev.GatewayStatus)

	payment, err := e.store.GetPaymentByReference(ctx, gatewayName, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("Webhook for unknown payment reference")
		return WebhookUnknownReference, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up payment: %w", err)
	}
	paymentID := payment.Id
	logger = logger.With("payment_id", paymentID)

	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		if attempt > 0 {
			if payment, err = e.store.GetPayment(ctx, paymentID); err != nil {
				return "", fmt.Errorf("failed to reload payment %s: %w", paymentID, err)
			}
		}
		if payment.Status.IsTerminal() {
			logger.Info("Ignoring webhook for terminal payment", "status", payment.Status)
			return WebhookIgnored, nil
		}

		switch ev.Outcome {
		case gateway.OutcomeSuccess:
			if payment.Status != models.PaymentInitiated {
				logger.Info("Ignoring duplicate success webhook", "status", payment.Status)
				return WebhookIgnored, nil
			}
			err = e.store.EscrowPayment(ctx, payment.Id, ev.GatewayStatus)
			if err == nil {
				logger.Info("Payment moved to escrow")
				notify.Send(ctx, e.notifier,
					notify.Notification{
						UserID:     payment.SellerId,
						Type:       notify.TypeEscrowFunded,
						Message:    "A buyer has paid; funds are held in escrow until receipt is confirmed.",
						RelatedIDs: map[string]string{"payment_id": payment.Id, "item_id": payment.ItemId},
					},
				)
				return WebhookApplied, nil
			}

		case gateway.OutcomeFailure:
			if payment.Status != models.PaymentInitiated && payment.Status != models.PaymentEscrow {
				logger.Info("Ignoring failure webhook", "status", payment.Status)
				return WebhookIgnored, nil
			}
			reason := ev.FailureReason
			if reason == "" {
				reason = ev.GatewayStatus
			}
			err = e.store.FailPayment(ctx, payment.Id, []models.PaymentStatus{models.PaymentInitiated, models.PaymentEscrow}, ev.GatewayStatus, reason)
			if err == nil {
				logger.Info("Payment failed", "reason", reason)
				notify.Send(ctx, e.notifier, notify.Notification{
					UserID:     payment.BuyerId,
					Type:       notify.TypePaymentFailed,
					Message:    "Your payment could not be completed.",
					RelatedIDs: map[string]string{"payment_id": payment.Id},
				})
				return WebhookApplied, nil
			}

		default:
			logger.Info("Ignoring non-final webhook")
			return WebhookIgnored, nil
		}

		if !errors.Is(err, storage.ErrStatusConflict) && !errors.Is(err, storage.ErrConcurrentUpdate) {
			return "", fmt.Errorf("failed to apply webhook to payment %s: %w", payment.Id, err)
		}
		logger.Debug("Payment changed concurrently, re-reading", "attempt", attempt+1)
	}

	// Another delivery kept winning; whatever it applied is the outcome.
	logger.Warn("Gave up applying webhook after concurrent updates")
	return WebhookIgnored, nil
}

// ApplyPayoutEvent applies a canonical payout event to the withdrawal named by its
// reference. A final failure runs the compensating transaction. A success for a
// withdrawal that was already compensated is reported loudly and not applied.
func (e *Engine) ApplyPayoutEvent(ctx context.Context, gatewayName string, ev gateway.Event) (WebhookResult, error) {
	logger := slog.With("gateway", gatewayName, "withdrawal_id", ev.Reference, "outcome", ev.Outcome, "gateway_status", ev.GatewayStatus)

	w, err := e.store.GetWithdrawal(ctx, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("Payout webhook for unknown withdrawal")
		return WebhookUnknownReference, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up withdrawal: %w", err)
	}
	if w.GatewayName != "" && w.GatewayName != gatewayName {
		logger.Warn("Payout webhook from a different gateway than the withdrawal's", "withdrawal_gateway", w.GatewayName)
		return WebhookUnknownReference, nil
	}

	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		if attempt > 0 {
			if w, err = e.store.GetWithdrawal(ctx, ev.Reference); err != nil {
				return "", fmt.Errorf("failed to reload withdrawal %s: %w", ev.Reference, err)
			}
		}
		if w.Status.IsTerminal() {
			if w.Status == models.WithdrawalFailed && ev.Outcome == gateway.OutcomeSuccess {
				logger.Error("CRITICAL: gateway reports success for a withdrawal already compensated; manual review required",
					"user_id", w.UserId, "amount", w.Amount)
			} else {
				logger.Info("Ignoring webhook for terminal withdrawal", "status", w.Status)
			}
			return WebhookIgnored, nil
		}

		switch ev.Outcome {
		case gateway.OutcomeSuccess:
			err = e.store.CompleteWithdrawal(ctx, w.Id, ev.TransferRef)
			if err == nil {
				logger.Info("Withdrawal released")
				e.notifyWithdrawal(ctx, w, notify.TypeWithdrawalReleased, "Your withdrawal has been paid out.")
				return WebhookApplied, nil
			}

		case gateway.OutcomeFailure:
			reason := ev.FailureReason
			if reason == "" {
				reason = "gateway reported " + ev.GatewayStatus
			}
			err = e.store.FailWithdrawal(ctx, w.Id, reason)
			if err == nil {
				logger.Warn("Withdrawal failed at gateway, balance restored", "reason", reason)
				e.notifyWithdrawal(ctx, w, notify.TypeWithdrawalFailed, "Your withdrawal failed and the amount was returned to your balance.")
				return WebhookApplied, nil
			}

		default:
			if w.Status != models.WithdrawalPendingGateway || ev.TransferRef == "" {
				logger.Info("Ignoring non-final payout webhook")
				return WebhookIgnored, nil
			}
			err = e.store.MarkWithdrawalProcessing(ctx, w.Id, ev.TransferRef)
			if err == nil {
				return WebhookApplied, nil
			}
		}

		if !errors.Is(err, storage.ErrStatusConflict) {
			return "", fmt.Errorf("failed to apply payout webhook to withdrawal %s: %w", w.Id, err)
		}
		logger.Debug("Withdrawal changed concurrently, re-reading", "attempt", attempt+1)
	}

	logger.Warn("Gave up applying payout webhook after concurrent updates")
	return WebhookIgnored, nil
}

func (e *Engine) notifyWithdrawal(ctx context.Context, w *models.Withdrawal, typ notify.Type, message string) {
	notify.Send(ctx, e.notifier, notify.Notification{
		UserID:     w.UserId,
		Type:       typ,
		Message:    message,
		RelatedIDs: map[string]string{"withdrawal_id": w.Id},
		Balance:    e.balance(ctx, w.UserId),
	})
}

// balance is the user's current available balance, or nil if it cannot be read.
func (e *Engine) balance(ctx context.Context, userID string) *int64 {
	account, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			var zero int64
			return &zero
		}
		return nil
	}
	return &account.AvailableBalance
}
