// Package notify carries fire-and-forget notifications to users.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Type identifies what a notification is about.
type Type string

const (
	TypeEscrowFunded       Type = "escrow_funded"
	TypePaymentFailed      Type = "payment_failed"
	TypeReceiptConfirmed   Type = "receipt_confirmed"
	TypeDisputeFiled       Type = "dispute_filed"
	TypeDisputeResolved    Type = "dispute_resolved"
	TypeWithdrawalReleased Type = "withdrawal_released"
	TypeWithdrawalFailed   Type = "withdrawal_failed"
)

// Notification is one message for one user.
type Notification struct {
	UserID     string            `json:"user_id"`
	Type       Type              `json:"type"`
	Message    string            `json:"message"`
	RelatedIDs map[string]string `json:"related_ids,omitempty"`
	// Balance is the user's available balance after the event, when it changed.
	Balance   *int64    `json:"balance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers notifications. Delivery is best-effort; callers log failures
// and never roll back ledger state because of them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NoOp discards every notification.
type NoOp struct{}

func (NoOp) Notify(context.Context, Notification) error { return nil }

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers each notification and logs, but does not return, failures.
func Send(ctx context.Context, notifier Notifier, notifications ...Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notifications {
		if n.UserID == "" {
			continue
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		if err := notifier.Notify(ctx, n); err != nil {
			slog.Error("failed to deliver notification", "user_id", n.UserID, "type", n.Type, "error", err)
		}
	}
}
