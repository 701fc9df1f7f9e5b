package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
)

const maxDisputeDescription = 4000

// FileDispute opens a dispute on a payment for one of its parties. The payment must be
// in a disputable state with no dispute already active.
func (e *Engine) FileDispute(ctx context.Context, actor models.Identity, paymentID, reason, description string) (*models.DisputeRecord, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if len(description) > maxDisputeDescription {
		return nil, fmt.Errorf("%w: description is longer than %d characters", ErrValidation, maxDisputeDescription)
	}

	payment, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment %s", paymentID)
	}
	if !payment.IsParty(actor.UserId) {
		return nil, fmt.Errorf("%w: not a party to payment %s", ErrForbidden, paymentID)
	}
	if _, err := e.store.GetItem(ctx, payment.ItemId); err != nil {
		return nil, notFound(err, "item %s", payment.ItemId)
	}
	if payment.ActiveDisputeId != nil {
		return nil, fmt.Errorf("%w: payment %s already has an active dispute", ErrInvalidState, paymentID)
	}
	if !slices.Contains(e.cfg.DisputableStatuses, payment.Status) {
		return nil, fmt.Errorf("%w: payment %s is %s and cannot be disputed", ErrInvalidState, paymentID, payment.Status)
	}

	now := e.now()
	dispute := &models.DisputeRecord{
		Id:               e.newID(),
		PaymentId:        payment.Id,
		FiledByUserId:    actor.UserId,
		OtherPartyUserId: payment.OtherParty(actor.UserId),
		Reason:           reason,
		Description:      description,
		Status:           models.DisputePendingAdmin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.OpenDispute(ctx, dispute, e.cfg.DisputableStatuses); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: payment %s changed before the dispute could be opened", ErrInvalidState, paymentID)
		}
		return nil, fmt.Errorf("failed to open dispute: %w", err)
	}

	slog.Info("Dispute filed", "dispute_id", dispute.Id, "payment_id", paymentID, "filed_by", actor.UserId)

	related := map[string]string{"payment_id": paymentID, "dispute_id": dispute.Id}
	notifications := []notify.Notification{{
		UserID:     dispute.OtherPartyUserId,
		Type:       notify.TypeDisputeFiled,
		Message:    "A dispute was filed on one of your payments: " + reason,
		RelatedIDs: related,
	}}
	for _, admin := range e.cfg.AdminUserIDs {
		notifications = append(notifications, notify.Notification{
			UserID:     admin,
			Type:       notify.TypeDisputeFiled,
			Message:    "A dispute needs review: " + reason,
			RelatedIDs: related,
		})
	}
	notify.Send(ctx, e.notifier, notifications...)

	return dispute, nil
}

// ResolveDispute applies an adjudication decision: release pays the seller as a
// confirmed receipt would, refund credits the buyer the gross amount. Repeating the
// same decision returns the resolved dispute; a different one is ErrInvalidState.
func (e *Engine) ResolveDispute(ctx context.Context, actor models.Identity, disputeID string, outcome models.DisputeOutcome, note string) (*models.DisputeRecord, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	if !e.isAdmin(actor) {
		return nil, fmt.Errorf("%w: only administrators can resolve disputes", ErrForbidden)
	}
	var to models.PaymentStatus
	switch outcome {
	case models.OutcomeRelease:
		to = models.PaymentReleased
	case models.OutcomeRefund:
		to = models.PaymentRefunded
	default:
		return nil, fmt.Errorf("%w: outcome must be %q or %q", ErrValidation, models.OutcomeRelease, models.OutcomeRefund)
	}

	dispute, err := e.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, notFound(err, "dispute %s", disputeID)
	}
	if dispute.Status == models.DisputeResolved {
		return alreadyResolved(dispute, outcome)
	}

	payment, err := e.store.GetPayment(ctx, dispute.PaymentId)
	if err != nil {
		return nil, notFound(err, "payment %s", dispute.PaymentId)
	}

	earning, err := e.settle(ctx, payment, models.PaymentDisputed, to, dispute, note)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			// A concurrent resolution may have won.
			if current, gerr := e.store.GetDispute(ctx, disputeID); gerr == nil && current.Status == models.DisputeResolved {
				return alreadyResolved(current, outcome)
			}
		}
		return nil, err
	}

	slog.Info("Dispute resolved", "dispute_id", disputeID, "payment_id", payment.Id, "outcome", outcome, "credited", earning.UserId, "amount", earning.Amount)

	related := map[string]string{"payment_id": payment.Id, "dispute_id": disputeID, "earning_id": earning.Id}
	message := fmt.Sprintf("The dispute was resolved: %s.", outcome)
	n := func(userID string) notify.Notification {
		out := notify.Notification{UserID: userID, Type: notify.TypeDisputeResolved, Message: message, RelatedIDs: related}
		if userID == earning.UserId {
			out.Balance = e.balance(ctx, userID)
		}
		return out
	}
	notify.Send(ctx, e.notifier, n(payment.BuyerId), n(payment.SellerId))

	resolved, err := e.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload dispute %s: %w", disputeID, err)
	}
	return resolved, nil
}

func alreadyResolved(dispute *models.DisputeRecord, outcome models.DisputeOutcome) (*models.DisputeRecord, error) {
	if dispute.Outcome != outcome {
		return nil, fmt.Errorf("%w: dispute %s was already resolved with %s", ErrInvalidState, dispute.Id, dispute.Outcome)
	}
	return dispute, nil
}

// GetDispute returns a dispute to either party of its payment or to an administrator.
func (e *Engine) GetDispute(ctx context.Context, actor models.Identity, disputeID string) (*models.DisputeRecord, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	dispute, err := e.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, notFound(err, "dispute %s", disputeID)
	}
	if actor.UserId != dispute.FiledByUserId && actor.UserId != dispute.OtherPartyUserId && !e.isAdmin(actor) {
		return nil, ErrForbidden
	}
	return dispute, nil
}
