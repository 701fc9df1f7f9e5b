package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// ConfirmReceipt is the buyer's acknowledgement that the item arrived. It releases
// the escrowed funds to the seller, net of the platform fee, in one transaction.
func (e *Engine) ConfirmReceipt(ctx context.Context, actor models.Identity, paymentID string) (*models.Payment, error) {
	if actor.UserId == "" {
		return nil, ErrUnauthorized
	}
	payment, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment %s", paymentID)
	}
	if actor.UserId != payment.BuyerId {
		return nil, fmt.Errorf("%w: only the buyer can confirm receipt", ErrForbidden)
	}
	if payment.ActiveDisputeId != nil {
		return nil, fmt.Errorf("%w: payment %s is under dispute", ErrInvalidState, paymentID)
	}
	if payment.Status != models.PaymentEscrow {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrInvalidState, paymentID, payment.Status)
	}

	earning, err := e.settle(ctx, payment, models.PaymentEscrow, models.PaymentReleased, nil, "")
	if err != nil {
		return nil, err
	}

	slog.Info("Receipt confirmed", "payment_id", paymentID, "seller_id", payment.SellerId, "net_amount", earning.Amount)
	notify.Send(ctx, e.notifier, notify.Notification{
		UserID:     payment.SellerId,
		Type:       notify.TypeReceiptConfirmed,
		Message:    "The buyer confirmed receipt; the sale has been added to your balance.",
		RelatedIDs: map[string]string{"payment_id": paymentID, "earning_id": earning.Id},
		Balance:    e.balance(ctx, payment.SellerId),
	})

	return e.reload(ctx, payment)
}

// settle moves payment from one state to released or refunded, crediting the seller
// (net of fee) or the buyer (gross). When dispute is set it is resolved in the same
// transaction. It re-reads the item and retries when only the item changed.
func (e *Engine) settle(ctx context.Context, payment *models.Payment, from, to models.PaymentStatus, dispute *models.DisputeRecord, note string) (*models.Earning, error) {
	for attempt := 0; attempt < e.cfg.SettleAttempts; attempt++ {
		item, err := e.store.GetItem(ctx, payment.ItemId)
		if err != nil {
			return nil, notFound(err, "item %s", payment.ItemId)
		}

		st := storage.Settlement{
			PaymentID:            payment.Id,
			FromStatus:           from,
			ToStatus:             to,
			ItemID:               item.Id,
			ExpectedItemQuantity: item.Quantity,
		}
		earning := &models.Earning{
			Id:               earningID(payment.Id),
			Currency:         payment.Currency,
			RelatedPaymentId: payment.Id,
			RelatedItemId:    payment.ItemId,
			Status:           models.EarningAvailable,
			CreatedAt:        e.now(),
		}

		switch to {
		case models.PaymentReleased:
			quote, err := e.fees.Calculate(payment.GrossAmount)
			if err != nil {
				return nil, fmt.Errorf("failed to calculate fee for payment %s: %w", payment.Id, err)
			}
			fee := quote.Fee
			st.PlatformFee = &fee
			earning.UserId = payment.SellerId
			earning.Amount = quote.NetAmount
			earning.Kind = models.EarningSale

			if item.Quantity <= 0 {
				// The buyer has paid either way; the stock count cannot cover this sale.
				slog.Warn("Settling sale of an item with no stock left", "payment_id", payment.Id, "item_id", item.Id, "quantity", item.Quantity)
			}
			st.ItemQuantity = item.Quantity - 1
			st.ItemStatus = models.ItemAvailable
			if st.ItemQuantity <= 0 {
				st.ItemQuantity = 0
				st.ItemStatus = models.ItemSold
			}
		case models.PaymentRefunded:
			earning.UserId = payment.BuyerId
			earning.Amount = payment.GrossAmount
			earning.Kind = models.EarningRefund

			// The unit goes back on sale while there is stock to sell.
			st.ItemQuantity = item.Quantity
			st.ItemStatus = models.ListingStatus(item.Quantity)
		default:
			return nil, fmt.Errorf("cannot settle payment %s to %s", payment.Id, to)
		}
		st.Earning = earning

		if dispute != nil {
			st.DisputeID = dispute.Id
			st.Outcome = outcomeFor(to)
			st.ResolutionNote = note
		}

		err = e.store.Settle(ctx, st)
		switch {
		case err == nil:
			return earning, nil
		case errors.Is(err, storage.ErrStatusConflict):
			return nil, fmt.Errorf("%w: payment %s is no longer %s", ErrInvalidState, payment.Id, from)
		case errors.Is(err, storage.ErrConcurrentUpdate):
			slog.Debug("Item changed during settlement, retrying", "payment_id", payment.Id, "item_id", item.Id, "attempt", attempt+1)
			continue
		default:
			return nil, fmt.Errorf("failed to settle payment %s: %w", payment.Id, err)
		}
	}
	return nil, fmt.Errorf("%w: item %s kept changing while settling payment %s", ErrInvalidState, payment.ItemId, payment.Id)
}

func outcomeFor(to models.PaymentStatus) models.DisputeOutcome {
	if to == models.PaymentRefunded {
		return models.OutcomeRefund
	}
	return models.OutcomeRelease
}

func (e *Engine) reload(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	updated, err := e.store.GetPayment(ctx, payment.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment %s: %w", payment.Id, err)
	}
	return updated, nil
}
