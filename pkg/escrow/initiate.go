package escrow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/models"
)

// InitiatePayment opens a payment for one unit of an item and asks the gateway for
// a hosted checkout. The payment reference shared with the gateway is the payment id.
// If the gateway call fails the payment is marked failed and ErrGateway is returned.
func (e *Engine) InitiatePayment(ctx context.Context, buyer models.Identity, itemID, gatewayName string) (*models.Payment, error) {
	if buyer.UserId == "" {
		return nil, ErrUnauthorized
	}
	if itemID == "" {
		return nil, fmt.Errorf("%w: item_id is required", ErrValidation)
	}
	checkout, ok := e.gateways.Checkout[gatewayName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrValidation, gatewayName)
	}

	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, notFound(err, "item %s", itemID)
	}
	if item.SellerId == buyer.UserId {
		return nil, fmt.Errorf("%w: cannot buy your own item", ErrValidation)
	}
	if item.Status != models.ItemAvailable || item.Quantity <= 0 {
		return nil, fmt.Errorf("%w: item %s is %s", ErrInvalidState, item.Id, item.Status)
	}
	if item.Price <= 0 {
		return nil, fmt.Errorf("%w: item %s has no price", ErrInvalidState, item.Id)
	}

	currency := item.Currency
	if currency == "" {
		currency = e.cfg.Currency
	}
	now := e.now()
	id := e.newID()
	payment := &models.Payment{
		Id:               id,
		BuyerId:          buyer.UserId,
		SellerId:         item.SellerId,
		ItemId:           item.Id,
		GrossAmount:      item.Price,
		Currency:         currency,
		Status:           models.PaymentInitiated,
		GatewayName:      gatewayName,
		GatewayReference: id,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	result, err := checkout.CreateCheckout(ctx, gateway.CheckoutRequest{
		Reference:   payment.GatewayReference,
		Amount:      payment.GrossAmount,
		Currency:    payment.Currency,
		Email:       buyer.Email,
		CallbackURL: e.callbackURL(payment.Id),
		Metadata: map[string]string{
			"payment_id": payment.Id,
			"item_id":    payment.ItemId,
		},
	})
	if err != nil {
		slog.Warn("Checkout creation failed", "payment_id", payment.Id, "gateway", gatewayName, "error", err)
		if ferr := e.store.FailPayment(ctx, payment.Id, []models.PaymentStatus{models.PaymentInitiated}, "", "checkout failed: "+err.Error()); ferr != nil {
			slog.Error("Failed to mark payment failed after checkout error", "payment_id", payment.Id, "error", ferr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := e.store.AttachCheckout(ctx, payment.Id, result.CheckoutID, result.URL); err != nil {
		return nil, fmt.Errorf("failed to attach checkout to payment %s: %w", payment.Id, err)
	}
	payment.CheckoutId = result.CheckoutID
	payment.CheckoutURL = result.URL

	slog.Info("Payment initiated", "payment_id", payment.Id, "item_id", item.Id, "gateway", gatewayName, "amount", payment.GrossAmount)
	return payment, nil
}

func (e *Engine) callbackURL(paymentID string) string {
	if e.cfg.PublicBaseURL == "" {
		return ""
	}
	return e.cfg.PublicBaseURL + "/payments/" + paymentID
}
