package payments

import (
	"context"
	"net/http"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/handlers/respond"
	"github.com/chris/escrow-settlement/pkg/mapping"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
)

// PaymentService is the part of the escrow engine the payment routes drive.
type PaymentService interface {
	InitiatePayment(ctx context.Context, buyer models.Identity, itemID, gatewayName string) (*models.Payment, error)
	GetPayment(ctx context.Context, actor models.Identity, paymentID string) (*models.Payment, error)
	ConfirmReceipt(ctx context.Context, actor models.Identity, paymentID string) (*models.Payment, error)
}

// PaymentsHandler holds the dependencies for payment-related handlers.
type PaymentsHandler struct {
	Service PaymentService
}

// NewPaymentsHandler creates a new PaymentsHandler.
func NewPaymentsHandler(service PaymentService) *PaymentsHandler {
	return &PaymentsHandler{Service: service}
}

// InitiatePayment starts a purchase and returns the checkout link.
func (h *PaymentsHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var body api.NewPayment
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	payment, err := h.Service.InitiatePayment(r.Context(), middleware.IdentityFromContext(r.Context()), body.ItemId, body.Gateway)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, api.InitiatedPayment{
		Payment:     *mapping.ToApiPayment(payment),
		CheckoutUrl: payment.CheckoutURL,
	})
}

// GetPaymentById returns a payment to one of its parties or an admin.
func (h *PaymentsHandler) GetPaymentById(w http.ResponseWriter, r *http.Request, paymentId string) {
	payment, err := h.Service.GetPayment(r.Context(), middleware.IdentityFromContext(r.Context()), paymentId)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiPayment(payment))
}

// ConfirmReceipt releases escrow to the seller.
func (h *PaymentsHandler) ConfirmReceipt(w http.ResponseWriter, r *http.Request, paymentId string) {
	payment, err := h.Service.ConfirmReceipt(r.Context(), middleware.IdentityFromContext(r.Context()), paymentId)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiPayment(payment))
}
