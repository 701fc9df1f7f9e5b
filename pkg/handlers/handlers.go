package handlers

import (
	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/handlers/accounts"
	"github.com/chris/escrow-settlement/pkg/handlers/disputes"
	"github.com/chris/escrow-settlement/pkg/handlers/payments"
	"github.com/chris/escrow-settlement/pkg/handlers/webhooks"
)

// Service is everything the HTTP API needs from the escrow engine.
type Service interface {
	payments.PaymentService
	disputes.DisputeService
	accounts.AccountService
	webhooks.WebhookService
}

// ApiHandler implements the generated server interface.
// It is a composite of the more specific handlers.
type ApiHandler struct {
	*payments.PaymentsHandler
	*disputes.DisputesHandler
	*accounts.AccountsHandler
	*webhooks.WebhooksHandler
}

// NewApiHandler creates a new ApiHandler backed by service.
func NewApiHandler(service Service) *ApiHandler {
	return &ApiHandler{
		PaymentsHandler: payments.NewPaymentsHandler(service),
		DisputesHandler: disputes.NewDisputesHandler(service),
		AccountsHandler: accounts.NewAccountsHandler(service),
		WebhooksHandler: webhooks.NewWebhooksHandler(service),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
