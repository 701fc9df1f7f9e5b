// Package paystack implements checkouts, payouts and webhook translation for Paystack.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/models"
)

// Name is the gateway name used in routes, payments and configuration.
const Name = "paystack"

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.paystack.co"

// SignatureHeader carries the hex HMAC of the raw webhook body.
const SignatureHeader = "X-Paystack-Signature"

// Config holds the Paystack credentials.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

// Client talks to the Paystack API.
type Client struct {
	api           *gateway.JSONClient
	webhookSecret []byte
}

var (
	_ gateway.CheckoutGateway   = (*Client)(nil)
	_ gateway.PayoutGateway     = (*Client)(nil)
	_ gateway.WebhookTranslator = (*Client)(nil)
)

// New creates a Paystack client.
func New(cfg Config, httpClient gateway.HTTPDoer) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		api: &gateway.JSONClient{
			Gateway: Name,
			BaseURL: strings.TrimRight(baseURL, "/"),
			Headers: map[string]string{"Authorization": "Bearer " + cfg.SecretKey},
			HTTP:    httpClient,
		},
		webhookSecret: []byte(cfg.WebhookSecret),
	}
}

func (c *Client) Name() string { return Name }

// envelope is the wrapper around every Paystack API response.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func errorMessage(raw []byte) string {
	var e envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	return e.Message
}

func (c *Client) post(ctx context.Context, path string, payload any, out interface{ ok() (bool, string) }) error {
	if err := c.api.Do(ctx, http.MethodPost, path, payload, out, errorMessage); err != nil {
		return err
	}
	if ok, msg := out.ok(); !ok {
		return &gateway.APIError{Gateway: Name, StatusCode: http.StatusBadRequest, Message: msg}
	}
	return nil
}

func (e *envelope[T]) ok() (bool, string) { return e.Status, e.Message }

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// CreateCheckout initializes a transaction and returns its hosted payment page.
func (c *Client) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	var resp envelope[initializeData]
	err := c.post(ctx, "/transaction/initialize", initializeRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize returned no authorization url")
	}
	return &gateway.Checkout{CheckoutID: resp.Data.AccessCode, URL: resp.Data.AuthorizationURL}, nil
}

type recipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency,omitempty"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

// CreateRecipient registers a payout destination as a transfer recipient.
func (c *Client) CreateRecipient(ctx context.Context, req gateway.RecipientRequest) (string, error) {
	recipientType := "nuban"
	if req.Method == models.PayoutMobileMoney {
		recipientType = "mobile_money"
	}

	var resp envelope[recipientData]
	err := c.post(ctx, "/transferrecipient", recipientRequest{
		Type:          recipientType,
		Name:          req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.ProviderCode,
		Currency:      req.Currency,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Data.RecipientCode == "" {
		return "", fmt.Errorf("paystack returned no recipient code")
	}
	return resp.Data.RecipientCode, nil
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
}

// InitiateTransfer sends a transfer. Paystack treats a repeated reference as the
// same transfer.
func (c *Client) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	var resp envelope[transferData]
	err := c.post(ctx, "/transfer", transferRequest{
		Source:    "balance",
		Amount:    req.Amount,
		Recipient: req.RecipientRef,
		Reference: req.Reference,
		Reason:    req.Reason,
		Currency:  req.Currency,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &gateway.Transfer{
		TransferRef: resp.Data.TransferCode,
		Status:      resp.Data.Status,
		Outcome:     transferOutcome(resp.Data.Status),
	}, nil
}

func (c *Client) SignatureHeader() string { return SignatureHeader }

func (c *Client) Verify(body []byte, signature string) error {
	return gateway.VerifySignature(c.webhookSecret, body, signature)
}

type webhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		GatewayResponse string `json:"gateway_response"`
		TransferCode    string `json:"transfer_code"`
		Reason          string `json:"reason"`
	} `json:"data"`
}

func parse(body []byte) (*webhook, error) {
	var w webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if w.Event == "" {
		return nil, fmt.Errorf("%w: no event type", gateway.ErrMalformedPayload)
	}
	return &w, nil
}

// ParsePaymentEvent translates charge.* events.
func (c *Client) ParsePaymentEvent(body []byte) (*gateway.Event, error) {
	w, err := parse(body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(w.Event, "charge.") {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedEvent, w.Event)
	}
	if w.Data.Reference == "" {
		return nil, fmt.Errorf("%w: no reference", gateway.ErrMalformedPayload)
	}

	status := w.Data.Status
	if status == "" {
		status = strings.TrimPrefix(w.Event, "charge.")
	}
	return &gateway.Event{
		Kind:          gateway.EventPayment,
		Reference:     w.Data.Reference,
		Outcome:       chargeOutcome(w.Event, status),
		GatewayStatus: status,
		FailureReason: w.Data.GatewayResponse,
	}, nil
}

// ParsePayoutEvent translates transfer.* events.
func (c *Client) ParsePayoutEvent(body []byte) (*gateway.Event, error) {
	w, err := parse(body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(w.Event, "transfer.") {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedEvent, w.Event)
	}
	if w.Data.Reference == "" {
		return nil, fmt.Errorf("%w: no reference", gateway.ErrMalformedPayload)
	}

	var outcome gateway.Outcome
	switch w.Event {
	case "transfer.success":
		outcome = gateway.OutcomeSuccess
	case "transfer.failed", "transfer.reversed":
		outcome = gateway.OutcomeFailure
	default:
		outcome = gateway.OutcomeOther
	}
	return &gateway.Event{
		Kind:          gateway.EventPayout,
		Reference:     w.Data.Reference,
		Outcome:       outcome,
		GatewayStatus: strings.TrimPrefix(w.Event, "transfer."),
		FailureReason: w.Data.Reason,
		TransferRef:   w.Data.TransferCode,
	}, nil
}

func chargeOutcome(event, status string) gateway.Outcome {
	if event == "charge.success" || status == "success" {
		return gateway.OutcomeSuccess
	}
	switch status {
	case "failed", "abandoned", "reversed", "cancelled":
		return gateway.OutcomeFailure
	}
	return gateway.OutcomeOther
}

func transferOutcome(status string) gateway.Outcome {
	switch status {
	case "success":
		return gateway.OutcomeSuccess
	case "failed", "reversed", "rejected":
		return gateway.OutcomeFailure
	}
	return gateway.OutcomeOther
}
