// Package intasend implements hosted checkouts and webhook translation for IntaSend.
// IntaSend is used for collections only; payouts go through Paystack.
package intasend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/chris/escrow-settlement/pkg/gateway"
)

// Name is the gateway name used in routes, payments and configuration.
const Name = "intasend"

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://payment.intasend.com"

// SignatureHeader carries the hex HMAC of the raw webhook body.
const SignatureHeader = "X-IntaSend-Signature"

// Config holds the IntaSend credentials.
type Config struct {
	BaseURL       string
	PublicKey     string
	SecretKey     string
	WebhookSecret string
}

// Client talks to the IntaSend API.
type Client struct {
	api           *gateway.JSONClient
	publicKey     string
	webhookSecret []byte
}

var (
	_ gateway.CheckoutGateway   = (*Client)(nil)
	_ gateway.WebhookTranslator = (*Client)(nil)
)

// New creates an IntaSend client.
func New(cfg Config, httpClient gateway.HTTPDoer) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		api: &gateway.JSONClient{
			Gateway: Name,
			BaseURL: strings.TrimRight(baseURL, "/"),
			Headers: map[string]string{
				"Authorization":             "Bearer " + cfg.SecretKey,
				"X-IntaSend-Public-API-Key": cfg.PublicKey,
			},
			HTTP: httpClient,
		},
		publicKey:     cfg.PublicKey,
		webhookSecret: []byte(cfg.WebhookSecret),
	}
}

func (c *Client) Name() string { return Name }

type checkoutRequest struct {
	PublicKey   string `json:"public_key"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	APIRef      string `json:"api_ref"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func errorMessage(raw []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Errors) > 0 {
		return e.Errors[0].Detail
	}
	return ""
}

// CreateCheckout opens a hosted checkout. IntaSend takes the amount in major units.
func (c *Client) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	var resp checkoutResponse
	err := c.api.Do(ctx, http.MethodPost, "/api/v1/checkout/", checkoutRequest{
		PublicKey:   c.publicKey,
		Amount:      majorUnits(req.Amount),
		Currency:    req.Currency,
		Email:       req.Email,
		APIRef:      req.Reference,
		RedirectURL: req.CallbackURL,
	}, &resp, errorMessage)
	if err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("intasend checkout returned no url")
	}
	return &gateway.Checkout{CheckoutID: resp.ID, URL: resp.URL}, nil
}

func majorUnits(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s.%02d", sign, strconv.FormatInt(minor/100, 10), minor%100)
}

func (c *Client) SignatureHeader() string { return SignatureHeader }

func (c *Client) Verify(body []byte, signature string) error {
	return gateway.VerifySignature(c.webhookSecret, body, signature)
}

type webhook struct {
	InvoiceID    string `json:"invoice_id"`
	State        string `json:"state"`
	APIRef       string `json:"api_ref"`
	FailedReason string `json:"failed_reason"`
	FailedCode   string `json:"failed_code"`
}

// ParsePaymentEvent translates collection state callbacks.
func (c *Client) ParsePaymentEvent(body []byte) (*gateway.Event, error) {
	var w webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedPayload, err)
	}
	if w.State == "" {
		return nil, fmt.Errorf("%w: no state", gateway.ErrUnsupportedEvent)
	}
	if w.APIRef == "" {
		return nil, fmt.Errorf("%w: no api_ref", gateway.ErrMalformedPayload)
	}

	var outcome gateway.Outcome
	switch strings.ToUpper(w.State) {
	case "COMPLETE", "COMPLETED":
		outcome = gateway.OutcomeSuccess
	case "FAILED", "CANCELED", "CANCELLED":
		outcome = gateway.OutcomeFailure
	default:
		outcome = gateway.OutcomeOther
	}

	reason := w.FailedReason
	if reason == "" && w.FailedCode != "" {
		reason = "code " + w.FailedCode
	}
	return &gateway.Event{
		Kind:          gateway.EventPayment,
		Reference:     w.APIRef,
		Outcome:       outcome,
		GatewayStatus: w.State,
		FailureReason: reason,
	}, nil
}

// ParsePayoutEvent always fails: payouts are not routed through IntaSend.
func (c *Client) ParsePayoutEvent(body []byte) (*gateway.Event, error) {
	return nil, fmt.Errorf("%w: intasend payouts", gateway.ErrUnsupportedEvent)
}
