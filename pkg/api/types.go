// Package api defines the HTTP surface of the escrow service: the request and
// response bodies and the chi server interface the handlers implement.
package api

import "time"

// PaymentStatus is the canonical payment state.
type PaymentStatus string

// NewPayment is the body of POST /payments.
type NewPayment struct {
	ItemId  string `json:"item_id"`
	Gateway string `json:"gateway"`
}

// Payment is the public view of a payment.
type Payment struct {
	Id                 string        `json:"id"`
	BuyerId            string        `json:"buyer_id"`
	SellerId           string        `json:"seller_id"`
	ItemId             string        `json:"item_id"`
	GrossAmount        int64         `json:"gross_amount"`
	Currency           string        `json:"currency"`
	Status             PaymentStatus `json:"status"`
	Gateway            string        `json:"gateway"`
	CheckoutUrl        *string       `json:"checkout_url,omitempty"`
	PlatformFeeCharged *int64        `json:"platform_fee_charged,omitempty"`
	ActiveDisputeId    *string       `json:"active_dispute_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// InitiatedPayment is the response to POST /payments.
type InitiatedPayment struct {
	Payment     Payment `json:"payment"`
	CheckoutUrl string  `json:"checkout_url"`
}

// NewDispute is the body of POST /payments/{paymentId}/disputes.
type NewDispute struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// DisputeResolution is the body of POST /disputes/{disputeId}/resolve.
type DisputeResolution struct {
	Outcome string `json:"outcome"`
	Note    string `json:"note"`
}

// Dispute is the public view of a dispute.
type Dispute struct {
	Id               string    `json:"id"`
	PaymentId        string    `json:"payment_id"`
	FiledByUserId    string    `json:"filed_by_user_id"`
	OtherPartyUserId string    `json:"other_party_user_id"`
	Reason           string    `json:"reason"`
	Description      string    `json:"description,omitempty"`
	Status           string    `json:"status"`
	Outcome          *string   `json:"outcome,omitempty"`
	ResolutionNote   *string   `json:"resolution_note,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PayoutDestination is where withdrawals are sent.
type PayoutDestination struct {
	Method        string `json:"method"`
	AccountNumber string `json:"account_number"`
	ProviderCode  string `json:"provider_code"`
	AccountName   string `json:"account_name"`
	Currency      string `json:"currency,omitempty"`
}

// Earning is one ledger credit.
type Earning struct {
	Id               string    `json:"id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Kind             string    `json:"kind"`
	Status           string    `json:"status"`
	RelatedPaymentId string    `json:"related_payment_id"`
	WithdrawalId     *string   `json:"withdrawal_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Withdrawal is one payout attempt.
type Withdrawal struct {
	Id            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PayoutMethod  string    `json:"payout_method"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Account is the caller's balance with its history.
type Account struct {
	UserId            string             `json:"user_id"`
	AvailableBalance  int64              `json:"available_balance"`
	PayoutDestination *PayoutDestination `json:"payout_destination,omitempty"`
	Earnings          []Earning          `json:"earnings"`
	Withdrawals       []Withdrawal       `json:"withdrawals"`
}

// PlatformStats are the platform-wide fee counters.
type PlatformStats struct {
	TotalPlatformFees int64 `json:"total_platform_fees"`
	SettledPayments   int64 `json:"settled_payments"`
}

// WebhookAck is returned for every authenticated webhook.
type WebhookAck struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Message string `json:"message"`
}
