package models

import (
	"time"
)

// PaymentStatus defines the possible states of a payment.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentEscrow    PaymentStatus = "escrow"
	PaymentDisputed  PaymentStatus = "disputed"
	PaymentReleased  PaymentStatus = "released"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentReleased, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the canonical payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentInitiated, PaymentEscrow, PaymentDisputed, PaymentReleased, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Payment is one buyer-to-platform money movement for one item.
// Amounts are in minor currency units.
type Payment struct {
	Id                 string        `json:"id" dynamodbav:"id"`
	BuyerId            string        `json:"buyer_id" dynamodbav:"buyer_id"`
	SellerId           string        `json:"seller_id" dynamodbav:"seller_id"`
	ItemId             string        `json:"item_id" dynamodbav:"item_id"`
	GrossAmount        int64         `json:"gross_amount" dynamodbav:"gross_amount"`
	Currency           string        `json:"currency" dynamodbav:"currency"`
	Status             PaymentStatus `json:"status" dynamodbav:"status"`
	GatewayName        string        `json:"gateway_name" dynamodbav:"gateway_name"`
	GatewayReference   string        `json:"gateway_reference" dynamodbav:"gateway_reference"`
	GatewayStatus      string        `json:"gateway_status,omitempty" dynamodbav:"gateway_status,omitempty"`
	CheckoutId         string        `json:"checkout_id,omitempty" dynamodbav:"checkout_id,omitempty"`
	CheckoutURL        string        `json:"checkout_url,omitempty" dynamodbav:"checkout_url,omitempty"`
	FailureReason      string        `json:"failure_reason,omitempty" dynamodbav:"failure_reason,omitempty"`
	PlatformFeeCharged *int64        `json:"platform_fee_charged,omitempty" dynamodbav:"platform_fee_charged,omitempty"`
	ActiveDisputeId    *string       `json:"active_dispute_id,omitempty" dynamodbav:"active_dispute_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

// IsParty reports whether userID is the buyer or the seller on the payment.
func (p *Payment) IsParty(userID string) bool {
	return userID != "" && (userID == p.BuyerId || userID == p.SellerId)
}

// OtherParty returns the counterparty of userID on the payment.
func (p *Payment) OtherParty(userID string) string {
	if userID == p.BuyerId {
		return p.SellerId
	}
	return p.BuyerId
}

// EarningStatus defines the possible states of an earning.
type EarningStatus string

const (
	EarningAvailable         EarningStatus = "available"
	EarningWithdrawalPending EarningStatus = "withdrawal_pending"
	EarningWithdrawn         EarningStatus = "withdrawn"
)

// EarningKind distinguishes a seller's sale credit from a buyer's refund credit.
type EarningKind string

const (
	EarningSale   EarningKind = "sale"
	EarningRefund EarningKind = "refund"
)

// Earning is a settled credit derived from exactly one Payment.
type Earning struct {
	Id               string        `json:"id" dynamodbav:"id"`
	UserId           string        `json:"user_id" dynamodbav:"user_id"`
	Amount           int64         `json:"amount" dynamodbav:"amount"`
	Currency         string        `json:"currency" dynamodbav:"currency"`
	Kind             EarningKind   `json:"kind" dynamodbav:"kind"`
	RelatedPaymentId string        `json:"related_payment_id" dynamodbav:"related_payment_id"`
	RelatedItemId    string        `json:"related_item_id" dynamodbav:"related_item_id"`
	Status           EarningStatus `json:"status" dynamodbav:"status"`
	WithdrawalId     string        `json:"withdrawal_id,omitempty" dynamodbav:"withdrawal_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at" dynamodbav:"created_at"`
}

// WithdrawalStatus defines the possible states of a withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPendingGateway WithdrawalStatus = "pending_gateway"
	WithdrawalProcessing     WithdrawalStatus = "processing"
	WithdrawalReleased       WithdrawalStatus = "released"
	WithdrawalFailed         WithdrawalStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalReleased || s == WithdrawalFailed
}

// Withdrawal is one payout attempt debiting a seller's balance.
type Withdrawal struct {
	Id                  string           `json:"id" dynamodbav:"id"`
	UserId              string           `json:"user_id" dynamodbav:"user_id"`
	Amount              int64            `json:"amount" dynamodbav:"amount"`
	Currency            string           `json:"currency" dynamodbav:"currency"`
	Status              WithdrawalStatus `json:"status" dynamodbav:"status"`
	PayoutMethod        PayoutMethod     `json:"payout_method" dynamodbav:"payout_method"`
	GatewayName         string           `json:"gateway_name" dynamodbav:"gateway_name"`
	GatewayRecipientRef string           `json:"gateway_recipient_ref" dynamodbav:"gateway_recipient_ref"`
	GatewayTransferRef  string           `json:"gateway_transfer_ref,omitempty" dynamodbav:"gateway_transfer_ref,omitempty"`
	FailureReason       string           `json:"failure_reason,omitempty" dynamodbav:"failure_reason,omitempty"`
	EarningIds          []string         `json:"earning_ids" dynamodbav:"earning_ids,stringset,omitempty"`
	RequestedAt         time.Time        `json:"requested_at" dynamodbav:"requested_at"`
	UpdatedAt           time.Time        `json:"updated_at" dynamodbav:"updated_at"`
}

// DisputeStatus defines the possible states of a dispute.
type DisputeStatus string

const (
	DisputeOpen         DisputeStatus = "open"
	DisputePendingAdmin DisputeStatus = "pending_admin"
	DisputeResolved     DisputeStatus = "resolved"
)

// DisputeOutcome is the adjudication decision for a dispute.
type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "release"
	OutcomeRefund  DisputeOutcome = "refund"
)

// DisputeRecord is one adjudication case for a Payment.
type DisputeRecord struct {
	Id               string         `json:"id" dynamodbav:"id"`
	PaymentId        string         `json:"payment_id" dynamodbav:"payment_id"`
	FiledByUserId    string         `json:"filed_by_user_id" dynamodbav:"filed_by_user_id"`
	OtherPartyUserId string         `json:"other_party_user_id" dynamodbav:"other_party_user_id"`
	Reason           string         `json:"reason" dynamodbav:"reason"`
	Description      string         `json:"description" dynamodbav:"description"`
	Status           DisputeStatus  `json:"status" dynamodbav:"status"`
	Outcome          DisputeOutcome `json:"outcome,omitempty" dynamodbav:"outcome,omitempty"`
	ResolutionNote   string         `json:"resolution_note,omitempty" dynamodbav:"resolution_note,omitempty"`
	CreatedAt        time.Time      `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" dynamodbav:"updated_at"`
}

// PayoutMethod is the kind of payout destination.
type PayoutMethod string

const (
	PayoutMobileMoney PayoutMethod = "mobile_money"
	PayoutBank        PayoutMethod = "bank"
)

// PayoutDestination is where a user's withdrawals are sent.
type PayoutDestination struct {
	Method        PayoutMethod `json:"method" dynamodbav:"method"`
	AccountNumber string       `json:"account_number" dynamodbav:"account_number"`
	ProviderCode  string       `json:"provider_code" dynamodbav:"provider_code"`
	AccountName   string       `json:"account_name" dynamodbav:"account_name"`
	Currency      string       `json:"currency" dynamodbav:"currency"`
}

// Account holds a user's available balance and payout details.
type Account struct {
	UserId               string             `json:"user_id" dynamodbav:"user_id"`
	AvailableBalance     int64              `json:"available_balance" dynamodbav:"available_balance"`
	PayoutDestination    *PayoutDestination `json:"payout_destination,omitempty" dynamodbav:"payout_destination,omitempty"`
	RecipientRef         string             `json:"-" dynamodbav:"recipient_ref,omitempty"`
	RecipientFingerprint string             `json:"-" dynamodbav:"recipient_fingerprint,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}

// PlatformAccountId is the reserved accounts row holding platform-wide counters.
const PlatformAccountId = "__platform__"

// PlatformStats are the platform-wide counters kept on the reserved accounts row.
type PlatformStats struct {
	TotalPlatformFees int64 `json:"total_platform_fees" dynamodbav:"total_platform_fees"`
	SettledPayments   int64 `json:"settled_payments" dynamodbav:"settled_payments"`
}

// ItemStatus defines the catalog states the engine reads and writes.
type ItemStatus string

const (
	ItemAvailable  ItemStatus = "available"
	ItemPaidEscrow ItemStatus = "paid_escrow"
	ItemSold       ItemStatus = "sold"
)

// ListingStatus is the status of an item that is not held in escrow.
func ListingStatus(quantity int) ItemStatus {
	if quantity > 0 {
		return ItemAvailable
	}
	return ItemSold
}

// Item is the slice of a catalog listing the engine depends on.
type Item struct {
	Id       string     `json:"id" dynamodbav:"id"`
	SellerId string     `json:"seller_id" dynamodbav:"seller_id"`
	Title    string     `json:"title" dynamodbav:"title"`
	Price    int64      `json:"price" dynamodbav:"price"`
	Currency string     `json:"currency" dynamodbav:"currency"`
	Status   ItemStatus `json:"status" dynamodbav:"status"`
	Quantity int        `json:"quantity" dynamodbav:"quantity"`
}

// RoleAdmin is the identity role allowed to adjudicate disputes.
const RoleAdmin = "admin"

// Identity is the authenticated caller as supplied by the identity provider.
type Identity struct {
	UserId      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
