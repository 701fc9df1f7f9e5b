// Package escrow is the payment and settlement engine: it takes a buyer's money
// into escrow, settles it to the seller (or back to the buyer) and pays balances
// out, reconciling every step against asynchronous gateway webhooks.
package escrow

import (
	"slices"
	"time"

	"github.com/chris/escrow-settlement/pkg/fees"
	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
	"github.com/google/uuid"
)

// maxEarningsPerWithdrawal keeps a withdrawal inside one DynamoDB transaction
// (100 items, minus the balance debit and the withdrawal record).
const maxEarningsPerWithdrawal = 98

// FeeCalculator maps a gross amount to the platform fee.
type FeeCalculator interface {
	Calculate(gross int64) (fees.Quote, error)
}

// Gateways are the external payment providers, keyed by gateway name.
type Gateways struct {
	Checkout map[string]gateway.CheckoutGateway
	Webhooks map[string]gateway.WebhookTranslator
	// Payout sends withdrawals. Withdrawals are refused when it is nil.
	Payout gateway.PayoutGateway
}

// Config holds the engine's policy knobs.
type Config struct {
	// MinimumWithdrawal is the smallest amount, in minor units, that can be withdrawn.
	MinimumWithdrawal int64
	// DisputableStatuses are the payment states a dispute may be filed from.
	DisputableStatuses []models.PaymentStatus
	// AdminUserIDs are notified of disputes and may resolve them.
	AdminUserIDs []string
	// PublicBaseURL is where gateways send buyers back after checkout.
	PublicBaseURL string
	// SettleAttempts bounds retries when an item changes under a settlement.
	SettleAttempts int
	// Currency is used when an item carries none.
	Currency string
}

func (c Config) withDefaults() Config {
	if len(c.DisputableStatuses) == 0 {
		c.DisputableStatuses = []models.PaymentStatus{models.PaymentEscrow}
	}
	if c.SettleAttempts <= 0 {
		c.SettleAttempts = 3
	}
	if c.Currency == "" {
		c.Currency = "NGN"
	}
	return c
}

// Engine implements every escrow operation. It holds no mutable state of its own;
// all coordination happens through conditional writes in the store.
type Engine struct {
	store    storage.LedgerStore
	fees     FeeCalculator
	gateways Gateways
	notifier notify.Notifier
	cfg      Config

	now   func() time.Time
	newID func() string
}

// New creates an Engine.
func New(store storage.LedgerStore, calc FeeCalculator, gateways Gateways, notifier notify.Notifier, cfg Config) *Engine {
	if notifier == nil {
		notifier = notify.NoOp{}
	}
	return &Engine{
		store:    store,
		fees:     calc,
		gateways: gateways,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (e *Engine) isAdmin(actor models.Identity) bool {
	return actor.IsAdmin() || slices.Contains(e.cfg.AdminUserIDs, actor.UserId)
}

// earningNamespace scopes the name-based earning ids.
var earningNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:escrow:earning"))

// earningID is derived from the payment id, so a payment can never produce two earnings.
func earningID(paymentID string) string {
	return uuid.NewSHA1(earningNamespace, []byte(paymentID)).String()
}
