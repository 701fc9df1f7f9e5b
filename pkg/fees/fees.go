// Package fees computes the platform fee taken from a settled payment.
package fees

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for a non-positive gross amount.
var ErrInvalidAmount = errors.New("gross amount must be positive")

var hundred = decimal.NewFromInt(100)

// Rule is one fee tier. A gross amount matches when MinAmount <= gross <= MaxAmount;
// a nil MaxAmount has no upper bound. Amounts are in minor units.
type Rule struct {
	ID          string
	MinAmount   int64
	MaxAmount   *int64
	RatePercent decimal.Decimal
	Priority    int
	Active      bool
}

func (r Rule) matches(gross int64) bool {
	if gross < r.MinAmount {
		return false
	}
	return r.MaxAmount == nil || gross <= *r.MaxAmount
}

// Quote is the result of a fee calculation.
type Quote struct {
	Fee                int64           `json:"fee"`
	NetAmount          int64           `json:"net_amount"`
	AppliedRatePercent decimal.Decimal `json:"applied_rate_percent"`
	AppliedRuleID      *string         `json:"applied_rule_id"`
}

// Calculator maps a gross amount to a fee and net amount.
// It holds no mutable state, so one value can be shared by every request.
type Calculator struct {
	rules       []Rule
	defaultRate decimal.Decimal
}

// NewCalculator keeps the active rules ordered by descending priority.
func NewCalculator(rules []Rule, defaultRate decimal.Decimal) (*Calculator, error) {
	if defaultRate.IsNegative() || defaultRate.GreaterThan(hundred) {
		return nil, fmt.Errorf("default fee rate %s out of range", defaultRate)
	}

	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if r.RatePercent.IsNegative() || r.RatePercent.GreaterThan(hundred) {
			return nil, fmt.Errorf("fee rule %s: rate %s out of range", r.ID, r.RatePercent)
		}
		if r.MaxAmount != nil && *r.MaxAmount < r.MinAmount {
			return nil, fmt.Errorf("fee rule %s: max amount below min amount", r.ID)
		}
		active = append(active, r)
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	return &Calculator{rules: active, defaultRate: defaultRate}, nil
}

// Calculate picks the first matching rule, or the default rate, and rounds the
// fee half-up to a whole minor unit.
func (c *Calculator) Calculate(gross int64) (Quote, error) {
	if gross <= 0 {
		return Quote{}, ErrInvalidAmount
	}

	rate := c.defaultRate
	var ruleID *string
	for _, r := range c.rules {
		if r.matches(gross) {
			id := r.ID
			rate = r.RatePercent
			ruleID = &id
			break
		}
	}

	// Round is half away from zero, which is half-up for a positive amount.
	fee := decimal.NewFromInt(gross).Mul(rate).Div(hundred).Round(0).IntPart()

	return Quote{
		Fee:                fee,
		NetAmount:          gross - fee,
		AppliedRatePercent: rate,
		AppliedRuleID:      ruleID,
	}, nil
}
