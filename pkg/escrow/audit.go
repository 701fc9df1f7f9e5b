package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/escrow-settlement/pkg/models"
)

// Discrepancy is an account whose stored balance disagrees with its ledger.
type Discrepancy struct {
	UserID string `json:"user_id"`
	// Balance is the stored available balance.
	Balance int64 `json:"balance"`
	// Expected is the sum of the user's available earnings.
	Expected int64 `json:"expected"`
}

// Drift is how far the stored balance is off.
func (d Discrepancy) Drift() int64 { return d.Balance - d.Expected }

// AuditReport summarizes one reconciliation run.
type AuditReport struct {
	StuckWithdrawals int           `json:"stuck_withdrawals"`
	Redispatched     int           `json:"redispatched"`
	Released         int           `json:"released"`
	Compensated      int           `json:"compensated"`
	StillPending     int           `json:"still_pending"`
	Discrepancies    []Discrepancy `json:"discrepancies"`
}

// Auditor is the periodic reconciliation job. It finishes withdrawals that never
// reached the gateway and checks every balance against the ledger. Drift is reported
// for manual review and never corrected automatically.
type Auditor struct {
	engine   *Engine
	stuckAge time.Duration
}

// NewAuditor creates an Auditor that re-dispatches withdrawals left pending for longer than stuckAge.
func NewAuditor(engine *Engine, stuckAge time.Duration) *Auditor {
	return &Auditor{engine: engine, stuckAge: stuckAge}
}

// Run performs one reconciliation pass.
func (a *Auditor) Run(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{}
	if err := a.redispatchStuck(ctx, report); err != nil {
		return nil, err
	}
	discrepancies, err := a.engine.AuditBalances(ctx)
	if err != nil {
		return nil, err
	}
	report.Discrepancies = discrepancies

	slog.Info("Reconciliation finished",
		"stuck", report.StuckWithdrawals,
		"released", report.Released,
		"compensated", report.Compensated,
		"still_pending", report.StillPending,
		"discrepancies", len(report.Discrepancies),
	)
	return report, nil
}

func (a *Auditor) redispatchStuck(ctx context.Context, report *AuditReport) error {
	e := a.engine
	stuck, err := e.store.GetStuckWithdrawals(ctx, a.stuckAge)
	if err != nil {
		return fmt.Errorf("failed to list stuck withdrawals: %w", err)
	}
	report.StuckWithdrawals = len(stuck)
	if len(stuck) > 0 && e.gateways.Payout == nil {
		slog.Warn("Stuck withdrawals found but no payout gateway is configured", "count", len(stuck))
		report.StillPending = len(stuck)
		return nil
	}

	for i := range stuck {
		w := &stuck[i]
		slog.Info("Re-dispatching stuck withdrawal", "withdrawal_id", w.Id, "requested_at", w.RequestedAt)
		report.Redispatched++

		// Same reference as the first attempt, so the gateway never pays twice.
		updated, err := e.dispatch(ctx, w, false)
		if err != nil {
			if !errors.Is(err, ErrGateway) {
				return err
			}
			current, gerr := e.store.GetWithdrawal(ctx, w.Id)
			if gerr == nil && current.Status == models.WithdrawalFailed {
				report.Compensated++
			} else {
				report.StillPending++
			}
			continue
		}
		if updated.Status == models.WithdrawalReleased {
			report.Released++
		} else {
			report.StillPending++
		}
	}
	return nil
}

// AuditBalances compares every account's stored balance with the sum of its available
// earnings. Mismatches are logged and returned, never corrected.
func (e *Engine) AuditBalances(ctx context.Context) ([]Discrepancy, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var discrepancies []Discrepancy
	for _, account := range accounts {
		earnings, err := e.store.ListEarningsByUser(ctx, account.UserId)
		if err != nil {
			return nil, fmt.Errorf("failed to list earnings for %s: %w", account.UserId, err)
		}
		var expected int64
		for _, earning := range earnings {
			if earning.Status == models.EarningAvailable {
				expected += earning.Amount
			}
		}
		if expected != account.AvailableBalance {
			d := Discrepancy{UserID: account.UserId, Balance: account.AvailableBalance, Expected: expected}
			slog.Error("Balance does not match ledger", "user_id", d.UserID, "balance", d.Balance, "expected", d.Expected, "drift", d.Drift())
			discrepancies = append(discrepancies, d)
		}
	}
	return discrepancies, nil
}
