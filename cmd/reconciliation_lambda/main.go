package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/escrow-settlement/pkg/config"
	"github.com/chris/escrow-settlement/pkg/escrow"
)

var auditor *escrow.Auditor

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	awsCfg, err := cfg.AWS(context.Background())
	if err != nil {
		slog.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	calc, err := cfg.FeeCalculator()
	if err != nil {
		slog.Error("failed to load fee rules", "error", err)
		os.Exit(1)
	}

	engine := escrow.New(cfg.Storage(awsCfg), calc, cfg.Gateways(), cfg.QueueNotifier(awsCfg), cfg.Escrow())
	auditor = escrow.NewAuditor(engine, cfg.StuckWithdrawalAge)
}

// HandleRequest is triggered by an EventBridge Schedule.
func HandleRequest(ctx context.Context) (*escrow.AuditReport, error) {
	slog.Info("Starting reconciliation run")

	report, err := auditor.Run(ctx)
	if err != nil {
		slog.Error("reconciliation run failed", "error", err)
		return nil, err
	}

	slog.Info("Reconciliation run finished",
		"stuck_withdrawals", report.StuckWithdrawals,
		"redispatched", report.Redispatched,
		"released", report.Released,
		"compensated", report.Compensated,
		"still_pending", report.StillPending,
		"discrepancies", len(report.Discrepancies),
	)
	return report, nil
}

func main() {
	lambda.Start(HandleRequest)
}
