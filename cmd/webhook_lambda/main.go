package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/escrow-settlement/pkg/config"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers/webhooks"
)

var handler *webhooks.WebhooksHandler

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	// Initialize dependencies once per container.
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

	// Notifications go to the queue; the notification lambda pushes them to sockets.
	notifier := cfg.QueueNotifier(awsCfg)
	if notifier == nil {
		slog.Warn("NOTIFICATIONS_QUEUE_URL not set, notifications are dropped")
	}

	engine := escrow.New(cfg.Storage(awsCfg), calc, cfg.Gateways(), notifier, cfg.Escrow())
	handler = webhooks.NewWebhooksHandler(engine)
}

func main() {
	lambda.Start(handler.HandleLambda)
}
