package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/escrow-settlement/pkg/config"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/websockets"
)

var publisher notify.Notifier

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	if cfg.WebSocketAPIEndpoint == "" {
		slog.Error("WEBSOCKET_API_ENDPOINT environment variable not set")
		os.Exit(1)
	}

	awsCfg, err := cfg.AWS(context.Background())
	if err != nil {
		slog.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	publisher = websockets.NewPublisher(awsCfg, cfg.Storage(awsCfg), cfg.WebSocketAPIEndpoint)
}

// HandleRequest pushes queued notifications to the recipients' open WebSocket
// connections. Only malformed messages fail their record; delivery is best-effort.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		var n notify.Notification
		if err := json.Unmarshal([]byte(message.Body), &n); err != nil {
			slog.Error("failed to unmarshal notification", "message_id", message.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
			continue
		}

		if err := publisher.Notify(ctx, n); err != nil {
			slog.Warn("failed to push notification", "message_id", message.MessageId, "user_id", n.UserID, "type", n.Type, "error", err)
			continue
		}
		slog.Debug("Pushed notification", "message_id", message.MessageId, "user_id", n.UserID, "type", n.Type)
	}
	return resp, nil
}

func main() {
	lambda.Start(HandleRequest)
}
