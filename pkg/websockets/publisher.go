package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/chris/escrow-settlement/pkg/notify"
)

// Publisher pushes notifications to a user's API Gateway WebSocket connections.
type Publisher struct {
	connManager ConnectionManager
	client      ConnectionPoster
}

// Make sure we conform to the interface
var _ notify.Notifier = (*Publisher)(nil)

// NewPublisher creates a Publisher posting through the given management API endpoint.
func NewPublisher(cfg aws.Config, connManager ConnectionManager, apiEndpoint string) *Publisher {
	client := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(apiEndpoint)
	})
	return NewPublisherWithClient(client, connManager)
}

// NewPublisherWithClient creates a Publisher around an existing client.
func NewPublisherWithClient(client ConnectionPoster, connManager ConnectionManager) *Publisher {
	return &Publisher{connManager: connManager, client: client}
}

// Notify sends the notification to every open connection of its user.
// Stale connections are removed; other post failures are logged.
func (p *Publisher) Notify(ctx context.Context, n notify.Notification) error {
	connectionIDs, err := p.connManager.GetConnectionsByUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to get connections for user %s: %w", n.UserID, err)
	}

	payload, err := json.Marshal(NewMessage(n))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	for _, connectionID := range connectionIDs {
		_, err := p.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         payload,
		})

		if err != nil {
			var goneErr *apigwtypes.GoneException
			if errors.As(err, &goneErr) {
				slog.Info("stale connection found, deleting", "connectionId", connectionID)
				if err := p.connManager.RemoveConnection(ctx, connectionID); err != nil {
					slog.Error("failed to delete stale connection", "error", err)
				}
			} else {
				slog.Error("failed to post to connection", "connectionId", connectionID, "error", err)
			}
		}
	}

	return nil
}
