package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// OpenDispute atomically creates a dispute record and freezes its payment.
func (s *Store) OpenDispute(ctx context.Context, dispute *models.DisputeRecord, allowedFrom []models.PaymentStatus) error {
	if len(allowedFrom) == 0 {
		return errEmptyStatusSet
	}

	disputeAV, err := attributevalue.MarshalMap(dispute)
	if err != nil {
		return fmt.Errorf("failed to marshal dispute: %w", err)
	}
	nowAV, err := timestamp(dispute.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	values := map[string]types.AttributeValue{
		":disputed":   str(string(models.PaymentDisputed)),
		":dispute_id": str(dispute.Id),
		":now":        nowAV,
	}
	condition := "#status IN " + inList("from", statusStrings(allowedFrom), values) + " AND attribute_not_exists(active_dispute_id)"

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				// Operation 1: Create the dispute record.
				Put: &types.Put{
					TableName:           aws.String(s.Tables.Disputes),
					Item:                disputeAV,
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
			{
				// Operation 2: Freeze the payment.
				Update: &types.Update{
					TableName:           aws.String(s.Tables.Payments),
					Key:                 map[string]types.AttributeValue{"id": str(dispute.PaymentId)},
					UpdateExpression:    aws.String("SET #status = :disputed, active_dispute_id = :dispute_id, updated_at = :now"),
					ConditionExpression: aws.String(condition),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: values,
				},
			},
		},
	}

	if _, err := s.Client.TransactWriteItems(ctx, input); err != nil {
		if failed := failedConditions(err); len(failed) > 0 {
			if failed[0] == 0 {
				return storage.ErrAlreadyExists
			}
			return storage.ErrStatusConflict
		}
		return fmt.Errorf("failed to execute dispute transaction: %w", err)
	}
	return nil
}

// GetDispute retrieves a dispute from DynamoDB by its ID.
func (s *Store) GetDispute(ctx context.Context, disputeID string) (*models.DisputeRecord, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Disputes),
		Key:            map[string]types.AttributeValue{"id": str(disputeID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dispute from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("dispute with ID %s: %w", disputeID, storage.ErrNotFound)
	}

	var dispute models.DisputeRecord
	if err := attributevalue.UnmarshalMap(result.Item, &dispute); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dispute: %w", err)
	}
	return &dispute, nil
}
