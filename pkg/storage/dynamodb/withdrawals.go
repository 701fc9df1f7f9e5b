package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// GetWithdrawal retrieves a withdrawal from DynamoDB by its ID.
func (s *Store) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Withdrawals),
		Key:            map[string]types.AttributeValue{"id": str(withdrawalID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("withdrawal with ID %s: %w", withdrawalID, storage.ErrNotFound)
	}

	var w models.Withdrawal
	if err := attributevalue.UnmarshalMap(result.Item, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal withdrawal: %w", err)
	}
	return &w, nil
}

// ListWithdrawalsByUser retrieves all withdrawals for a user.
func (s *Store) ListWithdrawalsByUser(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Withdrawals),
		IndexName:              aws.String(userIDIndex),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": str(userID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals for user %s: %w", userID, err)
	}

	var withdrawals []models.Withdrawal
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal withdrawals: %w", err)
	}
	return withdrawals, nil
}

// GetStuckWithdrawals retrieves withdrawals that are still pending_gateway after maxAge.
func (s *Store) GetStuckWithdrawals(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	cutoffAV, err := timestamp(time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cutoff time: %w", err)
	}

	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Withdrawals),
		IndexName:              aws.String(stuckWithdrawalIndex),
		KeyConditionExpression: aws.String("#status = :status AND requested_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": str(string(models.WithdrawalPendingGateway)),
			":cutoff": cutoffAV,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query for stuck withdrawals: %w", err)
	}

	var withdrawals []models.Withdrawal
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stuck withdrawals: %w", err)
	}
	return withdrawals, nil
}

// CreateWithdrawal atomically debits the user's balance, creates the withdrawal record
// and reserves the earnings it covers.
func (s *Store) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	wAV, err := attributevalue.MarshalMap(w)
	if err != nil {
		return fmt.Errorf("failed to marshal withdrawal: %w", err)
	}
	nowAV, err := timestamp(w.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			// Operation 1: Debit the balance.
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Accounts),
				Key:                 map[string]types.AttributeValue{"user_id": str(w.UserId)},
				UpdateExpression:    aws.String("SET available_balance = available_balance - :amount, updated_at = :now"),
				ConditionExpression: aws.String("available_balance >= :amount"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount": num(w.Amount),
					":now":    nowAV,
				},
			},
		},
		{
			// Operation 2: Create the withdrawal record.
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Withdrawals),
				Item:                wAV,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}
	// Operations 3..n: Reserve each covered earning.
	for _, earningID := range w.EarningIds {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Earnings),
				Key:                 map[string]types.AttributeValue{"id": str(earningID)},
				UpdateExpression:    aws.String("SET #status = :pending, withdrawal_id = :withdrawal_id"),
				ConditionExpression: aws.String("#status = :available AND user_id = :user_id"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pending":       str(string(models.EarningWithdrawalPending)),
					":available":     str(string(models.EarningAvailable)),
					":withdrawal_id": str(w.Id),
					":user_id":       str(w.UserId),
				},
			},
		})
	}

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		failed := failedConditions(err)
		if len(failed) > 0 {
			switch failed[0] {
			case 0:
				return storage.ErrInsufficientFunds
			case 1:
				return storage.ErrAlreadyExists
			default:
				return storage.ErrConcurrentUpdate
			}
		}
		return fmt.Errorf("failed to execute withdrawal transaction: %w", err)
	}
	return nil
}

// MarkWithdrawalProcessing records that the gateway accepted the transfer.
func (s *Store) MarkWithdrawalProcessing(ctx context.Context, withdrawalID, transferRef string) error {
	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Withdrawals),
		Key:                 map[string]types.AttributeValue{"id": str(withdrawalID)},
		UpdateExpression:    aws.String("SET #status = :processing, gateway_transfer_ref = :ref, updated_at = :now"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": str(string(models.WithdrawalProcessing)),
			":pending":    str(string(models.WithdrawalPendingGateway)),
			":ref":        str(transferRef),
			":now":        nowAV,
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return storage.ErrStatusConflict
		}
		return fmt.Errorf("failed to mark withdrawal processing: %w", err)
	}
	return nil
}

// CompleteWithdrawal moves a withdrawal to released and its earnings to withdrawn.
func (s *Store) CompleteWithdrawal(ctx context.Context, withdrawalID, transferRef string) error {
	w, err := s.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if w.Status.IsTerminal() {
		return storage.ErrStatusConflict
	}
	if transferRef == "" {
		transferRef = w.GatewayTransferRef
	}

	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Withdrawals),
				Key:                 map[string]types.AttributeValue{"id": str(withdrawalID)},
				UpdateExpression:    aws.String("SET #status = :released, gateway_transfer_ref = :ref, updated_at = :now"),
				ConditionExpression: aws.String("#status IN (:pending, :processing)"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":released":   str(string(models.WithdrawalReleased)),
					":pending":    str(string(models.WithdrawalPendingGateway)),
					":processing": str(string(models.WithdrawalProcessing)),
					":ref":        str(transferRef),
					":now":        nowAV,
				},
			},
		},
	}
	items = append(items, s.earningTransitions(w, models.EarningWithdrawn, false)...)

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		if len(failedConditions(err)) > 0 {
			return storage.ErrStatusConflict
		}
		return fmt.Errorf("failed to execute withdrawal completion transaction: %w", err)
	}
	return nil
}

// FailWithdrawal is the compensating transaction for a debited withdrawal.
func (s *Store) FailWithdrawal(ctx context.Context, withdrawalID, reason string) error {
	w, err := s.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if w.Status.IsTerminal() {
		return storage.ErrStatusConflict
	}

	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			// Operation 1: Fail the withdrawal.
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Withdrawals),
				Key:                 map[string]types.AttributeValue{"id": str(withdrawalID)},
				UpdateExpression:    aws.String("SET #status = :failed, failure_reason = :reason, updated_at = :now"),
				ConditionExpression: aws.String("#status IN (:pending, :processing)"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":failed":     str(string(models.WithdrawalFailed)),
					":pending":    str(string(models.WithdrawalPendingGateway)),
					":processing": str(string(models.WithdrawalProcessing)),
					":reason":     str(reason),
					":now":        nowAV,
				},
			},
		},
		{
			// Operation 2: Restore the debited balance.
			Update: &types.Update{
				TableName:        aws.String(s.Tables.Accounts),
				Key:              map[string]types.AttributeValue{"user_id": str(w.UserId)},
				UpdateExpression: aws.String("SET updated_at = :now ADD available_balance :amount"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount": num(w.Amount),
					":now":    nowAV,
				},
			},
		},
	}
	// Operations 3..n: Return the earnings.
	items = append(items, s.earningTransitions(w, models.EarningAvailable, true)...)

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		if len(failedConditions(err)) > 0 {
			return storage.ErrStatusConflict
		}
		return fmt.Errorf("failed to execute withdrawal compensation transaction: %w", err)
	}
	return nil
}

// earningTransitions moves every earning reserved by w to the given status.
func (s *Store) earningTransitions(w *models.Withdrawal, to models.EarningStatus, release bool) []types.TransactWriteItem {
	expr := "SET #status = :to"
	if release {
		expr += " REMOVE withdrawal_id"
	}

	items := make([]types.TransactWriteItem, 0, len(w.EarningIds))
	for _, earningID := range w.EarningIds {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Earnings),
				Key:                 map[string]types.AttributeValue{"id": str(earningID)},
				UpdateExpression:    aws.String(expr),
				ConditionExpression: aws.String("withdrawal_id = :withdrawal_id"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":to":            str(string(to)),
					":withdrawal_id": str(w.Id),
				},
			},
		})
	}
	return items
}
