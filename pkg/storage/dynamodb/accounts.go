package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// GetAccount retrieves a user's account from DynamoDB by their user ID.
func (s *Store) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Accounts),
		Key:            map[string]types.AttributeValue{"user_id": str(userID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("account for user ID %s: %w", userID, storage.ErrNotFound)
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// ListAccounts retrieves all user accounts, following scan pagination.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.Tables.Accounts),
		FilterExpression: aws.String("user_id <> :platform"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":platform": str(models.PlatformAccountId),
		},
	}
	for {
		result, err := s.Client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accounts table: %w", err)
		}
		var page []models.Account
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		accounts = append(accounts, page...)
		if len(result.LastEvaluatedKey) == 0 {
			return accounts, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// SetPayoutDestination stores a payout destination, creating the account row if needed.
// A changed destination no longer matches the cached recipient fingerprint.
func (s *Store) SetPayoutDestination(ctx context.Context, userID string, dest models.PayoutDestination) error {
	destAV, err := attributevalue.Marshal(dest)
	if err != nil {
		return fmt.Errorf("failed to marshal payout destination: %w", err)
	}
	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.Tables.Accounts),
		Key:              map[string]types.AttributeValue{"user_id": str(userID)},
		UpdateExpression: aws.String("SET payout_destination = :dest, available_balance = if_not_exists(available_balance, :zero), updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":dest": destAV,
			":zero": num(0),
			":now":  nowAV,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set payout destination: %w", err)
	}
	return nil
}

// SaveRecipient caches a verified gateway recipient on the account.
func (s *Store) SaveRecipient(ctx context.Context, userID, recipientRef, fingerprint string) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Accounts),
		Key:                 map[string]types.AttributeValue{"user_id": str(userID)},
		UpdateExpression:    aws.String("SET recipient_ref = :ref, recipient_fingerprint = :fingerprint"),
		ConditionExpression: aws.String("attribute_exists(user_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref":         str(recipientRef),
			":fingerprint": str(fingerprint),
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("account for user ID %s: %w", userID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to save recipient: %w", err)
	}
	return nil
}

// ListEarningsByUser retrieves every earning for a user, oldest first.
func (s *Store) ListEarningsByUser(ctx context.Context, userID string) ([]models.Earning, error) {
	var earnings []models.Earning
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Earnings),
		IndexName:              aws.String(userIDIndex),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": str(userID),
		},
	}
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query earnings for user %s: %w", userID, err)
		}
		var page []models.Earning
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal earnings: %w", err)
		}
		earnings = append(earnings, page...)
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sort.Slice(earnings, func(i, j int) bool {
		return earnings[i].CreatedAt.Before(earnings[j].CreatedAt)
	})
	return earnings, nil
}

// GetPlatformStats reads the platform counters from the reserved accounts row.
func (s *Store) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Accounts),
		Key:       map[string]types.AttributeValue{"user_id": str(models.PlatformAccountId)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get platform stats from DynamoDB: %w", err)
	}

	var stats models.PlatformStats
	if result.Item == nil {
		return &stats, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platform stats: %w", err)
	}
	return &stats, nil
}
