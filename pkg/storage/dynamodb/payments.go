package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// CreatePayment stores a new payment record.
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	slog.Log(ctx, slog.LevelDebug, "creating payment", "payment", payment.Id)

	item, err := attributevalue.MarshalMap(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Payments),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create payment in DynamoDB: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment from DynamoDB by its ID.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Payments),
		Key:            map[string]types.AttributeValue{"id": str(paymentID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
	}

	var payment models.Payment
	if err := attributevalue.UnmarshalMap(result.Item, &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	return &payment, nil
}

// GetPaymentByReference looks a payment up through the gateway reference index.
// The index is eventually consistent, so the hit is re-read from the base table.
func (s *Store) GetPaymentByReference(ctx context.Context, gatewayName, reference string) (*models.Payment, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Payments),
		IndexName:              aws.String(gatewayReferenceIndex),
		KeyConditionExpression: aws.String("gateway_reference = :ref"),
		FilterExpression:       aws.String("gateway_name = :gateway"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref":     str(reference),
			":gateway": str(gatewayName),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query payment by reference: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("payment with reference %s: %w", reference, storage.ErrNotFound)
	}

	var hit models.Payment
	if err := attributevalue.UnmarshalMap(result.Items[0], &hit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	return s.GetPayment(ctx, hit.Id)
}

// AttachCheckout stores the gateway checkout details on a payment.
func (s *Store) AttachCheckout(ctx context.Context, paymentID, checkoutID, checkoutURL string) error {
	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Payments),
		Key:                 map[string]types.AttributeValue{"id": str(paymentID)},
		UpdateExpression:    aws.String("SET checkout_id = :checkout_id, checkout_url = :checkout_url, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":checkout_id":  str(checkoutID),
			":checkout_url": str(checkoutURL),
			":now":          nowAV,
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to attach checkout: %w", err)
	}
	return nil
}

// EscrowPayment atomically moves a payment from initiated to escrow and marks the item paid_escrow.
func (s *Store) EscrowPayment(ctx context.Context, paymentID, gatewayStatus string) error {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentInitiated {
		return storage.ErrStatusConflict
	}

	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				// Operation 1: Move the payment into escrow.
				Update: &types.Update{
					TableName:           aws.String(s.Tables.Payments),
					Key:                 map[string]types.AttributeValue{"id": str(paymentID)},
					UpdateExpression:    aws.String("SET #status = :escrow, gateway_status = :gateway_status, updated_at = :now"),
					ConditionExpression: aws.String("#status = :initiated"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":escrow":         str(string(models.PaymentEscrow)),
						":initiated":      str(string(models.PaymentInitiated)),
						":gateway_status": str(gatewayStatus),
						":now":            nowAV,
					},
				},
			},
			{
				// Operation 2: Mark the item as paid into escrow.
				Update: &types.Update{
					TableName:           aws.String(s.Tables.Items),
					Key:                 map[string]types.AttributeValue{"id": str(payment.ItemId)},
					UpdateExpression:    aws.String("SET #status = :paid_escrow"),
					ConditionExpression: aws.String("attribute_exists(id)"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":paid_escrow": str(string(models.ItemPaidEscrow)),
					},
				},
			},
		},
	}

	if _, err := s.Client.TransactWriteItems(ctx, input); err != nil {
		failed := failedConditions(err)
		if len(failed) > 0 && failed[0] == 0 {
			return storage.ErrStatusConflict
		}
		if len(failed) > 0 {
			return fmt.Errorf("item %s for payment %s: %w", payment.ItemId, paymentID, storage.ErrNotFound)
		}
		return fmt.Errorf("failed to execute escrow transaction: %w", err)
	}
	return nil
}

// FailPayment atomically moves a payment to failed from its current state, which must be one of from.
func (s *Store) FailPayment(ctx context.Context, paymentID string, from []models.PaymentStatus, gatewayStatus, reason string) error {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if !containsStatus(from, payment.Status) {
		return storage.ErrStatusConflict
	}

	nowAV, err := timestamp(time.Now())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	// The observed status is the compare-and-swap guard; it also decides whether
	// the item has to be returned to the catalog.
	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Payments),
				Key:                 map[string]types.AttributeValue{"id": str(paymentID)},
				UpdateExpression:    aws.String("SET #status = :failed, gateway_status = :gateway_status, failure_reason = :reason, updated_at = :now"),
				ConditionExpression: aws.String("#status = :observed"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":failed":         str(string(models.PaymentFailed)),
					":observed":       str(string(payment.Status)),
					":gateway_status": str(gatewayStatus),
					":reason":         str(reason),
					":now":            nowAV,
				},
			},
		},
	}
	if payment.Status == models.PaymentEscrow {
		// An item with no stock left goes back to sold, not on sale. The quantity
		// read here guards the write.
		item, err := s.GetItem(ctx, payment.ItemId)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Items),
				Key:                 map[string]types.AttributeValue{"id": str(payment.ItemId)},
				UpdateExpression:    aws.String("SET #status = :item_status"),
				ConditionExpression: aws.String("quantity = :quantity"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":item_status": str(string(models.ListingStatus(item.Quantity))),
					":quantity":    num(int64(item.Quantity)),
				},
			},
		})
	}

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		failed := failedConditions(err)
		if len(failed) > 0 && failed[0] == 0 {
			return storage.ErrStatusConflict
		}
		if len(failed) > 0 {
			return fmt.Errorf("item %s for payment %s: %w", payment.ItemId, paymentID, storage.ErrConcurrentUpdate)
		}
		return fmt.Errorf("failed to execute payment failure transaction: %w", err)
	}
	return nil
}

func containsStatus(statuses []models.PaymentStatus, s models.PaymentStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func statusStrings(statuses []models.PaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var errEmptyStatusSet = errors.New("empty status set")
