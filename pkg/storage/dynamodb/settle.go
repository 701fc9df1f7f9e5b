package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// Settle performs the final atomic settlement of a payment.
// The payment status update, earning, balance credit, item update, platform counter
// and dispute resolution are one TransactWriteItems call, so a partial settlement
// can never be observed.
func (s *Store) Settle(ctx context.Context, st storage.Settlement) error {
	if st.Earning == nil {
		return errors.New("settlement requires an earning")
	}

	now := time.Now()
	nowAV, err := timestamp(now)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp for settlement: %w", err)
	}
	earningAV, err := attributevalue.MarshalMap(st.Earning)
	if err != nil {
		return fmt.Errorf("failed to marshal earning: %w", err)
	}

	// Operation 1: Move the payment to its settled state.
	paymentSet := "SET #status = :to, updated_at = :now"
	paymentValues := map[string]types.AttributeValue{
		":to":   str(string(st.ToStatus)),
		":from": str(string(st.FromStatus)),
		":now":  nowAV,
	}
	if st.PlatformFee != nil {
		paymentSet += ", platform_fee_charged = :fee"
		paymentValues[":fee"] = num(*st.PlatformFee)
	}
	paymentCondition := "#status = :from AND attribute_not_exists(active_dispute_id)"
	if st.DisputeID != "" {
		paymentSet += " REMOVE active_dispute_id"
		paymentCondition = "#status = :from AND active_dispute_id = :dispute_id"
		paymentValues[":dispute_id"] = str(st.DisputeID)
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Payments),
				Key:                 map[string]types.AttributeValue{"id": str(st.PaymentID)},
				UpdateExpression:    aws.String(paymentSet),
				ConditionExpression: aws.String(paymentCondition + " AND attribute_not_exists(platform_fee_charged)"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: paymentValues,
			},
		},
		{
			// Operation 2: Create the earning. Its ID is derived from the payment ID,
			// so a second earning for the same payment fails the condition.
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Earnings),
				Item:                earningAV,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
		{
			// Operation 3: Credit the beneficiary's balance.
			Update: &types.Update{
				TableName:        aws.String(s.Tables.Accounts),
				Key:              map[string]types.AttributeValue{"user_id": str(st.Earning.UserId)},
				UpdateExpression: aws.String("SET updated_at = :now ADD available_balance :amount"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount": num(st.Earning.Amount),
					":now":    nowAV,
				},
			},
		},
	}

	// Operation 4: Update the item, guarded by the quantity that was read.
	itemIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(s.Tables.Items),
			Key:                 map[string]types.AttributeValue{"id": str(st.ItemID)},
			UpdateExpression:    aws.String("SET #status = :item_status, quantity = :quantity"),
			ConditionExpression: aws.String("quantity = :expected_quantity"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":item_status":       str(string(st.ItemStatus)),
				":quantity":          num(int64(st.ItemQuantity)),
				":expected_quantity": num(int64(st.ExpectedItemQuantity)),
			},
		},
	})

	if st.PlatformFee != nil {
		// Operation 5: Increment the platform counters.
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:        aws.String(s.Tables.Accounts),
				Key:              map[string]types.AttributeValue{"user_id": str(models.PlatformAccountId)},
				UpdateExpression: aws.String("SET updated_at = :now ADD total_platform_fees :fee, settled_payments :one"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":fee": num(*st.PlatformFee),
					":one": num(1),
					":now": nowAV,
				},
			},
		})
	}

	if st.DisputeID != "" {
		// Operation 6: Resolve the dispute.
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Disputes),
				Key:                 map[string]types.AttributeValue{"id": str(st.DisputeID)},
				UpdateExpression:    aws.String("SET #status = :resolved, outcome = :outcome, resolution_note = :note, updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(id) AND #status <> :resolved"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":resolved": str(string(models.DisputeResolved)),
					":outcome":  str(string(st.Outcome)),
					":note":     str(st.ResolutionNote),
					":now":      nowAV,
				},
			},
		})
	}

	if _, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		failed := failedConditions(err)
		for _, i := range failed {
			if i != itemIndex {
				return storage.ErrStatusConflict
			}
		}
		if len(failed) > 0 {
			return storage.ErrConcurrentUpdate
		}
		return fmt.Errorf("failed to execute settlement transaction: %w", err)
	}

	return nil
}
