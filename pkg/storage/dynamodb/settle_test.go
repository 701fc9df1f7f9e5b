package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
	"github.com/chris/escrow-settlement/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func releaseSettlement() storage.Settlement {
	fee := int64(10000)
	return storage.Settlement{
		PaymentID:   "payment-1",
		FromStatus:  models.PaymentEscrow,
		ToStatus:    models.PaymentReleased,
		PlatformFee: &fee,
		Earning: &models.Earning{
			Id:               "earning-1",
			UserId:           "seller",
			Amount:           90000,
			Kind:             models.EarningSale,
			RelatedPaymentId: "payment-1",
			RelatedItemId:    "item-1",
			Status:           models.EarningAvailable,
			CreatedAt:        time.Now(),
		},
		ItemID:               "item-1",
		ExpectedItemQuantity: 1,
		ItemQuantity:         0,
		ItemStatus:           models.ItemSold,
	}
}

func TestSettle(t *testing.T) {
	t.Run("Release Writes Five Items", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			if len(in.TransactItems) != 5 || in.TransactItems[1].Put == nil {
				return false
			}
			payment := in.TransactItems[0].Update
			platformKey, ok := in.TransactItems[4].Update.Key["user_id"].(*types.AttributeValueMemberS)
			return ok && platformKey.Value == models.PlatformAccountId &&
				*payment.ConditionExpression == "#status = :from AND attribute_not_exists(active_dispute_id) AND attribute_not_exists(platform_fee_charged)"
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.Settle(context.Background(), releaseSettlement())

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Dispute Resolution Adds Dispute Update", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		st := releaseSettlement()
		st.FromStatus = models.PaymentDisputed
		st.ToStatus = models.PaymentRefunded
		st.PlatformFee = nil
		st.DisputeID = "dispute-1"
		st.Outcome = models.OutcomeRefund
		st.Earning.UserId = "buyer"
		st.Earning.Kind = models.EarningRefund
		st.ItemQuantity = 1
		st.ItemStatus = models.ItemAvailable

		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 5 && *in.TransactItems[4].Update.TableName == "disputes"
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.Settle(context.Background(), st)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Payment Condition Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).
			Return(nil, cancelled(conditionalCheckFailed, "None", "None", "None", "None"))

		err := store.Settle(context.Background(), releaseSettlement())

		assert.ErrorIs(t, err, storage.ErrStatusConflict)
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate Earning", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).
			Return(nil, cancelled("None", conditionalCheckFailed, "None", "None", "None"))

		err := store.Settle(context.Background(), releaseSettlement())

		assert.ErrorIs(t, err, storage.ErrStatusConflict)
		mockClient.AssertExpectations(t)
	})

	t.Run("Item Changed Underneath", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).
			Return(nil, cancelled("None", "None", "None", conditionalCheckFailed, "None"))

		err := store.Settle(context.Background(), releaseSettlement())

		assert.ErrorIs(t, err, storage.ErrConcurrentUpdate)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transaction Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := store.Settle(context.Background(), releaseSettlement())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute settlement transaction")
		mockClient.AssertExpectations(t)
	})

	t.Run("Missing Earning", func(t *testing.T) {
		store := New(new(mocks.DynamoDBAPI), testTables)

		st := releaseSettlement()
		st.Earning = nil

		err := store.Settle(context.Background(), st)

		assert.Error(t, err)
	})
}
