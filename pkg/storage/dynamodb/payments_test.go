package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
	"github.com/chris/escrow-settlement/pkg/storage/dynamodb/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testTables = Tables{
	Payments:    "payments",
	Earnings:    "earnings",
	Withdrawals: "withdrawals",
	Disputes:    "disputes",
	Accounts:    "accounts",
	Items:       "items",
	Connections: "connections",
}

// cancelled builds the error DynamoDB returns when a transaction condition fails.
func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

func testPayment(status models.PaymentStatus) *models.Payment {
	return &models.Payment{
		Id:               uuid.New().String(),
		BuyerId:          "buyer",
		SellerId:         "seller",
		ItemId:           "item-1",
		GrossAmount:      100000,
		Currency:         "KES",
		Status:           status,
		GatewayName:      "paystack",
		GatewayReference: "ref-1",
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func TestCreatePayment(t *testing.T) {
	payment := testPayment(models.PaymentInitiated)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return *in.TableName == "payments" && *in.ConditionExpression == "attribute_not_exists(id)"
		})).Return(&dynamodb.PutItemOutput{}, nil)

		err := store.CreatePayment(context.Background(), payment)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := store.CreatePayment(context.Background(), payment)

		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		mockClient.AssertExpectations(t)
	})

	t.Run("PutItem Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("put failed"))

		err := store.CreatePayment(context.Background(), payment)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create payment in DynamoDB")
		mockClient.AssertExpectations(t)
	})
}

func TestGetPayment(t *testing.T) {
	payment := testPayment(models.PaymentEscrow)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)

		result, err := store.GetPayment(context.Background(), payment.Id)

		require.NoError(t, err)
		assert.Equal(t, payment.Id, result.Id)
		assert.Equal(t, models.PaymentEscrow, result.Status)
		assert.Nil(t, result.PlatformFeeCharged)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: nil}, nil)

		_, err := store.GetPayment(context.Background(), "missing")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestGetPaymentByReference(t *testing.T) {
	payment := testPayment(models.PaymentInitiated)
	paymentAV, _ := attributevalue.MarshalMap(payment)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == gatewayReferenceIndex
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{paymentAV}}, nil)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)

		result, err := store.GetPaymentByReference(context.Background(), "paystack", "ref-1")

		require.NoError(t, err)
		assert.Equal(t, payment.Id, result.Id)
		mockClient.AssertExpectations(t)
	})

	t.Run("Unknown Reference", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)

		mockClient.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

		_, err := store.GetPaymentByReference(context.Background(), "paystack", "nope")

		assert.ErrorIs(t, err, storage.ErrNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestEscrowPayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentInitiated)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 2 && *in.TransactItems[1].Update.TableName == "items"
		})).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.EscrowPayment(context.Background(), payment.Id, "success")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Already Escrowed", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentEscrow)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)

		err := store.EscrowPayment(context.Background(), payment.Id, "success")

		assert.ErrorIs(t, err, storage.ErrStatusConflict)
		mockClient.AssertExpectations(t)
	})

	t.Run("Lost Race", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentInitiated)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, cancelled(conditionalCheckFailed, "None"))

		err := store.EscrowPayment(context.Background(), payment.Id, "success")

		assert.ErrorIs(t, err, storage.ErrStatusConflict)
		mockClient.AssertExpectations(t)
	})
}

func TestFailPayment(t *testing.T) {
	escrowed := func(mockClient *mocks.DynamoDBAPI, payment *models.Payment, quantity int) {
		paymentAV, _ := attributevalue.MarshalMap(payment)
		itemAV, _ := attributevalue.MarshalMap(models.Item{
			Id: payment.ItemId, SellerId: payment.SellerId, Status: models.ItemPaidEscrow, Quantity: quantity,
		})
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == testTables.Payments
		})).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == testTables.Items
		})).Once().Return(&dynamodb.GetItemOutput{Item: itemAV}, nil)
	}
	itemStatus := func(in *dynamodb.TransactWriteItemsInput) string {
		if len(in.TransactItems) != 2 {
			return ""
		}
		av, ok := in.TransactItems[1].Update.ExpressionAttributeValues[":item_status"].(*types.AttributeValueMemberS)
		if !ok {
			return ""
		}
		return av.Value
	}

	t.Run("From Escrow Releases Item", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentEscrow)

		escrowed(mockClient, payment, 2)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return itemStatus(in) == string(models.ItemAvailable)
		})).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.FailPayment(context.Background(), payment.Id,
			[]models.PaymentStatus{models.PaymentInitiated, models.PaymentEscrow}, "reversed", "chargeback")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("From Escrow Keeps Sold Out Item Sold", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentEscrow)

		escrowed(mockClient, payment, 0)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return itemStatus(in) == string(models.ItemSold)
		})).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.FailPayment(context.Background(), payment.Id,
			[]models.PaymentStatus{models.PaymentEscrow}, "reversed", "chargeback")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Item Changed Concurrently", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentEscrow)

		escrowed(mockClient, payment, 1)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Once().Return(nil, cancelled("None", conditionalCheckFailed))

		err := store.FailPayment(context.Background(), payment.Id,
			[]models.PaymentStatus{models.PaymentEscrow}, "reversed", "chargeback")

		assert.ErrorIs(t, err, storage.ErrConcurrentUpdate)
		mockClient.AssertExpectations(t)
	})

	t.Run("From Initiated", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentInitiated)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			return len(in.TransactItems) == 1
		})).Once().Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		err := store.FailPayment(context.Background(), payment.Id,
			[]models.PaymentStatus{models.PaymentInitiated}, "failed", "card declined")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Terminal Payment", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := New(mockClient, testTables)
		payment := testPayment(models.PaymentReleased)

		paymentAV, _ := attributevalue.MarshalMap(payment)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Once().Return(&dynamodb.GetItemOutput{Item: paymentAV}, nil)

		err := store.FailPayment(context.Background(), payment.Id,
			[]models.PaymentStatus{models.PaymentInitiated, models.PaymentEscrow}, "failed", "")

		assert.ErrorIs(t, err, storage.ErrStatusConflict)
		mockClient.AssertExpectations(t)
	})
}
