package escrow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/gateway/paystack"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var bankDestination = models.PayoutDestination{
	Method:        models.PayoutBank,
	AccountNumber: "0123456789",
	ProviderCode:  "058",
	AccountName:   "Ada Seller",
	Currency:      "NGN",
}

// fund gives the user an available earning and a matching balance, as a settlement would.
func (f *fixture) fund(userID string, amount int64, dest *models.PayoutDestination) {
	f.store.PutAccount(models.Account{UserId: userID, AvailableBalance: amount, PayoutDestination: dest})
	f.store.PutEarning(models.Earning{
		Id: "earning-" + userID, UserId: userID, Amount: amount, Currency: "NGN",
		Kind: models.EarningSale, Status: models.EarningAvailable, CreatedAt: time.Now().Add(-time.Hour),
	})
}

func (f *fixture) withdrawal(t *testing.T, userID string) models.Withdrawal {
	t.Helper()
	withdrawals, err := f.store.ListWithdrawalsByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	return withdrawals[0]
}

func (f *fixture) deliverPayout(t *testing.T, event, reference string) (WebhookResult, error) {
	t.Helper()
	body := webhookBody(t, event, reference, "TRF_1")
	return f.engine.HandlePayoutWebhook(context.Background(), paystack.Name, body, gateway.Sign([]byte(webhookSecret), body))
}

func TestSetPayoutDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, err := f.engine.SetPayoutDestination(ctx, seller, models.PayoutDestination{
		Method: models.PayoutMobileMoney, AccountNumber: " +254712345678 ", ProviderCode: "MPESA", AccountName: "Ada",
	})
	require.NoError(t, err)
	require.NotNil(t, account.PayoutDestination)
	assert.Equal(t, "+254712345678", account.PayoutDestination.AccountNumber)
	assert.Equal(t, "NGN", account.PayoutDestination.Currency)

	invalid := []models.PayoutDestination{
		{Method: "cheque", AccountNumber: "0123456789", ProviderCode: "058", AccountName: "Ada"},
		{Method: models.PayoutBank, AccountNumber: "12ab", ProviderCode: "058", AccountName: "Ada"},
		{Method: models.PayoutBank, AccountNumber: "0123456789", AccountName: "Ada"},
		{Method: models.PayoutBank, AccountNumber: "0123456789", ProviderCode: "058"},
	}
	for _, dest := range invalid {
		_, err := f.engine.SetPayoutDestination(ctx, seller, dest)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestInitiateWithdrawalReleasedByWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(seller.UserId, 90000, &bankDestination)
	f.payout.On("CreateRecipient", mock.Anything, mock.MatchedBy(func(req gateway.RecipientRequest) bool {
		return req.AccountNumber == "0123456789" && req.ProviderCode == "058"
	})).Return("RCP_1", nil).Once()
	f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).
		Return(&gateway.Transfer{TransferRef: "TRF_1", Status: "pending", Outcome: gateway.OutcomeOther}, nil).Once()

	w, err := f.engine.InitiateWithdrawal(ctx, seller)

	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalProcessing, w.Status)
	assert.Equal(t, int64(90000), w.Amount)
	assert.Equal(t, "RCP_1", w.GatewayRecipientRef)
	assert.Equal(t, "TRF_1", w.GatewayTransferRef)
	assert.Equal(t, int64(0), f.balance(t, seller.UserId))
	f.payout.AssertCalled(t, "InitiateTransfer", mock.Anything, mock.MatchedBy(func(req gateway.TransferRequest) bool {
		return req.Reference == w.Id && req.RecipientRef == "RCP_1" && req.Amount == 90000
	}))

	earnings, _ := f.store.ListEarningsByUser(ctx, seller.UserId)
	assert.Equal(t, models.EarningWithdrawalPending, earnings[0].Status)

	result, err := f.deliverPayout(t, "transfer.success", w.Id)
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, result)

	assert.Equal(t, models.WithdrawalReleased, f.withdrawal(t, seller.UserId).Status)
	earnings, _ = f.store.ListEarningsByUser(ctx, seller.UserId)
	assert.Equal(t, models.EarningWithdrawn, earnings[0].Status)
	f.notifier.AssertCalled(t, "Notify", mock.Anything, notified(seller.UserId, notify.TypeWithdrawalReleased))

	// Replays and late failures for a released withdrawal change nothing.
	for _, event := range []string{"transfer.success", "transfer.failed"} {
		result, err := f.deliverPayout(t, event, w.Id)
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, result)
	}
	assert.Equal(t, int64(0), f.balance(t, seller.UserId))

	_, err = f.engine.InitiateWithdrawal(ctx, seller)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInitiateWithdrawalSynchronousSuccess(t *testing.T) {
	f := newFixture(t)
	f.fund(seller.UserId, 90000, &bankDestination)
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil).Once()
	f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).
		Return(&gateway.Transfer{TransferRef: "TRF_1", Status: "success", Outcome: gateway.OutcomeSuccess}, nil).Once()

	w, err := f.engine.InitiateWithdrawal(context.Background(), seller)

	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalReleased, w.Status)
	assert.Equal(t, int64(0), f.balance(t, seller.UserId))
}

func TestInitiateWithdrawalCompensatesGatewayFailure(t *testing.T) {
	tests := []struct {
		name     string
		transfer *gateway.Transfer
		err      error
	}{
		{name: "Transfer Failed", transfer: &gateway.Transfer{Status: "failed", Outcome: gateway.OutcomeFailure}},
		{name: "Rejected", err: &gateway.APIError{Gateway: paystack.Name, StatusCode: 400, Message: "insufficient balance"}},
		{name: "Timeout", err: errors.New("context deadline exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.engine.cfg.MinimumWithdrawal = 100
			f.fund(seller.UserId, 150, &bankDestination)
			f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil)
			f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).Return(tt.transfer, tt.err)

			_, err := f.engine.InitiateWithdrawal(ctx, seller)

			assert.ErrorIs(t, err, ErrGateway)
			assert.Equal(t, int64(150), f.balance(t, seller.UserId))
			w := f.withdrawal(t, seller.UserId)
			assert.Equal(t, models.WithdrawalFailed, w.Status)
			assert.NotEmpty(t, w.FailureReason)
			earnings, _ := f.store.ListEarningsByUser(ctx, seller.UserId)
			assert.Equal(t, models.EarningAvailable, earnings[0].Status)
			f.notifier.AssertCalled(t, "Notify", mock.Anything, notified(seller.UserId, notify.TypeWithdrawalFailed))

			// A success reported after compensation is not applied.
			result, err := f.deliverPayout(t, "transfer.success", w.Id)
			require.NoError(t, err)
			assert.Equal(t, WebhookIgnored, result)
			assert.Equal(t, int64(150), f.balance(t, seller.UserId))
		})
	}
}

// cancellableStore fails writes on a done context, as the DynamoDB client does.
type cancellableStore struct {
	*memory.Store
}

func (s cancellableStore) FailWithdrawal(ctx context.Context, withdrawalID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.FailWithdrawal(ctx, withdrawalID, reason)
}

func TestInitiateWithdrawalCompensatesAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	f.engine.store = cancellableStore{f.store}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fund(seller.UserId, 90000, &bankDestination)
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil)
	f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	_, err := f.engine.InitiateWithdrawal(ctx, seller)

	assert.ErrorIs(t, err, ErrGateway)
	require.Error(t, ctx.Err())
	w := f.withdrawal(t, seller.UserId)
	assert.Equal(t, models.WithdrawalFailed, w.Status)
	assert.Equal(t, int64(90000), f.balance(t, seller.UserId))
	f.notifier.AssertCalled(t, "Notify", mock.Anything, notified(seller.UserId, notify.TypeWithdrawalFailed))
}

func TestInitiateWithdrawalMinimumUsesWholeBalance(t *testing.T) {
	f := newFixture(t)
	const earnings = maxEarningsPerWithdrawal + 2
	f.store.PutAccount(models.Account{UserId: seller.UserId, AvailableBalance: earnings * 100, PayoutDestination: &bankDestination})
	created := time.Now().Add(-time.Hour)
	for i := 0; i < earnings; i++ {
		f.store.PutEarning(models.Earning{
			Id: fmt.Sprintf("earning-%03d", i), UserId: seller.UserId, Amount: 100, Currency: "NGN",
			Kind: models.EarningSale, Status: models.EarningAvailable, CreatedAt: created.Add(time.Duration(i) * time.Second),
		})
	}
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil)
	f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).
		Return(&gateway.Transfer{TransferRef: "TRF_1", Status: "pending", Outcome: gateway.OutcomeOther}, nil)

	w, err := f.engine.InitiateWithdrawal(context.Background(), seller)

	require.NoError(t, err)
	assert.Len(t, w.EarningIds, maxEarningsPerWithdrawal)
	assert.Equal(t, int64(maxEarningsPerWithdrawal*100), w.Amount)
	assert.Equal(t, int64(200), f.balance(t, seller.UserId))
}

func TestPayoutFailureWebhookCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(seller.UserId, 90000, &bankDestination)
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil)
	f.payout.On("InitiateTransfer", mock.Anything, mock.Anything).
		Return(&gateway.Transfer{TransferRef: "TRF_1", Status: "pending", Outcome: gateway.OutcomeOther}, nil)

	w, err := f.engine.InitiateWithdrawal(ctx, seller)
	require.NoError(t, err)
	require.Equal(t, int64(0), f.balance(t, seller.UserId))

	result, err := f.deliverPayout(t, "transfer.reversed", w.Id)
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, result)
	assert.Equal(t, int64(90000), f.balance(t, seller.UserId))
	assert.Equal(t, models.WithdrawalFailed, f.withdrawal(t, seller.UserId).Status)

	result, err = f.deliverPayout(t, "transfer.failed", w.Id)
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)
	assert.Equal(t, int64(90000), f.balance(t, seller.UserId))

	result, err = f.deliverPayout(t, "transfer.success", "unknown-withdrawal")
	require.NoError(t, err)
	assert.Equal(t, WebhookUnknownReference, result)
}

func TestInitiateWithdrawalPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("No Destination", func(t *testing.T) {
		f := newFixture(t)
		f.fund(seller.UserId, 90000, nil)
		_, err := f.engine.InitiateWithdrawal(ctx, seller)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("No Account", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.InitiateWithdrawal(ctx, seller)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("Below Minimum", func(t *testing.T) {
		f := newFixture(t)
		f.fund(seller.UserId, 9999, &bankDestination)
		_, err := f.engine.InitiateWithdrawal(ctx, seller)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, int64(9999), f.balance(t, seller.UserId))
	})

	t.Run("Recipient Rejected", func(t *testing.T) {
		f := newFixture(t)
		f.fund(seller.UserId, 90000, &bankDestination)
		f.payout.On("CreateRecipient", mock.Anything, mock.Anything).
			Return("", &gateway.APIError{Gateway: paystack.Name, StatusCode: 422, Message: "invalid account"})
		_, err := f.engine.InitiateWithdrawal(ctx, seller)
		assert.ErrorIs(t, err, ErrGateway)
		assert.Equal(t, int64(90000), f.balance(t, seller.UserId))
		f.payout.AssertNotCalled(t, "InitiateTransfer", mock.Anything, mock.Anything)
	})

	t.Run("Anonymous", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.InitiateWithdrawal(ctx, models.Identity{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestEnsureRecipientIsCachedPerDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.SetPayoutDestination(ctx, seller, bankDestination)
	require.NoError(t, err)
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_1", nil).Once()

	for i := 0; i < 2; i++ {
		account, err := f.store.GetAccount(ctx, seller.UserId)
		require.NoError(t, err)
		ref, err := f.engine.ensureRecipient(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, "RCP_1", ref)
	}
	f.payout.AssertNumberOfCalls(t, "CreateRecipient", 1)

	changed := bankDestination
	changed.AccountNumber = "9876543210"
	_, err = f.engine.SetPayoutDestination(ctx, seller, changed)
	require.NoError(t, err)
	f.payout.On("CreateRecipient", mock.Anything, mock.Anything).Return("RCP_2", nil).Once()

	account, err := f.store.GetAccount(ctx, seller.UserId)
	require.NoError(t, err)
	ref, err := f.engine.ensureRecipient(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "RCP_2", ref)
	f.payout.AssertNumberOfCalls(t, "CreateRecipient", 2)
}

func TestGetAccountSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.engine.GetAccountSummary(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, buyer.UserId, empty.Account.UserId)
	assert.Zero(t, empty.Account.AvailableBalance)
	assert.Empty(t, empty.Earnings)

	payment := f.escrowed(t, "item-1", 100000, 1)
	_, err = f.engine.ConfirmReceipt(ctx, buyer, payment.Id)
	require.NoError(t, err)

	summary, err := f.engine.GetAccountSummary(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), summary.Account.AvailableBalance)
	require.Len(t, summary.Earnings, 1)
	assert.Equal(t, payment.Id, summary.Earnings[0].RelatedPaymentId)
	assert.Empty(t, summary.Withdrawals)
}
