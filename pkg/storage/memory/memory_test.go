package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEscrowed(t *testing.T, s *Store) *models.Payment {
	t.Helper()
	s.PutItem(models.Item{Id: "item-1", SellerId: "seller", Price: 100000, Status: models.ItemAvailable, Quantity: 1})
	p := &models.Payment{
		Id: "payment-1", BuyerId: "buyer", SellerId: "seller", ItemId: "item-1",
		GrossAmount: 100000, Status: models.PaymentInitiated, GatewayName: "paystack", GatewayReference: "ref-1",
	}
	require.NoError(t, s.CreatePayment(context.Background(), p))
	require.NoError(t, s.EscrowPayment(context.Background(), p.Id, "success"))
	return p
}

func settlement() storage.Settlement {
	fee := int64(10000)
	return storage.Settlement{
		PaymentID:   "payment-1",
		FromStatus:  models.PaymentEscrow,
		ToStatus:    models.PaymentReleased,
		PlatformFee: &fee,
		Earning: &models.Earning{
			Id: "earning-1", UserId: "seller", Amount: 90000, Kind: models.EarningSale,
			RelatedPaymentId: "payment-1", Status: models.EarningAvailable, CreatedAt: time.Now(),
		},
		ItemID:               "item-1",
		ExpectedItemQuantity: 1,
		ItemQuantity:         0,
		ItemStatus:           models.ItemSold,
	}
}

func TestSettleIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEscrowed(t, s)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Settle(ctx, settlement())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrStatusConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	account, err := s.GetAccount(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), account.AvailableBalance)

	stats, _ := s.GetPlatformStats(ctx)
	assert.Equal(t, int64(10000), stats.TotalPlatformFees)
	assert.Equal(t, int64(1), stats.SettledPayments)

	item, _ := s.GetItem(ctx, "item-1")
	assert.Equal(t, models.ItemSold, item.Status)
	assert.Equal(t, 0, item.Quantity)
}

func TestSettleRefusesActiveDispute(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEscrowed(t, s)

	dispute := &models.DisputeRecord{Id: "dispute-1", PaymentId: "payment-1", Status: models.DisputePendingAdmin, CreatedAt: time.Now()}
	require.NoError(t, s.OpenDispute(ctx, dispute, []models.PaymentStatus{models.PaymentEscrow}))

	st := settlement()
	st.FromStatus = models.PaymentDisputed
	assert.ErrorIs(t, s.Settle(ctx, st), storage.ErrStatusConflict)

	st.DisputeID = "dispute-1"
	st.Outcome = models.OutcomeRelease
	require.NoError(t, s.Settle(ctx, st))

	resolved, _ := s.GetDispute(ctx, "dispute-1")
	assert.Equal(t, models.DisputeResolved, resolved.Status)
	p, _ := s.GetPayment(ctx, "payment-1")
	assert.Nil(t, p.ActiveDisputeId)
	assert.Equal(t, models.PaymentReleased, p.Status)
}

func TestSettleItemChanged(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEscrowed(t, s)
	s.PutItem(models.Item{Id: "item-1", SellerId: "seller", Price: 100000, Status: models.ItemPaidEscrow, Quantity: 3})

	err := s.Settle(ctx, settlement())

	assert.ErrorIs(t, err, storage.ErrConcurrentUpdate)
	p, _ := s.GetPayment(ctx, "payment-1")
	assert.Equal(t, models.PaymentEscrow, p.Status)
}

func TestOpenDisputeOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEscrowed(t, s)

	first := &models.DisputeRecord{Id: "d1", PaymentId: "payment-1"}
	second := &models.DisputeRecord{Id: "d2", PaymentId: "payment-1"}

	require.NoError(t, s.OpenDispute(ctx, first, []models.PaymentStatus{models.PaymentEscrow, models.PaymentDisputed}))
	assert.ErrorIs(t, s.OpenDispute(ctx, second, []models.PaymentStatus{models.PaymentEscrow, models.PaymentDisputed}), storage.ErrStatusConflict)
	assert.ErrorIs(t, s.OpenDispute(ctx, first, []models.PaymentStatus{models.PaymentEscrow}), storage.ErrAlreadyExists)
}

func TestWithdrawalLifecycle(t *testing.T) {
	ctx := context.Background()

	setup := func() *Store {
		s := New()
		s.PutAccount(models.Account{UserId: "seller", AvailableBalance: 15000})
		s.PutEarning(models.Earning{Id: "e1", UserId: "seller", Amount: 15000, Status: models.EarningAvailable})
		return s
	}
	withdrawal := func() *models.Withdrawal {
		return &models.Withdrawal{
			Id: "w1", UserId: "seller", Amount: 15000, Status: models.WithdrawalPendingGateway,
			EarningIds: []string{"e1"}, RequestedAt: time.Now(),
		}
	}

	t.Run("Fail Restores Balance", func(t *testing.T) {
		s := setup()
		require.NoError(t, s.CreateWithdrawal(ctx, withdrawal()))

		a, _ := s.GetAccount(ctx, "seller")
		assert.Equal(t, int64(0), a.AvailableBalance)

		require.NoError(t, s.FailWithdrawal(ctx, "w1", "rejected"))
		assert.ErrorIs(t, s.FailWithdrawal(ctx, "w1", "rejected"), storage.ErrStatusConflict)

		a, _ = s.GetAccount(ctx, "seller")
		assert.Equal(t, int64(15000), a.AvailableBalance)
		earnings, _ := s.ListEarningsByUser(ctx, "seller")
		assert.Equal(t, models.EarningAvailable, earnings[0].Status)
		assert.Empty(t, earnings[0].WithdrawalId)
	})

	t.Run("Complete Marks Earnings Withdrawn", func(t *testing.T) {
		s := setup()
		require.NoError(t, s.CreateWithdrawal(ctx, withdrawal()))
		require.NoError(t, s.MarkWithdrawalProcessing(ctx, "w1", "TRF_1"))
		require.NoError(t, s.CompleteWithdrawal(ctx, "w1", ""))

		w, _ := s.GetWithdrawal(ctx, "w1")
		assert.Equal(t, models.WithdrawalReleased, w.Status)
		assert.Equal(t, "TRF_1", w.GatewayTransferRef)
		assert.ErrorIs(t, s.FailWithdrawal(ctx, "w1", "late"), storage.ErrStatusConflict)

		earnings, _ := s.ListEarningsByUser(ctx, "seller")
		assert.Equal(t, models.EarningWithdrawn, earnings[0].Status)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		s := setup()
		w := withdrawal()
		w.Amount = 20000

		assert.ErrorIs(t, s.CreateWithdrawal(ctx, w), storage.ErrInsufficientFunds)
	})

	t.Run("Concurrent Withdrawals Debit Once", func(t *testing.T) {
		s := setup()
		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				w := withdrawal()
				w.Id = w.Id + string(rune('a'+i))
				errs[i] = s.CreateWithdrawal(ctx, w)
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			}
		}
		assert.Equal(t, 1, ok)
		a, _ := s.GetAccount(ctx, "seller")
		assert.Equal(t, int64(0), a.AvailableBalance)
	})
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AddConnection(ctx, "c2", "u1"))
	require.NoError(t, s.AddConnection(ctx, "c1", "u1"))
	require.NoError(t, s.AddConnection(ctx, "c3", "u2"))
	require.NoError(t, s.RemoveConnection(ctx, "c2"))

	ids, err := s.GetConnectionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}
