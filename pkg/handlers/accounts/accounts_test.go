package accounts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers/mocks"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var seller = models.Identity{UserId: "seller-1"}

func request(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), seller))
}

func TestGetMyAccount(t *testing.T) {
	service := mocks.NewAccountService(t)
	handler := NewAccountsHandler(service)
	now := time.Now().UTC()
	service.On("GetAccountSummary", mock.Anything, seller).Return(&escrow.AccountSummary{
		Account: models.Account{UserId: seller.UserId, AvailableBalance: 90000},
		Earnings: []models.Earning{
			{Id: "earn-1", UserId: seller.UserId, Amount: 90000, Kind: models.EarningSale, Status: models.EarningAvailable, RelatedPaymentId: "pay-1", CreatedAt: now},
		},
	}, nil)

	rr := httptest.NewRecorder()
	handler.GetMyAccount(rr, request(http.MethodGet, "/accounts/me", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got api.Account
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(90000), got.AvailableBalance)
	require.Len(t, got.Earnings, 1)
	assert.Equal(t, "pay-1", got.Earnings[0].RelatedPaymentId)
}

func TestSetPayoutDestination(t *testing.T) {
	t.Run("Saved", func(t *testing.T) {
		service := mocks.NewAccountService(t)
		handler := NewAccountsHandler(service)
		dest := api.PayoutDestination{Method: "bank", AccountNumber: "0123456789", ProviderCode: "058", AccountName: "Ada Seller"}
		service.On("SetPayoutDestination", mock.Anything, seller, mock.MatchedBy(func(d models.PayoutDestination) bool {
			return d.Method == models.PayoutBank && d.AccountNumber == "0123456789"
		})).Return(&models.Account{UserId: seller.UserId, PayoutDestination: &models.PayoutDestination{
			Method: models.PayoutBank, AccountNumber: "0123456789", ProviderCode: "058", AccountName: "Ada Seller", Currency: "NGN",
		}}, nil)

		body, _ := json.Marshal(dest)
		rr := httptest.NewRecorder()
		handler.SetPayoutDestination(rr, request(http.MethodPut, "/accounts/me/payout-destination", body))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.Account
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.NotNil(t, got.PayoutDestination)
		assert.Equal(t, "NGN", got.PayoutDestination.Currency)
	})

	t.Run("Unknown Field", func(t *testing.T) {
		handler := NewAccountsHandler(mocks.NewAccountService(t))
		rr := httptest.NewRecorder()
		handler.SetPayoutDestination(rr, request(http.MethodPut, "/accounts/me/payout-destination", []byte(`{"iban":"x"}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInitiateWithdrawal(t *testing.T) {
	tests := []struct {
		name       string
		withdrawal *models.Withdrawal
		err        error
		wantStatus int
	}{
		{name: "Paid Synchronously", withdrawal: &models.Withdrawal{Id: "wd-1", Amount: 90000, Status: models.WithdrawalReleased}, wantStatus: http.StatusCreated},
		{name: "Awaiting Gateway", withdrawal: &models.Withdrawal{Id: "wd-1", Amount: 90000, Status: models.WithdrawalProcessing}, wantStatus: http.StatusAccepted},
		{name: "Below Minimum", err: escrow.ErrInvalidState, wantStatus: http.StatusConflict},
		{name: "Gateway Rejected", err: escrow.ErrGateway, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := mocks.NewAccountService(t)
			handler := NewAccountsHandler(service)
			service.On("InitiateWithdrawal", mock.Anything, seller).Return(tt.withdrawal, tt.err)

			rr := httptest.NewRecorder()
			handler.InitiateWithdrawal(rr, request(http.MethodPost, "/withdrawals", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestGetPlatformStats(t *testing.T) {
	service := mocks.NewAccountService(t)
	handler := NewAccountsHandler(service)
	service.On("PlatformStats", mock.Anything, seller).Return(nil, escrow.ErrForbidden)

	rr := httptest.NewRecorder()
	handler.GetPlatformStats(rr, request(http.MethodGet, "/platform/stats", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
