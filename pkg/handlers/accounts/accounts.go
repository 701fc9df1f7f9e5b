package accounts

import (
	"context"
	"net/http"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers/respond"
	"github.com/chris/escrow-settlement/pkg/mapping"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
)

// AccountService is the part of the escrow engine the account and payout routes drive.
type AccountService interface {
	GetAccountSummary(ctx context.Context, actor models.Identity) (*escrow.AccountSummary, error)
	SetPayoutDestination(ctx context.Context, actor models.Identity, dest models.PayoutDestination) (*models.Account, error)
	InitiateWithdrawal(ctx context.Context, actor models.Identity) (*models.Withdrawal, error)
	PlatformStats(ctx context.Context, actor models.Identity) (*models.PlatformStats, error)
}

// AccountsHandler holds the dependencies for account-related handlers.
type AccountsHandler struct {
	Service AccountService
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(service AccountService) *AccountsHandler {
	return &AccountsHandler{Service: service}
}

// GetMyAccount returns the caller's balance, earnings and withdrawals.
func (h *AccountsHandler) GetMyAccount(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetAccountSummary(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiAccount(summary))
}

func (h *AccountsHandler) SetPayoutDestination(w http.ResponseWriter, r *http.Request) {
	var body api.PayoutDestination
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	account, err := h.Service.SetPayoutDestination(r.Context(), middleware.IdentityFromContext(r.Context()), mapping.ToDomainPayoutDestination(&body))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiAccount(&escrow.AccountSummary{Account: *account}))
}

// InitiateWithdrawal pays out the caller's whole available balance. A withdrawal the
// gateway has not finished with yet is reported as 202.
func (h *AccountsHandler) InitiateWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.Service.InitiateWithdrawal(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusAccepted
	if withdrawal.Status == models.WithdrawalReleased {
		status = http.StatusCreated
	}
	respond.JSON(w, status, mapping.ToApiWithdrawal(withdrawal))
}

// GetPlatformStats is admin only.
func (h *AccountsHandler) GetPlatformStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.PlatformStats(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiPlatformStats(stats))
}
