package mapping

import (
	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/models"
)

// ToApiPayment converts a domain Payment model to an API Payment model.
func ToApiPayment(p *models.Payment) *api.Payment {
	out := &api.Payment{
		Id:                 p.Id,
		BuyerId:            p.BuyerId,
		SellerId:           p.SellerId,
		ItemId:             p.ItemId,
		GrossAmount:        p.GrossAmount,
		Currency:           p.Currency,
		Status:             api.PaymentStatus(p.Status),
		Gateway:            p.GatewayName,
		PlatformFeeCharged: p.PlatformFeeCharged,
		ActiveDisputeId:    p.ActiveDisputeId,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	// The checkout link is only useful while the buyer still has to pay.
	if p.Status == models.PaymentInitiated && p.CheckoutURL != "" {
		out.CheckoutUrl = &p.CheckoutURL
	}
	return out
}

// ToApiDispute converts a domain DisputeRecord to an API Dispute model.
func ToApiDispute(d *models.DisputeRecord) *api.Dispute {
	out := &api.Dispute{
		Id:               d.Id,
		PaymentId:        d.PaymentId,
		FiledByUserId:    d.FiledByUserId,
		OtherPartyUserId: d.OtherPartyUserId,
		Reason:           d.Reason,
		Description:      d.Description,
		Status:           string(d.Status),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Outcome != "" {
		outcome := string(d.Outcome)
		out.Outcome = &outcome
	}
	if d.ResolutionNote != "" {
		out.ResolutionNote = &d.ResolutionNote
	}
	return out
}

// ToDomainPayoutDestination converts an API PayoutDestination to the domain model.
func ToDomainPayoutDestination(dest *api.PayoutDestination) models.PayoutDestination {
	return models.PayoutDestination{
		Method:        models.PayoutMethod(dest.Method),
		AccountNumber: dest.AccountNumber,
		ProviderCode:  dest.ProviderCode,
		AccountName:   dest.AccountName,
		Currency:      dest.Currency,
	}
}

func toApiPayoutDestination(dest *models.PayoutDestination) *api.PayoutDestination {
	if dest == nil {
		return nil
	}
	return &api.PayoutDestination{
		Method:        string(dest.Method),
		AccountNumber: dest.AccountNumber,
		ProviderCode:  dest.ProviderCode,
		AccountName:   dest.AccountName,
		Currency:      dest.Currency,
	}
}

// ToApiWithdrawal converts a domain Withdrawal to an API Withdrawal model.
func ToApiWithdrawal(w *models.Withdrawal) *api.Withdrawal {
	out := &api.Withdrawal{
		Id:           w.Id,
		Amount:       w.Amount,
		Currency:     w.Currency,
		Status:       string(w.Status),
		PayoutMethod: string(w.PayoutMethod),
		RequestedAt:  w.RequestedAt,
		UpdatedAt:    w.UpdatedAt,
	}
	if w.FailureReason != "" {
		out.FailureReason = &w.FailureReason
	}
	return out
}

// ToApiAccount converts an account summary to the API Account model.
func ToApiAccount(s *escrow.AccountSummary) *api.Account {
	out := &api.Account{
		UserId:            s.Account.UserId,
		AvailableBalance:  s.Account.AvailableBalance,
		PayoutDestination: toApiPayoutDestination(s.Account.PayoutDestination),
		Earnings:          make([]api.Earning, len(s.Earnings)),
		Withdrawals:       make([]api.Withdrawal, len(s.Withdrawals)),
	}
	for i, e := range s.Earnings {
		out.Earnings[i] = api.Earning{
			Id:               e.Id,
			Amount:           e.Amount,
			Currency:         e.Currency,
			Kind:             string(e.Kind),
			Status:           string(e.Status),
			RelatedPaymentId: e.RelatedPaymentId,
			CreatedAt:        e.CreatedAt,
		}
		if e.WithdrawalId != "" {
			id := e.WithdrawalId
			out.Earnings[i].WithdrawalId = &id
		}
	}
	for i := range s.Withdrawals {
		out.Withdrawals[i] = *ToApiWithdrawal(&s.Withdrawals[i])
	}
	return out
}

// ToApiPlatformStats converts the platform counters to the API model.
func ToApiPlatformStats(s *models.PlatformStats) *api.PlatformStats {
	return &api.PlatformStats{TotalPlatformFees: s.TotalPlatformFees, SettledPayments: s.SettledPayments}
}
