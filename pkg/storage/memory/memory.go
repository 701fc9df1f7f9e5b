// Package memory is an in-process implementation of the ledger store.
// Every method holds one mutex for its whole read-modify-write, which gives the
// same all-or-nothing and compare-and-swap behaviour as the DynamoDB transactions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/storage"
)

// Store is a mutex-serialized, map-backed storage.Storage.
type Store struct {
	mu sync.Mutex

	payments    map[string]models.Payment
	earnings    map[string]models.Earning
	withdrawals map[string]models.Withdrawal
	disputes    map[string]models.DisputeRecord
	accounts    map[string]models.Account
	items       map[string]models.Item
	connections map[string]string
	platform    models.PlatformStats
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		payments:    make(map[string]models.Payment),
		earnings:    make(map[string]models.Earning),
		withdrawals: make(map[string]models.Withdrawal),
		disputes:    make(map[string]models.DisputeRecord),
		accounts:    make(map[string]models.Account),
		items:       make(map[string]models.Item),
		connections: make(map[string]string),
	}
}

// PutItem seeds a catalog item.
func (s *Store) PutItem(item models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Id] = item
}

// PutAccount seeds an account row. It bypasses the ledger, so it is meant for
// fixtures only.
func (s *Store) PutAccount(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UserId] = account
}

// PutEarning seeds an earning row without touching any balance.
func (s *Store) PutEarning(earning models.Earning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earnings[earning.Id] = earning
}

// CreatePayment stores a new payment. It returns storage.ErrAlreadyExists for a duplicate ID.
func (s *Store) CreatePayment(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[payment.Id]; ok {
		return storage.ErrAlreadyExists
	}
	s.payments[payment.Id] = clonePayment(*payment)
	return nil
}

// GetPayment retrieves a payment by its ID.
func (s *Store) GetPayment(_ context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
	}
	out := clonePayment(p)
	return &out, nil
}

// GetPaymentByReference finds the payment a gateway knows by reference.
func (s *Store) GetPaymentByReference(_ context.Context, gatewayName, reference string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.GatewayName == gatewayName && p.GatewayReference == reference {
			out := clonePayment(p)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("payment with reference %s: %w", reference, storage.ErrNotFound)
}

// AttachCheckout records the gateway checkout on a payment.
func (s *Store) AttachCheckout(_ context.Context, paymentID, checkoutID, checkoutURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
	}
	p.CheckoutId = checkoutID
	p.CheckoutURL = checkoutURL
	p.UpdatedAt = time.Now()
	s.payments[paymentID] = p
	return nil
}

// EscrowPayment moves an initiated payment to escrow and marks its item paid_escrow.
func (s *Store) EscrowPayment(_ context.Context, paymentID, gatewayStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
	}
	if p.Status != models.PaymentInitiated {
		return storage.ErrStatusConflict
	}
	item, ok := s.items[p.ItemId]
	if !ok {
		return fmt.Errorf("item %s for payment %s: %w", p.ItemId, paymentID, storage.ErrNotFound)
	}

	p.Status = models.PaymentEscrow
	p.GatewayStatus = gatewayStatus
	p.UpdatedAt = time.Now()
	s.payments[paymentID] = p

	item.Status = models.ItemPaidEscrow
	s.items[item.Id] = item
	return nil
}

// FailPayment moves a payment in one of from to failed, putting an escrowed item back
// on sale while it has stock.
func (s *Store) FailPayment(_ context.Context, paymentID string, from []models.PaymentStatus, gatewayStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment with ID %s: %w", paymentID, storage.ErrNotFound)
	}
	allowed := false
	for _, st := range from {
		if p.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return storage.ErrStatusConflict
	}

	if p.Status == models.PaymentEscrow {
		item, ok := s.items[p.ItemId]
		if !ok {
			return fmt.Errorf("item %s for payment %s: %w", p.ItemId, paymentID, storage.ErrNotFound)
		}
		item.Status = models.ListingStatus(item.Quantity)
		s.items[item.Id] = item
	}

	p.Status = models.PaymentFailed
	p.GatewayStatus = gatewayStatus
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	s.payments[paymentID] = p
	return nil
}

// GetItem retrieves a catalog item by its ID.
func (s *Store) GetItem(_ context.Context, itemID string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item with ID %s: %w", itemID, storage.ErrNotFound)
	}
	return &item, nil
}

// OpenDispute records a dispute and moves its payment to disputed.
func (s *Store) OpenDispute(_ context.Context, dispute *models.DisputeRecord, allowedFrom []models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disputes[dispute.Id]; ok {
		return storage.ErrAlreadyExists
	}
	p, ok := s.payments[dispute.PaymentId]
	if !ok {
		return storage.ErrStatusConflict
	}
	allowed := false
	for _, st := range allowedFrom {
		if p.Status == st {
			allowed = true
		}
	}
	if !allowed || p.ActiveDisputeId != nil {
		return storage.ErrStatusConflict
	}

	s.disputes[dispute.Id] = *dispute
	id := dispute.Id
	p.Status = models.PaymentDisputed
	p.ActiveDisputeId = &id
	p.UpdatedAt = dispute.CreatedAt
	s.payments[p.Id] = p
	return nil
}

// GetDispute retrieves a dispute by its ID.
func (s *Store) GetDispute(_ context.Context, disputeID string) (*models.DisputeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[disputeID]
	if !ok {
		return nil, fmt.Errorf("dispute with ID %s: %w", disputeID, storage.ErrNotFound)
	}
	return &d, nil
}

// Settle validates every precondition before the first write.
func (s *Store) Settle(_ context.Context, st storage.Settlement) error {
	if st.Earning == nil {
		return fmt.Errorf("settlement requires an earning")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[st.PaymentID]
	if !ok || p.Status != st.FromStatus || p.PlatformFeeCharged != nil {
		return storage.ErrStatusConflict
	}
	if st.DisputeID == "" && p.ActiveDisputeId != nil {
		return storage.ErrStatusConflict
	}
	if st.DisputeID != "" && (p.ActiveDisputeId == nil || *p.ActiveDisputeId != st.DisputeID) {
		return storage.ErrStatusConflict
	}
	if _, exists := s.earnings[st.Earning.Id]; exists {
		return storage.ErrStatusConflict
	}
	var dispute models.DisputeRecord
	if st.DisputeID != "" {
		dispute, ok = s.disputes[st.DisputeID]
		if !ok || dispute.Status == models.DisputeResolved {
			return storage.ErrStatusConflict
		}
	}
	item, ok := s.items[st.ItemID]
	if !ok || item.Quantity != st.ExpectedItemQuantity {
		return storage.ErrConcurrentUpdate
	}

	now := time.Now()

	p.Status = st.ToStatus
	p.UpdatedAt = now
	if st.PlatformFee != nil {
		fee := *st.PlatformFee
		p.PlatformFeeCharged = &fee
		s.platform.TotalPlatformFees += fee
		s.platform.SettledPayments++
	}
	if st.DisputeID != "" {
		p.ActiveDisputeId = nil
		dispute.Status = models.DisputeResolved
		dispute.Outcome = st.Outcome
		dispute.ResolutionNote = st.ResolutionNote
		dispute.UpdatedAt = now
		s.disputes[dispute.Id] = dispute
	}
	s.payments[p.Id] = p

	s.earnings[st.Earning.Id] = *st.Earning

	account := s.accounts[st.Earning.UserId]
	account.UserId = st.Earning.UserId
	account.AvailableBalance += st.Earning.Amount
	account.UpdatedAt = now
	s.accounts[account.UserId] = account

	item.Status = st.ItemStatus
	item.Quantity = st.ItemQuantity
	s.items[item.Id] = item
	return nil
}

// GetAccount retrieves a user's balance account.
func (s *Store) GetAccount(_ context.Context, userID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account for user ID %s: %w", userID, storage.ErrNotFound)
	}
	return cloneAccount(a), nil
}

// ListAccounts returns every account.
func (s *Store) ListAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, *cloneAccount(a))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserId < accounts[j].UserId })
	return accounts, nil
}

// SetPayoutDestination stores the user's payout destination, creating the account if needed.
func (s *Store) SetPayoutDestination(_ context.Context, userID string, dest models.PayoutDestination) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[userID]
	a.UserId = userID
	a.PayoutDestination = &dest
	a.UpdatedAt = time.Now()
	s.accounts[userID] = a
	return nil
}

// SaveRecipient caches the gateway recipient for the account's current destination.
func (s *Store) SaveRecipient(_ context.Context, userID, recipientRef, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("account for user ID %s: %w", userID, storage.ErrNotFound)
	}
	a.RecipientRef = recipientRef
	a.RecipientFingerprint = fingerprint
	s.accounts[userID] = a
	return nil
}

// ListEarningsByUser returns the user's earnings, oldest first.
func (s *Store) ListEarningsByUser(_ context.Context, userID string) ([]models.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earnings []models.Earning
	for _, e := range s.earnings {
		if e.UserId == userID {
			earnings = append(earnings, e)
		}
	}
	sort.Slice(earnings, func(i, j int) bool {
		if earnings[i].CreatedAt.Equal(earnings[j].CreatedAt) {
			return earnings[i].Id < earnings[j].Id
		}
		return earnings[i].CreatedAt.Before(earnings[j].CreatedAt)
	})
	return earnings, nil
}

// GetPlatformStats returns the platform fee totals.
func (s *Store) GetPlatformStats(_ context.Context) (*models.PlatformStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.platform
	return &stats, nil
}

// GetWithdrawal retrieves a withdrawal by its ID.
func (s *Store) GetWithdrawal(_ context.Context, withdrawalID string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return nil, fmt.Errorf("withdrawal with ID %s: %w", withdrawalID, storage.ErrNotFound)
	}
	return cloneWithdrawal(w), nil
}

// ListWithdrawalsByUser returns the user's withdrawals, oldest first.
func (s *Store) ListWithdrawalsByUser(_ context.Context, userID string) ([]models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var withdrawals []models.Withdrawal
	for _, w := range s.withdrawals {
		if w.UserId == userID {
			withdrawals = append(withdrawals, *cloneWithdrawal(w))
		}
	}
	sort.Slice(withdrawals, func(i, j int) bool { return withdrawals[i].RequestedAt.Before(withdrawals[j].RequestedAt) })
	return withdrawals, nil
}

// GetStuckWithdrawals returns withdrawals still pending at the gateway that were requested
// more than maxAge ago.
func (s *Store) GetStuckWithdrawals(_ context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var stuck []models.Withdrawal
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalPendingGateway && w.RequestedAt.Before(cutoff) {
			stuck = append(stuck, *cloneWithdrawal(w))
		}
	}
	return stuck, nil
}

// CreateWithdrawal debits the balance and reserves the earnings for a new withdrawal.
func (s *Store) CreateWithdrawal(_ context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[w.UserId]
	if !ok || a.AvailableBalance < w.Amount {
		return storage.ErrInsufficientFunds
	}
	if _, exists := s.withdrawals[w.Id]; exists {
		return storage.ErrAlreadyExists
	}
	for _, id := range w.EarningIds {
		e, ok := s.earnings[id]
		if !ok || e.Status != models.EarningAvailable || e.UserId != w.UserId {
			return storage.ErrConcurrentUpdate
		}
	}

	a.AvailableBalance -= w.Amount
	a.UpdatedAt = w.RequestedAt
	s.accounts[a.UserId] = a
	s.withdrawals[w.Id] = *cloneWithdrawal(*w)
	for _, id := range w.EarningIds {
		e := s.earnings[id]
		e.Status = models.EarningWithdrawalPending
		e.WithdrawalId = w.Id
		s.earnings[id] = e
	}
	return nil
}

// MarkWithdrawalProcessing records that the gateway accepted the transfer.
func (s *Store) MarkWithdrawalProcessing(_ context.Context, withdrawalID, transferRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[withdrawalID]
	if !ok || w.Status != models.WithdrawalPendingGateway {
		return storage.ErrStatusConflict
	}
	w.Status = models.WithdrawalProcessing
	w.GatewayTransferRef = transferRef
	w.UpdatedAt = time.Now()
	s.withdrawals[withdrawalID] = w
	return nil
}

// CompleteWithdrawal marks a withdrawal released and its earnings withdrawn.
func (s *Store) CompleteWithdrawal(_ context.Context, withdrawalID, transferRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return fmt.Errorf("withdrawal with ID %s: %w", withdrawalID, storage.ErrNotFound)
	}
	if w.Status.IsTerminal() {
		return storage.ErrStatusConflict
	}

	w.Status = models.WithdrawalReleased
	if transferRef != "" {
		w.GatewayTransferRef = transferRef
	}
	w.UpdatedAt = time.Now()
	s.withdrawals[withdrawalID] = w
	for _, id := range w.EarningIds {
		e := s.earnings[id]
		e.Status = models.EarningWithdrawn
		s.earnings[id] = e
	}
	return nil
}

// FailWithdrawal marks a withdrawal failed and restores the balance and earnings it held.
func (s *Store) FailWithdrawal(_ context.Context, withdrawalID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return fmt.Errorf("withdrawal with ID %s: %w", withdrawalID, storage.ErrNotFound)
	}
	if w.Status.IsTerminal() {
		return storage.ErrStatusConflict
	}

	now := time.Now()
	w.Status = models.WithdrawalFailed
	w.FailureReason = reason
	w.UpdatedAt = now
	s.withdrawals[withdrawalID] = w

	a := s.accounts[w.UserId]
	a.UserId = w.UserId
	a.AvailableBalance += w.Amount
	a.UpdatedAt = now
	s.accounts[a.UserId] = a

	for _, id := range w.EarningIds {
		e := s.earnings[id]
		e.Status = models.EarningAvailable
		e.WithdrawalId = ""
		s.earnings[id] = e
	}
	return nil
}

// AddConnection registers a websocket connection for a user.
func (s *Store) AddConnection(_ context.Context, connectionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[connectionID] = userID
	return nil
}

// RemoveConnection forgets a websocket connection.
func (s *Store) RemoveConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, connectionID)
	return nil
}

// GetConnectionsByUser returns the user's open connection IDs.
func (s *Store) GetConnectionsByUser(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for connID, uid := range s.connections {
		if uid == userID {
			ids = append(ids, connID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func clonePayment(p models.Payment) models.Payment {
	if p.PlatformFeeCharged != nil {
		fee := *p.PlatformFeeCharged
		p.PlatformFeeCharged = &fee
	}
	if p.ActiveDisputeId != nil {
		id := *p.ActiveDisputeId
		p.ActiveDisputeId = &id
	}
	return p
}

func cloneAccount(a models.Account) *models.Account {
	if a.PayoutDestination != nil {
		dest := *a.PayoutDestination
		a.PayoutDestination = &dest
	}
	return &a
}

func cloneWithdrawal(w models.Withdrawal) *models.Withdrawal {
	w.EarningIds = append([]string(nil), w.EarningIds...)
	return &w
}
