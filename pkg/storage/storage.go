package storage

// LedgerStore composes every ledger operation the escrow engine needs.
// Components should depend on the more granular interfaces where they can.
type LedgerStore interface {
	PaymentStore
	ItemCatalog
	DisputeStore
	SettlementStore
	AccountStore
	WithdrawalStore
}

// Storage defines the root interface for the entire data layer.
type Storage interface {
	LedgerStore
	ConnectionStore
}
