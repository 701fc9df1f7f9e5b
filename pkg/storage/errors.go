package storage

import "errors"

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when a record with the same key already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ErrStatusConflict is returned when a status compare-and-swap fails because the
// record is no longer in the expected origin state.
var ErrStatusConflict = errors.New("record not in the expected state")

// ErrConcurrentUpdate is returned when a non-status precondition (item quantity,
// earning status) changed between read and write. The operation can be retried.
var ErrConcurrentUpdate = errors.New("concurrent update detected")

// ErrInsufficientFunds is returned when an account has an insufficient balance for a debit.
var ErrInsufficientFunds = errors.New("insufficient funds")
