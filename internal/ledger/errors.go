package ledger

import "errors"

// Domain failure taxonomy. Every Apply failure is all-or-nothing: callers
// never see partial state and never reconcile.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionConflict   = errors.New("session conflict")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTransactionFailed = errors.New("transaction failed")
)
