package audit

import (
	"context"
	"database/sql"
	"time"
)

// Kind of balance-affecting event.
type Kind string

const (
	KindStake      Kind = "stake"
	KindPayout     Kind = "payout"
	KindRefund     Kind = "refund"
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Record is one row of the append-only ledger. Seq numbers records per
// account in commit order; Hash covers the record content plus PrevHash, so
// the per-account rows form a tamper-evident chain. Rows are never updated
// or deleted.
type Record struct {
	Seq       int64
	AccountID int64
	Amount    int64
	Balance   int64
	Kind      Kind
	GameTag   string
	CreatedAt time.Time
	PrevHash  string
	Hash      string
}

type Audit interface {
	Append(tx *sql.Tx, rec Record) error
	// Last returns the newest record for the account; found is false for an
	// empty chain.
	Last(tx *sql.Tx, accountID int64) (rec Record, found bool, err error)
	// Chain returns the account's full chain in sequence order.
	Chain(ctx context.Context, accountID int64) ([]Record, error)
}
