package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrAccountNotFound = errors.New("account not found")

// Account is the per-user wallet row plus the counters the risk classifier
// reads. All amounts are minor units.
type Account struct {
	ID             int64
	Balance        int64
	TotalDeposited int64
	Profit         int64
	TotalWagered   int64
	TotalWon       int64
	WinStreak      int
	LossStreak     int
	LastBetAmount  int64
	LastBetWon     bool
}

// BetOutcome records a settled bet for the streak counters.
type BetOutcome struct {
	Amount int64
	Won    bool
}

// StatsDelta is applied to an account's counters alongside a balance
// mutation. Bet is nil for events that are not a settled bet (deposits,
// withdrawals, mid-round refunds).
type StatsDelta struct {
	Deposited int64
	Wagered   int64
	Won       int64
	Profit    int64
	Bet       *BetOutcome
}

func (d StatsDelta) Empty() bool {
	return d.Deposited == 0 && d.Wagered == 0 && d.Won == 0 && d.Profit == 0 && d.Bet == nil
}

type Accounts interface {
	Get(ctx context.Context, accountID int64) (Account, error)
	LockAndGet(tx *sql.Tx, accountID int64) (Account, error)
	IncreaseBalance(tx *sql.Tx, accountID int64, amount int64) error
	DecreaseBalance(tx *sql.Tx, accountID int64, amount int64) error
	ApplyStats(tx *sql.Tx, accountID int64, delta StatsDelta) error
}
