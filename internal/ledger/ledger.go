// Package ledger is the only component allowed to mutate account balance.
// One Apply call wraps balance delta, audit chain append, stat counters and
// the session transition in a single database transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stakeworks/wagerd/internal/infra/pgutils"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	pgaccounts "github.com/stakeworks/wagerd/internal/repos/accounts/postgres"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	pgaudit "github.com/stakeworks/wagerd/internal/repos/audit/postgres"
	"github.com/stakeworks/wagerd/internal/repos/sessions"
	pgsessions "github.com/stakeworks/wagerd/internal/repos/sessions/postgres"
	"github.com/stakeworks/wagerd/internal/session"
)

// SessionOpKind selects the session transition applied with an entry.
type SessionOpKind int

const (
	OpNone SessionOpKind = iota
	OpCreate
	OpUpdate
	OpDelete
)

// SessionOp is the session part of an atomic commit. Record is read for
// OpCreate and OpUpdate.
type SessionOp struct {
	Kind   SessionOpKind
	Record session.Record
}

// Leg is one balance movement with its audit classification.
type Leg struct {
	Amount int64
	Kind   audit.Kind
}

// Entry is one balance-affecting event. Amount is signed: negative debits,
// positive credits, zero for commits that only move session state and
// counters (a settle with no payout). A zero amount writes no audit record.
type Entry struct {
	AccountID int64
	Amount    int64
	Kind      audit.Kind
	GameTag   string
	Stats     accounts.StatsDelta
	Session   SessionOp

	// Settle, when set, credits a second movement in the same commit.
	// Single-step rounds use it so the stake debit and the payout credit
	// are one atomic unit: a crash can never leave the stake gone with
	// the payout unapplied. Settle.Amount must not be negative; zero
	// closes the round without an audit record for the payout leg.
	Settle *Leg
}

// Snapshot is the account state after a committed entry.
type Snapshot struct {
	Account accounts.Account
}

type Engine struct {
	db       *sql.DB
	accounts accounts.Accounts
	audit    audit.Audit
	sessions sessions.Sessions
}

func New(db *sql.DB) *Engine {
	return &Engine{
		db:       db,
		accounts: pgaccounts.New(db),
		audit:    pgaudit.New(db),
		sessions: pgsessions.New(db),
	}
}

// Apply commits the entry atomically:
//
// 1) Lock the account row (FOR UPDATE).
// 2) Apply the balance delta; debit shortfall aborts everything.
// 3) Update stat counters.
// 4) Append the hash-chained audit record.
// 5) Apply the session transition.
//
// Any failure rolls the whole commit back. Domain failures surface as the
// package sentinels; everything else is wrapped in ErrTransactionFailed.
func (e *Engine) Apply(ctx context.Context, entry Entry) (Snapshot, error) {
	var snap Snapshot

	if entry.Settle != nil && entry.Settle.Amount < 0 {
		return Snapshot{}, fmt.Errorf("%w: negative settle leg", ErrTransactionFailed)
	}

	err := pgutils.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		acct, err := e.accounts.LockAndGet(tx, entry.AccountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		switch {
		case entry.Amount < 0:
			debit := -entry.Amount
			// Pre-check against the locked row; the UPDATE predicate is the
			// backstop.
			if acct.Balance < debit {
				return fmt.Errorf("pre-check debit: %w", accounts.ErrInsufficientFunds)
			}
			if err := e.accounts.DecreaseBalance(tx, entry.AccountID, debit); err != nil {
				return fmt.Errorf("debit: %w", err)
			}
		case entry.Amount > 0:
			if err := e.accounts.IncreaseBalance(tx, entry.AccountID, entry.Amount); err != nil {
				return fmt.Errorf("credit: %w", err)
			}
		}

		if entry.Settle != nil && entry.Settle.Amount > 0 {
			if err := e.accounts.IncreaseBalance(tx, entry.AccountID, entry.Settle.Amount); err != nil {
				return fmt.Errorf("settle credit: %w", err)
			}
		}

		if err := e.accounts.ApplyStats(tx, entry.AccountID, entry.Stats); err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		balance := acct.Balance + entry.Amount
		if entry.Amount != 0 {
			if err := e.appendAudit(tx, entry.AccountID, entry.Amount, entry.Kind, entry.GameTag, balance); err != nil {
				return err
			}
		}
		if entry.Settle != nil && entry.Settle.Amount != 0 {
			balance += entry.Settle.Amount
			if err := e.appendAudit(tx, entry.AccountID, entry.Settle.Amount, entry.Settle.Kind, entry.GameTag, balance); err != nil {
				return err
			}
		}

		if err := e.applySessionOp(tx, entry.Session); err != nil {
			return err
		}

		snap = Snapshot{Account: updatedAccount(acct, entry)}
		return nil
	})
	if err != nil {
		return Snapshot{}, mapError(err)
	}

	return snap, nil
}

func (e *Engine) appendAudit(tx *sql.Tx, accountID, amount int64, kind audit.Kind, gameTag string, balance int64) error {
	last, found, err := e.audit.Last(tx, accountID)
	if err != nil {
		return fmt.Errorf("chain head: %w", err)
	}

	rec := audit.Record{
		Seq:       1,
		AccountID: accountID,
		Amount:    amount,
		Balance:   balance,
		Kind:      kind,
		GameTag:   gameTag,
		// Truncated so the hash survives the round trip through a
		// microsecond-precision timestamp column.
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if found {
		rec.Seq = last.Seq + 1
		rec.PrevHash = last.Hash
	}
	rec.Hash = RecordHash(rec)

	if err := e.audit.Append(tx, rec); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	return nil
}

func (e *Engine) applySessionOp(tx *sql.Tx, op SessionOp) error {
	switch op.Kind {
	case OpNone:
		return nil
	case OpCreate:
		if err := e.sessions.Insert(tx, op.Record); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	case OpUpdate:
		if err := e.sessions.Update(tx, op.Record); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	case OpDelete:
		if err := e.sessions.Delete(tx, op.Record.AccountID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	default:
		return fmt.Errorf("unknown session op %d", op.Kind)
	}
	return nil
}

// VerifyAccount recomputes the account's full audit chain. It returns the
// number of records checked.
func (e *Engine) VerifyAccount(ctx context.Context, accountID int64) (int, error) {
	chain, err := e.audit.Chain(ctx, accountID)
	if err != nil {
		return 0, mapError(err)
	}
	if err := VerifyChain(chain); err != nil {
		return len(chain), err
	}
	return len(chain), nil
}

// updatedAccount mirrors the committed mutations onto the locked row so the
// caller gets the post-commit view without a reread.
func updatedAccount(acct accounts.Account, entry Entry) accounts.Account {
	acct.Balance += entry.Amount
	if entry.Settle != nil {
		acct.Balance += entry.Settle.Amount
	}
	acct.TotalDeposited += entry.Stats.Deposited
	acct.TotalWagered += entry.Stats.Wagered
	acct.TotalWon += entry.Stats.Won
	acct.Profit += entry.Stats.Profit
	if bet := entry.Stats.Bet; bet != nil {
		acct.LastBetAmount = bet.Amount
		acct.LastBetWon = bet.Won
		if bet.Won {
			acct.WinStreak++
			acct.LossStreak = 0
		} else {
			acct.WinStreak = 0
			acct.LossStreak++
		}
	}
	return acct
}

func mapError(err error) error {
	switch {
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, accounts.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, sessions.ErrSessionConflict):
		return ErrSessionConflict
	case errors.Is(err, sessions.ErrSessionNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
}
