package wager

import (
	"context"
	"errors"

	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
)

// Balance returns the account's current balance without locking.
func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	acct, err := s.account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Deposit credits external funds onto the account.
func (s *Service) Deposit(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidStake
	}

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    amount,
		Kind:      audit.KindDeposit,
		Stats:     accounts.StatsDelta{Deposited: amount},
	})
	if err != nil {
		return 0, err
	}

	s.notify(hooks.Event{Kind: hooks.EventDepositMade, AccountID: accountID, Stake: amount})
	return snap.Account.Balance, nil
}

// Withdraw debits funds from the account. The conditional update rejects
// overdrafts.
func (s *Service) Withdraw(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidStake
	}

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	// Funds backing an open session are already debited, so a withdrawal
	// can never strand a stake.
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    -amount,
		Kind:      audit.KindWithdrawal,
	})
	if err != nil {
		return 0, err
	}

	return snap.Account.Balance, nil
}

// AuditReport is the result of recomputing an account's hash chain.
type AuditReport struct {
	Records int
	Intact  bool
	Detail  string
}

// VerifyAudit recomputes the account's full audit chain.
func (s *Service) VerifyAudit(ctx context.Context, accountID int64) (AuditReport, error) {
	n, err := s.engine.VerifyAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrChainBroken) {
			return AuditReport{Records: n, Intact: false, Detail: err.Error()}, nil
		}
		return AuditReport{}, err
	}
	return AuditReport{Records: n, Intact: true}, nil
}
