// Package wager orchestrates every wagering action: per-account locking,
// risk classification, game resolution and the atomic ledger commit, in
// that order. It is the only caller of the ledger engine.
package wager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stakeworks/wagerd/internal/games/baccarat"
	"github.com/stakeworks/wagerd/internal/games/blackjack"
	"github.com/stakeworks/wagerd/internal/games/mines"
	"github.com/stakeworks/wagerd/internal/games/slots"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	pgaccounts "github.com/stakeworks/wagerd/internal/repos/accounts/postgres"
	"github.com/stakeworks/wagerd/internal/repos/sessions"
	pgsessions "github.com/stakeworks/wagerd/internal/repos/sessions/postgres"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/pkg/keyedmutex"
)

// Service-level sentinels on top of the ledger taxonomy.
var (
	// ErrBusy: another action for the same account is in flight and the
	// bounded lock wait expired. Immediate retry is appropriate.
	ErrBusy = errors.New("busy, try again")
	// ErrInvalidStake covers non-positive or malformed stakes and
	// game parameters. Mapped to a 400 at the API edge.
	ErrInvalidStake = errors.New("invalid stake")
)

// Options carries the runtime tunables and game configurations.
type Options struct {
	LockWait    time.Duration
	IdleTimeout time.Duration

	Risk      risk.Config
	Slots     slots.Config
	Mines     mines.Config
	Baccarat  baccarat.Config
	Blackjack blackjack.Config

	RNG   rng.RNG
	Hooks *hooks.Dispatcher
}

func DefaultOptions() Options {
	return Options{
		LockWait:    2 * time.Second,
		IdleTimeout: 15 * time.Minute,
		Risk:        risk.DefaultConfig(),
		Slots:       slots.DefaultConfig(),
		Mines:       mines.DefaultConfig(),
		Baccarat:    baccarat.DefaultConfig(),
		Blackjack:   blackjack.DefaultConfig(),
		RNG:         rng.Crypto{},
	}
}

type Service struct {
	db       *sql.DB
	engine   *ledger.Engine
	accounts accounts.Accounts
	sessions sessions.Sessions
	locks    *keyedmutex.KeyedMutex
	opts     Options
}

func New(db *sql.DB, opts Options) *Service {
	if opts.RNG == nil {
		opts.RNG = rng.Crypto{}
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultOptions().LockWait
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultOptions().IdleTimeout
	}
	return &Service{
		db:       db,
		engine:   ledger.New(db),
		accounts: pgaccounts.New(db),
		sessions: pgsessions.New(db),
		locks:    keyedmutex.New(opts.LockWait),
		opts:     opts,
	}
}

// lock serializes wagering actions per account, bounded by the configured
// wait. Contention beyond the bound surfaces as ErrBusy.
func (s *Service) lock(ctx context.Context, accountID int64) (func(), error) {
	release, err := s.locks.Acquire(ctx, accountID)
	if err != nil {
		if errors.Is(err, keyedmutex.ErrTimeout) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	return release, nil
}

func (s *Service) account(ctx context.Context, accountID int64) (accounts.Account, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return accounts.Account{}, ledger.ErrAccountNotFound
		}
		return accounts.Account{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return acct, nil
}

// classify scores the proposed stake against the account's current state.
func (s *Service) classify(acct accounts.Account, stake int64) risk.Verdict {
	return s.opts.Risk.Classify(riskSnapshot(acct), stake)
}

func riskSnapshot(a accounts.Account) risk.Snapshot {
	return risk.Snapshot{
		Balance:        a.Balance,
		TotalDeposited: a.TotalDeposited,
		Profit:         a.Profit,
		LastBetAmount:  a.LastBetAmount,
		WinStreak:      a.WinStreak,
		TotalWagered:   a.TotalWagered,
		TotalWon:       a.TotalWon,
	}
}

// requireNoSession guards single-step games: any session in flight means
// the client must settle or forfeit it first.
func (s *Service) requireNoSession(ctx context.Context, accountID int64) error {
	_, err := s.sessions.GetByAccount(ctx, accountID)
	if err == nil {
		return ledger.ErrSessionConflict
	}
	if errors.Is(err, sessions.ErrSessionNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
}

// betOutcome builds the streak-counter update for a settled bet. A push
// (payout equal to the total staked) leaves the streaks alone.
func betOutcome(staked, payout int64) *accounts.BetOutcome {
	if payout == staked {
		return nil
	}
	return &accounts.BetOutcome{Amount: staked, Won: payout > staked}
}

func (s *Service) notify(ev hooks.Event) {
	if s.opts.Hooks != nil {
		s.opts.Hooks.Enqueue(ev)
	}
}

// formatAmount renders minor units as a 2-decimal string for responses.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
