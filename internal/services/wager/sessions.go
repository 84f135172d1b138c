package wager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stakeworks/wagerd/internal/games/blackjack"
	"github.com/stakeworks/wagerd/internal/games/mines"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/sessions"
	"github.com/stakeworks/wagerd/internal/session"
)

func (s *Service) sessionOfKind(ctx context.Context, accountID int64, kind session.Kind) (session.Record, error) {
	rec, err := s.sessions.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return session.Record{}, ledger.ErrSessionNotFound
		}
		return session.Record{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	if rec.Kind != kind {
		// A different game is in flight; the client needs a resync.
		return session.Record{}, ledger.ErrSessionConflict
	}
	return rec, nil
}

// Resync returns the public projection of the account's active session, for
// a client recovering after a disconnect.
func (s *Service) Resync(ctx context.Context, accountID int64) (session.Public, error) {
	rec, err := s.sessions.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return session.Public{}, ledger.ErrSessionNotFound
		}
		return session.Public{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}

	pub := session.Public{
		ID:        rec.ID,
		Kind:      rec.Kind,
		Status:    rec.Status,
		Stake:     formatAmount(rec.Stake),
		Revision:  rec.Revision,
		SeedHash:  rec.SeedHash,
		CreatedAt: rec.CreatedAt,
	}

	switch rec.Kind {
	case session.KindMines:
		var state mines.State
		if err := json.Unmarshal(rec.State, &state); err == nil {
			pub.GameState = map[string]interface{}{
				"mine_count": state.MineCount,
				"revealed":   state.Revealed,
				"multiplier": mines.Multiplier(s.opts.Mines, state.MineCount, state.SafeReveals()),
			}
		}
	case session.KindBlackjack:
		var state blackjack.State
		if err := json.Unmarshal(rec.State, &state); err == nil {
			pub.GameState = map[string]interface{}{
				"player_hand":   state.Player,
				"player_total":  state.PlayerTotal(),
				"dealer_upcard": state.DealerUpcard(),
				"phase":         state.Phase,
			}
		}
	}

	return pub, nil
}

// Forfeit settles the account's session as a full loss: the stake stays
// debited, no payout, session gone.
func (s *Service) Forfeit(ctx context.Context, accountID int64) (int64, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()

	return s.forfeitLocked(ctx, accountID)
}

func (s *Service) forfeitLocked(ctx context.Context, accountID int64) (int64, error) {
	rec, err := s.sessions.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return 0, ledger.ErrSessionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}

	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		GameTag:   string(rec.Kind),
		Stats:     accounts.StatsDelta{Bet: &accounts.BetOutcome{Amount: rec.Stake, Won: false}},
		Session:   ledger.SessionOp{Kind: ledger.OpDelete, Record: rec},
	})
	if err != nil {
		return 0, err
	}

	s.notify(hooks.Event{
		Kind:      hooks.EventRoundSettled,
		AccountID: accountID,
		GameTag:   string(rec.Kind),
		Stake:     rec.Stake,
		Payout:    0,
	})
	return snap.Account.Balance, nil
}

// SweepIdleSessions force-forfeits every session idle beyond the configured
// window. Per-account failures are logged and do not stop the sweep.
func (s *Service) SweepIdleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-s.opts.IdleTimeout)

	ids, err := s.sessions.IdleAccountsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("idle session sweep failed", "error", err)
		return
	}

	for _, accountID := range ids {
		release, err := s.lock(ctx, accountID)
		if err != nil {
			slog.Warn("sweep skipped busy account", "account_id", accountID, "error", err)
			continue
		}

		_, err = s.forfeitLocked(ctx, accountID)
		release()
		if err != nil && !errors.Is(err, ledger.ErrSessionNotFound) {
			slog.Error("forced forfeiture failed", "account_id", accountID, "error", err)
			continue
		}
		slog.Info("idle session forfeited", "account_id", accountID)
	}
}

// RunSweeper ticks SweepIdleSessions until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdleSessions(ctx)
		}
	}
}
