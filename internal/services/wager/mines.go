package wager

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stakeworks/wagerd/internal/games/mines"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/internal/session"
)

// MinesView is the public projection of a mines round. Mine positions stay
// server side until the round ends; Mines is filled only on a hit.
type MinesView struct {
	SessionID  string
	MineCount  int
	Revealed   []int
	Multiplier float64
	Revision   int
	Tier       risk.Tier
	SeedHash   string

	// Terminal fields.
	Settled    bool
	Hit        bool
	HitTile    int
	Mines      []int
	Payout     int64
	Balance    int64
	ServerSeed string
}

// MinesOpen stakes and creates a mines session with mineCount mines hidden
// in the grid.
func (s *Service) MinesOpen(ctx context.Context, accountID, stake int64, mineCount int) (MinesView, error) {
	if stake <= 0 || mineCount < mines.MinMines || mineCount > mines.MaxMines {
		return MinesView{}, ErrInvalidStake
	}

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}
	defer release()

	acct, err := s.account(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}
	verdict := s.classify(acct, stake)

	// The layout derives from the server seed so the disclosed seed lets
	// the client reconstruct it after settlement.
	seed := rng.NewServerSeed()
	state := mines.NewState(rng.NewStream(seed), mineCount)
	raw, err := json.Marshal(state)
	if err != nil {
		return MinesView{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}

	rec := session.New(accountID, session.KindMines, stake, verdict.Tier, raw, seed, rng.SeedHash(seed))

	gameTag := string(session.KindMines)
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    -stake,
		Kind:      audit.KindStake,
		GameTag:   gameTag,
		Stats:     accounts.StatsDelta{Wagered: stake, Profit: -stake},
		Session:   ledger.SessionOp{Kind: ledger.OpCreate, Record: rec},
	})
	if err != nil {
		return MinesView{}, err
	}
	s.notify(hooks.Event{Kind: hooks.EventStakePlaced, AccountID: accountID, GameTag: gameTag, Stake: stake})

	return MinesView{
		SessionID:  rec.ID.String(),
		MineCount:  mineCount,
		Revealed:   []int{},
		Multiplier: mines.Multiplier(s.opts.Mines, mineCount, 0),
		Tier:       verdict.Tier,
		SeedHash:   rec.SeedHash,
		Balance:    snap.Account.Balance,
	}, nil
}

// MinesReveal opens one tile. Re-revealing an already open tile replays the
// current state without touching the session. A mine hit settles the round
// as a loss; clearing the last safe tile auto-settles as a win.
func (s *Service) MinesReveal(ctx context.Context, accountID int64, tile int) (MinesView, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}
	defer release()

	rec, state, err := s.minesSession(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}

	relocPick := s.opts.RNG.Intn(state.MineCount)
	outcome := mines.Reveal(&state, s.opts.Mines, tile, rec.Tier, s.opts.RNG.Float64(), relocPick)

	if outcome.Replayed {
		acct, err := s.account(ctx, accountID)
		if err != nil {
			return MinesView{}, err
		}
		view := s.minesProjection(rec, state, outcome.Multiplier)
		view.Balance = acct.Balance
		return view, nil
	}

	if outcome.Hit {
		snap, err := s.settleMines(ctx, rec, 0)
		if err != nil {
			return MinesView{}, err
		}
		view := s.minesProjection(rec, state, outcome.Multiplier)
		view.Settled = true
		view.Hit = true
		view.HitTile = tile
		view.Mines = state.Mines
		view.Balance = snap.Account.Balance
		view.ServerSeed = rec.ServerSeed
		return view, nil
	}

	if outcome.Cleared {
		payout := minesPayout(rec.Stake, outcome.Multiplier)
		snap, err := s.settleMines(ctx, rec, payout)
		if err != nil {
			return MinesView{}, err
		}
		view := s.minesProjection(rec, state, outcome.Multiplier)
		view.Settled = true
		view.Mines = state.Mines
		view.Payout = payout
		view.Balance = snap.Account.Balance
		view.ServerSeed = rec.ServerSeed
		return view, nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return MinesView{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	rec.Advance(raw)

	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		GameTag:   string(session.KindMines),
		Session:   ledger.SessionOp{Kind: ledger.OpUpdate, Record: rec},
	})
	if err != nil {
		return MinesView{}, err
	}

	view := s.minesProjection(rec, state, outcome.Multiplier)
	view.Balance = snap.Account.Balance
	return view, nil
}

// MinesCashout settles the round at the current multiplier.
func (s *Service) MinesCashout(ctx context.Context, accountID int64) (MinesView, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}
	defer release()

	rec, state, err := s.minesSession(ctx, accountID)
	if err != nil {
		return MinesView{}, err
	}

	mult := mines.Multiplier(s.opts.Mines, state.MineCount, state.SafeReveals())
	payout := minesPayout(rec.Stake, mult)

	snap, err := s.settleMines(ctx, rec, payout)
	if err != nil {
		return MinesView{}, err
	}

	view := s.minesProjection(rec, state, mult)
	view.Settled = true
	view.Mines = state.Mines
	view.Payout = payout
	view.Balance = snap.Account.Balance
	view.ServerSeed = rec.ServerSeed
	return view, nil
}

func (s *Service) minesSession(ctx context.Context, accountID int64) (session.Record, mines.State, error) {
	rec, err := s.sessionOfKind(ctx, accountID, session.KindMines)
	if err != nil {
		return session.Record{}, mines.State{}, err
	}

	var state mines.State
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return session.Record{}, mines.State{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return rec, state, nil
}

// settleMines deletes the session and credits the payout (zero for a loss)
// in one commit.
func (s *Service) settleMines(ctx context.Context, rec session.Record, payout int64) (ledger.Snapshot, error) {
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: rec.AccountID,
		Amount:    payout,
		Kind:      audit.KindPayout,
		GameTag:   string(session.KindMines),
		Stats: accounts.StatsDelta{
			Won:    payout,
			Profit: payout,
			Bet:    betOutcome(rec.Stake, payout),
		},
		Session: ledger.SessionOp{Kind: ledger.OpDelete, Record: rec},
	})
	if err != nil {
		return ledger.Snapshot{}, err
	}

	s.notify(hooks.Event{
		Kind:      hooks.EventRoundSettled,
		AccountID: rec.AccountID,
		GameTag:   string(session.KindMines),
		Stake:     rec.Stake,
		Payout:    payout,
	})
	return snap, nil
}

func (s *Service) minesProjection(rec session.Record, state mines.State, mult float64) MinesView {
	return MinesView{
		SessionID:  rec.ID.String(),
		MineCount:  state.MineCount,
		Revealed:   state.Revealed,
		Multiplier: mult,
		Revision:   rec.Revision,
		Tier:       rec.Tier,
		SeedHash:   rec.SeedHash,
	}
}

func minesPayout(stake int64, mult float64) int64 {
	return int64(math.Round(float64(stake) * mult))
}
