package wager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stakeworks/wagerd/internal/games/blackjack"
	"github.com/stakeworks/wagerd/internal/games/cards"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/internal/session"
)

// BlackjackView is the public projection of a round in progress or just
// settled. The dealer's hole card and the deck stay server side until
// settlement.
type BlackjackView struct {
	SessionID    string
	PlayerHand   []cards.Card
	PlayerTotal  int
	DealerUpcard cards.Card
	Phase        string
	Revision     int
	Tier         risk.Tier
	SeedHash     string

	// Terminal fields.
	Settled     bool
	DealerHand  []cards.Card
	DealerTotal int
	Outcome     string
	Payout      int64
	Balance     int64
	ServerSeed  string
}

// BlackjackDeal stakes and deals the opening hands. A natural settles
// immediately; otherwise a session is created and the phase tells the
// client whether insurance is on offer.
func (s *Service) BlackjackDeal(ctx context.Context, accountID, stake int64) (BlackjackView, error) {
	if stake <= 0 {
		return BlackjackView{}, ErrInvalidStake
	}

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}
	defer release()

	if err := s.requireNoSession(ctx, accountID); err != nil {
		return BlackjackView{}, err
	}

	acct, err := s.account(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}
	verdict := s.classify(acct, stake)

	seed := rng.NewServerSeed()
	state := blackjack.Deal(rng.NewStream(seed))
	rec := session.New(accountID, session.KindBlackjack, stake, verdict.Tier, nil, seed, rng.SeedHash(seed))
	gameTag := string(session.KindBlackjack)

	if state.PlayerBlackjack() {
		// Natural: the stake debit and the payout credit commit together,
		// without ever persisting a session.
		result := blackjack.Settle(&state, s.opts.Blackjack, rec.Tier, s.opts.RNG.Float64(), stake)
		snap, err := s.engine.Apply(ctx, ledger.Entry{
			AccountID: accountID,
			Amount:    -stake,
			Kind:      audit.KindStake,
			GameTag:   gameTag,
			Stats: accounts.StatsDelta{
				Wagered: stake,
				Won:     result.Payout,
				Profit:  result.Payout - stake,
				Bet:     betOutcome(stake, result.Payout),
			},
			Settle: &ledger.Leg{Amount: result.Payout, Kind: audit.KindPayout},
		})
		if err != nil {
			return BlackjackView{}, err
		}
		s.notify(hooks.Event{Kind: hooks.EventStakePlaced, AccountID: accountID, GameTag: gameTag, Stake: stake})
		s.notify(hooks.Event{Kind: hooks.EventRoundSettled, AccountID: accountID, GameTag: gameTag, Stake: stake, Payout: result.Payout})

		view := blackjackProjection(rec, state)
		view.Settled = true
		view.DealerHand = result.DealerHand
		view.DealerTotal = result.DealerTotal
		view.Outcome = result.Outcome
		view.Payout = result.Payout
		view.Balance = snap.Account.Balance
		view.ServerSeed = seed
		return view, nil
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return BlackjackView{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	rec.State = raw

	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    -stake,
		Kind:      audit.KindStake,
		GameTag:   gameTag,
		Stats:     accounts.StatsDelta{Wagered: stake, Profit: -stake},
		Session:   ledger.SessionOp{Kind: ledger.OpCreate, Record: rec},
	})
	if err != nil {
		return BlackjackView{}, err
	}
	s.notify(hooks.Event{Kind: hooks.EventStakePlaced, AccountID: accountID, GameTag: gameTag, Stake: stake})

	view := blackjackProjection(rec, state)
	view.Balance = snap.Account.Balance
	return view, nil
}

// BlackjackInsurance resolves the insurance offer. Taking it debits half
// the stake as a separate wager; declining just advances the phase.
func (s *Service) BlackjackInsurance(ctx context.Context, accountID int64, take bool) (BlackjackView, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}
	defer release()

	rec, state, err := s.blackjackSession(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}

	// Replay of an already-decided offer returns current state untouched.
	if state.Phase != blackjack.PhaseInsurance {
		acct, err := s.account(ctx, accountID)
		if err != nil {
			return BlackjackView{}, err
		}
		view := blackjackProjection(rec, state)
		view.Balance = acct.Balance
		return view, nil
	}

	entry := ledger.Entry{
		AccountID: accountID,
		GameTag:   string(session.KindBlackjack),
	}

	if take {
		cost := rec.Stake / 2
		if err := blackjack.Insure(&state, cost); err != nil {
			return BlackjackView{}, errors.Join(ErrInvalidStake, err)
		}
		entry.Amount = -cost
		entry.Kind = audit.KindStake
		entry.Stats = accounts.StatsDelta{Wagered: cost, Profit: -cost}
	} else {
		if err := blackjack.Decline(&state); err != nil {
			return BlackjackView{}, errors.Join(ErrInvalidStake, err)
		}
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return BlackjackView{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	rec.Advance(raw)
	entry.Session = ledger.SessionOp{Kind: ledger.OpUpdate, Record: rec}

	snap, err := s.engine.Apply(ctx, entry)
	if err != nil {
		return BlackjackView{}, err
	}

	view := blackjackProjection(rec, state)
	view.Balance = snap.Account.Balance
	return view, nil
}

// BlackjackHit draws one card. A bust or the card limit settles the round
// in the same call.
func (s *Service) BlackjackHit(ctx context.Context, accountID int64) (BlackjackView, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}
	defer release()

	rec, state, err := s.blackjackSession(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}

	res, err := blackjack.Hit(&state, s.opts.Blackjack, rec.Tier, s.opts.RNG.Float64())
	if err != nil {
		return BlackjackView{}, errors.Join(ErrInvalidStake, err)
	}

	if res.Done {
		return s.settleBlackjack(ctx, rec, state)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return BlackjackView{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	rec.Advance(raw)

	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		GameTag:   string(session.KindBlackjack),
		Session:   ledger.SessionOp{Kind: ledger.OpUpdate, Record: rec},
	})
	if err != nil {
		return BlackjackView{}, err
	}

	view := blackjackProjection(rec, state)
	view.Balance = snap.Account.Balance
	return view, nil
}

// BlackjackStand stands the player and settles the round.
func (s *Service) BlackjackStand(ctx context.Context, accountID int64) (BlackjackView, error) {
	release, err := s.lock(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}
	defer release()

	rec, state, err := s.blackjackSession(ctx, accountID)
	if err != nil {
		return BlackjackView{}, err
	}

	return s.settleBlackjack(ctx, rec, state)
}

func (s *Service) settleBlackjack(ctx context.Context, rec session.Record, state blackjack.State) (BlackjackView, error) {
	insurance := state.InsuranceBet
	result := blackjack.Settle(&state, s.opts.Blackjack, rec.Tier, s.opts.RNG.Float64(), rec.Stake)

	snap, err := s.settleBlackjackEntry(ctx, rec.AccountID, rec.Stake+insurance, result.Payout,
		ledger.SessionOp{Kind: ledger.OpDelete, Record: rec})
	if err != nil {
		return BlackjackView{}, err
	}

	view := blackjackProjection(rec, state)
	view.Settled = true
	view.DealerHand = result.DealerHand
	view.DealerTotal = result.DealerTotal
	view.Outcome = result.Outcome
	view.Payout = result.Payout
	view.Balance = snap.Account.Balance
	view.ServerSeed = rec.ServerSeed
	return view, nil
}

// settleBlackjackEntry commits the payout credit (or the zero-payout
// settle) together with the session removal.
func (s *Service) settleBlackjackEntry(ctx context.Context, accountID, staked, payout int64, op ledger.SessionOp) (ledger.Snapshot, error) {
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    payout,
		Kind:      audit.KindPayout,
		GameTag:   string(session.KindBlackjack),
		Stats: accounts.StatsDelta{
			Won:    payout,
			Profit: payout,
			Bet:    betOutcome(staked, payout),
		},
		Session: op,
	})
	if err != nil {
		return ledger.Snapshot{}, err
	}

	s.notify(hooks.Event{
		Kind:      hooks.EventRoundSettled,
		AccountID: accountID,
		GameTag:   string(session.KindBlackjack),
		Stake:     staked,
		Payout:    payout,
	})
	return snap, nil
}

func (s *Service) blackjackSession(ctx context.Context, accountID int64) (session.Record, blackjack.State, error) {
	rec, err := s.sessionOfKind(ctx, accountID, session.KindBlackjack)
	if err != nil {
		return session.Record{}, blackjack.State{}, err
	}

	var state blackjack.State
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return session.Record{}, blackjack.State{}, fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return rec, state, nil
}

func blackjackProjection(rec session.Record, state blackjack.State) BlackjackView {
	return BlackjackView{
		SessionID:    rec.ID.String(),
		PlayerHand:   state.Player,
		PlayerTotal:  state.PlayerTotal(),
		DealerUpcard: state.DealerUpcard(),
		Phase:        state.Phase,
		Revision:     rec.Revision,
		Tier:         rec.Tier,
		SeedHash:     rec.SeedHash,
	}
}
