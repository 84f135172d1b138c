package wager

import (
	"context"

	"github.com/stakeworks/wagerd/internal/games/slots"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/internal/session"
)

// SlotsResult is a settled spin. ServerSeed is disclosed with it so the
// client can check it against SeedHash.
type SlotsResult struct {
	Category   slots.Category
	Reels      [3]string
	Payout     int64
	Balance    int64
	Tier       risk.Tier
	Tags       []string
	SeedHash   string
	ServerSeed string
}

// SpinSlots opens and settles a reel spin in one call. The stake debit and
// the payout credit commit as a single ledger entry, and the draw derives
// from the disclosed server seed so the client can replay it. An in-flight
// multi-step session blocks the spin.
func (s *Service) SpinSlots(ctx context.Context, accountID, stake int64) (SlotsResult, error) {
	if stake <= 0 {
		return SlotsResult{}, ErrInvalidStake
	}

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return SlotsResult{}, err
	}
	defer release()

	if err := s.requireNoSession(ctx, accountID); err != nil {
		return SlotsResult{}, err
	}

	acct, err := s.account(ctx, accountID)
	if err != nil {
		return SlotsResult{}, err
	}
	verdict := s.classify(acct, stake)

	seed := rng.NewServerSeed()
	spin := slots.Spin(rng.NewStream(seed), s.opts.Slots, stake, verdict.Tier)

	gameTag := string(session.KindSlots)
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    -stake,
		Kind:      audit.KindStake,
		GameTag:   gameTag,
		Stats: accounts.StatsDelta{
			Wagered: stake,
			Won:     spin.Payout,
			Profit:  spin.Payout - stake,
			Bet:     betOutcome(stake, spin.Payout),
		},
		Settle: &ledger.Leg{Amount: spin.Payout, Kind: audit.KindPayout},
	})
	if err != nil {
		return SlotsResult{}, err
	}
	s.notify(hooks.Event{Kind: hooks.EventStakePlaced, AccountID: accountID, GameTag: gameTag, Stake: stake})
	s.notify(hooks.Event{Kind: hooks.EventRoundSettled, AccountID: accountID, GameTag: gameTag, Stake: stake, Payout: spin.Payout})

	return SlotsResult{
		Category:   spin.PublicCategory(),
		Reels:      spin.Reels,
		Payout:     spin.Payout,
		Balance:    snap.Account.Balance,
		Tier:       verdict.Tier,
		Tags:       verdict.Tags,
		SeedHash:   rng.SeedHash(seed),
		ServerSeed: seed,
	}, nil
}
