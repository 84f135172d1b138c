package wager

import (
	"context"
	"errors"

	"github.com/stakeworks/wagerd/internal/games/baccarat"
	"github.com/stakeworks/wagerd/internal/games/cards"
	"github.com/stakeworks/wagerd/internal/hooks"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/internal/session"
)

// BaccaratResult is a settled round with all sub-wagers resolved.
type BaccaratResult struct {
	PlayerHand  []cards.Card
	BankerHand  []cards.Card
	PlayerScore int
	BankerScore int
	Winner      string
	PlayerPair  bool
	BankerPair  bool
	Payout      int64
	Balance     int64
	Tier        risk.Tier
	Tags        []string
	SeedHash    string
	ServerSeed  string
}

// BaccaratPlay stakes the main bet plus any pair side bets, resolves the
// tableau and settles, all in one call. The combined stake debit and the
// combined payout credit commit as one ledger entry, and the shoe derives
// from the disclosed server seed.
func (s *Service) BaccaratPlay(ctx context.Context, accountID int64, bets baccarat.Bets) (BaccaratResult, error) {
	if err := bets.Validate(); err != nil {
		return BaccaratResult{}, errors.Join(ErrInvalidStake, err)
	}
	total := bets.Total()

	release, err := s.lock(ctx, accountID)
	if err != nil {
		return BaccaratResult{}, err
	}
	defer release()

	if err := s.requireNoSession(ctx, accountID); err != nil {
		return BaccaratResult{}, err
	}

	acct, err := s.account(ctx, accountID)
	if err != nil {
		return BaccaratResult{}, err
	}
	verdict := s.classify(acct, total)

	seed := rng.NewServerSeed()
	res, err := baccarat.Play(rng.NewStream(seed), s.opts.Baccarat, bets, verdict.Tier, s.opts.RNG.Float64())
	if err != nil {
		return BaccaratResult{}, errors.Join(ErrInvalidStake, err)
	}

	gameTag := string(session.KindBaccarat)
	snap, err := s.engine.Apply(ctx, ledger.Entry{
		AccountID: accountID,
		Amount:    -total,
		Kind:      audit.KindStake,
		GameTag:   gameTag,
		Stats: accounts.StatsDelta{
			Wagered: total,
			Won:     res.Payout,
			Profit:  res.Payout - total,
			Bet:     betOutcome(total, res.Payout),
		},
		Settle: &ledger.Leg{Amount: res.Payout, Kind: audit.KindPayout},
	})
	if err != nil {
		return BaccaratResult{}, err
	}
	s.notify(hooks.Event{Kind: hooks.EventStakePlaced, AccountID: accountID, GameTag: gameTag, Stake: total})
	s.notify(hooks.Event{Kind: hooks.EventRoundSettled, AccountID: accountID, GameTag: gameTag, Stake: total, Payout: res.Payout})

	return BaccaratResult{
		PlayerHand:  res.PlayerHand,
		BankerHand:  res.BankerHand,
		PlayerScore: res.PlayerScore,
		BankerScore: res.BankerScore,
		Winner:      res.Winner,
		PlayerPair:  res.PlayerPair,
		BankerPair:  res.BankerPair,
		Payout:      res.Payout,
		Balance:     snap.Account.Balance,
		Tier:        verdict.Tier,
		Tags:        verdict.Tags,
		SeedHash:    rng.SeedHash(seed),
		ServerSeed:  seed,
	}, nil
}
