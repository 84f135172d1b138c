// Package baccarat implements the banker/player card-comparison game. One
// call resolves the whole round: main bet plus optional pair side bets are
// staked together and settled together.
package baccarat

import (
	"errors"
	"fmt"

	"github.com/stakeworks/wagerd/internal/games/cards"
	"github.com/stakeworks/wagerd/internal/games/policy"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
)

const shoeDecks = 6

// Main bet sides.
const (
	SidePlayer = "player"
	SideBanker = "banker"
	SideTie    = "tie"
)

var ErrInvalidBets = errors.New("baccarat: invalid bets")

// Config carries payout rates and the bias gating probabilities. Payouts are
// to-1 multipliers; the banker commission is a percentage of banker winnings.
type Config struct {
	TiePayout           int64 `env:"BACCARAT_TIE_PAYOUT" envDefault:"8"`
	PairPayout          int64 `env:"BACCARAT_PAIR_PAYOUT" envDefault:"11"`
	BankerCommissionPct int64 `env:"BACCARAT_BANKER_COMMISSION_PCT" envDefault:"5"`

	BiasProbs policy.TierProbs `env:"-"`
}

func DefaultConfig() Config {
	return Config{
		TiePayout:           8,
		PairPayout:          11,
		BankerCommissionPct: 5,
		BiasProbs:           policy.TierProbs{Normal: 0, High: 0.15, Extreme: 0.35},
	}
}

// Bets holds the concurrent sub-wagers of one round, in minor units.
type Bets struct {
	Main       string `json:"main"`
	MainStake  int64  `json:"main_stake"`
	PlayerPair int64  `json:"player_pair"`
	BankerPair int64  `json:"banker_pair"`
}

// Total returns the combined stake debited at round open.
func (b Bets) Total() int64 { return b.MainStake + b.PlayerPair + b.BankerPair }

func (b Bets) Validate() error {
	if b.MainStake <= 0 {
		return fmt.Errorf("%w: main stake must be positive", ErrInvalidBets)
	}
	if b.Main != SidePlayer && b.Main != SideBanker && b.Main != SideTie {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidBets, b.Main)
	}
	if b.PlayerPair < 0 || b.BankerPair < 0 {
		return fmt.Errorf("%w: pair stakes must not be negative", ErrInvalidBets)
	}
	return nil
}

// Result is the settled round.
type Result struct {
	PlayerHand  []cards.Card `json:"player_hand"`
	BankerHand  []cards.Card `json:"banker_hand"`
	PlayerScore int          `json:"player_score"`
	BankerScore int          `json:"banker_score"`
	Winner      string       `json:"winner"`
	PlayerPair  bool         `json:"player_pair"`
	BankerPair  bool         `json:"banker_pair"`
	Payout      int64        `json:"-"`
	Biased      bool         `json:"-"`
}

// Play shuffles a fresh shoe with r and resolves the round. biasRoll is a
// pre-drawn uniform [0,1) used only for tier gating.
func Play(r rng.RNG, cfg Config, bets Bets, tier risk.Tier, biasRoll float64) (Result, error) {
	shoe := cards.NewShoe(r, shoeDecks)
	return PlayShoe(shoe, cfg, bets, tier, biasRoll)
}

// PlayShoe resolves a round from an already-shuffled shoe. With the shoe,
// tier and roll fixed the result is fully deterministic.
//
// Deal order from the front of the shoe: player, banker, player, banker,
// then third cards in tableau order.
func PlayShoe(shoe []cards.Card, cfg Config, bets Bets, tier risk.Tier, biasRoll float64) (Result, error) {
	if err := bets.Validate(); err != nil {
		return Result{}, err
	}
	if len(shoe) < 6 {
		return Result{}, fmt.Errorf("%w: shoe too small", ErrInvalidBets)
	}

	var res Result
	if policy.Gate(cfg.BiasProbs, tier, biasRoll) {
		res.Biased = biasShoe(shoe, bets)
	}

	player := []cards.Card{shoe[0], shoe[2]}
	banker := []cards.Card{shoe[1], shoe[3]}
	next := 4

	deal := func() cards.Card {
		c := shoe[next]
		next++
		return c
	}

	ps, bs := cards.BaccaratTotal(player), cards.BaccaratTotal(banker)
	if ps < 8 && bs < 8 {
		playerThird := -1
		if ps <= 5 {
			c := deal()
			player = append(player, c)
			playerThird = c.BaccaratValue()
		}
		if bankerDraws(bs, playerThird) {
			banker = append(banker, deal())
		}
		ps, bs = cards.BaccaratTotal(player), cards.BaccaratTotal(banker)
	}

	res.PlayerHand = player
	res.BankerHand = banker
	res.PlayerScore = ps
	res.BankerScore = bs
	res.PlayerPair = player[0].Rank == player[1].Rank
	res.BankerPair = banker[0].Rank == banker[1].Rank

	switch {
	case ps > bs:
		res.Winner = SidePlayer
	case bs > ps:
		res.Winner = SideBanker
	default:
		res.Winner = SideTie
	}

	res.Payout = payout(cfg, bets, res)
	return res, nil
}

// bankerDraws applies the standard tableau. playerThird is -1 when the
// player stood.
func bankerDraws(bankerScore, playerThird int) bool {
	if playerThird < 0 {
		return bankerScore <= 5
	}
	switch bankerScore {
	case 0, 1, 2:
		return true
	case 3:
		return playerThird != 8
	case 4:
		return playerThird >= 2 && playerThird <= 7
	case 5:
		return playerThird >= 4 && playerThird <= 7
	case 6:
		return playerThird == 6 || playerThird == 7
	default:
		return false
	}
}

// payout returns the total credit for the round, stakes included. A tie
// pushes main bets on player or banker.
func payout(cfg Config, bets Bets, res Result) int64 {
	var total int64
	switch {
	case bets.Main == res.Winner && res.Winner == SidePlayer:
		total += bets.MainStake * 2
	case bets.Main == res.Winner && res.Winner == SideBanker:
		win := bets.MainStake * (100 - cfg.BankerCommissionPct) / 100
		total += bets.MainStake + win
	case bets.Main == res.Winner && res.Winner == SideTie:
		total += bets.MainStake * (1 + cfg.TiePayout)
	case res.Winner == SideTie:
		total += bets.MainStake
	}
	if res.PlayerPair && bets.PlayerPair > 0 {
		total += bets.PlayerPair * (1 + cfg.PairPayout)
	}
	if res.BankerPair && bets.BankerPair > 0 {
		total += bets.BankerPair * (1 + cfg.PairPayout)
	}
	return total
}

// biasShoe rearranges cards within the shoe before dealing. Two adjustments,
// both house-favoring and both pure swaps:
//
//   - a staked pair side bet whose initial two cards match is broken by
//     swapping the second card with the first later card of another rank;
//   - a natural 8 or 9 on the bettor's main side is suppressed by swapping
//     the side's second card with the first later card that drops the total
//     below 8.
//
// Returns whether any swap happened.
func biasShoe(shoe []cards.Card, bets Bets) bool {
	swapped := false

	if bets.PlayerPair > 0 && shoe[0].Rank == shoe[2].Rank {
		swapped = swapAway(shoe, 2, func(c cards.Card) bool { return c.Rank != shoe[0].Rank }) || swapped
	}
	if bets.BankerPair > 0 && shoe[1].Rank == shoe[3].Rank {
		swapped = swapAway(shoe, 3, func(c cards.Card) bool { return c.Rank != shoe[1].Rank }) || swapped
	}

	first, second := -1, -1
	switch bets.Main {
	case SidePlayer:
		first, second = 0, 2
	case SideBanker:
		first, second = 1, 3
	}
	if first >= 0 {
		a := shoe[first].BaccaratValue()
		if (a+shoe[second].BaccaratValue())%10 >= 8 {
			swapped = swapAway(shoe, second, func(c cards.Card) bool {
				return (a+c.BaccaratValue())%10 < 8
			}) || swapped
		}
	}
	return swapped
}

// swapAway swaps shoe[pos] with the first card past the initial deal that
// satisfies ok.
func swapAway(shoe []cards.Card, pos int, ok func(cards.Card) bool) bool {
	for i := 4; i < len(shoe); i++ {
		if ok(shoe[i]) {
			shoe[pos], shoe[i] = shoe[i], shoe[pos]
			return true
		}
	}
	return false
}
