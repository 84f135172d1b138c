// Package blackjack implements the dealer-vs-player card-accumulation game
// as a multi-step state machine: deal, optional insurance, hit/stand,
// settle. The state carries the undealt portion of the shoe so a round
// survives process restarts.
package blackjack

import (
	"errors"

	"github.com/stakeworks/wagerd/internal/games/cards"
	"github.com/stakeworks/wagerd/internal/games/policy"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
)

const (
	shoeDecks   = 4
	dealerStand = 17
	maxHand     = 5
)

// Phases of a round.
const (
	PhaseInsurance = "insurance"
	PhasePlaying   = "playing"
	PhaseDone      = "done"
)

// Outcomes of the main bet.
const (
	OutcomeBlackjack  = "blackjack"
	OutcomeWin        = "win"
	OutcomeCharlie    = "charlie"
	OutcomePush       = "push"
	OutcomeBust       = "bust"
	OutcomeDealerWins = "dealer_wins"
)

var (
	ErrRoundOver     = errors.New("blackjack: round is over")
	ErrNotInsurable  = errors.New("blackjack: insurance not available")
	ErrInsureDecided = errors.New("blackjack: insurance already decided")
)

// Config carries payout numbers and bias gating. BlackjackNum/Den encode the
// natural payout (3:2 by default). BustThreshold is the player total past
// which a hit may be steered toward a bust card.
type Config struct {
	BlackjackNum  int64 `env:"BLACKJACK_PAYOUT_NUM" envDefault:"3"`
	BlackjackDen  int64 `env:"BLACKJACK_PAYOUT_DEN" envDefault:"2"`
	BustThreshold int   `env:"BLACKJACK_BUST_THRESHOLD" envDefault:"15"`

	BustProbs  policy.TierProbs `env:"-"`
	SteerProbs policy.TierProbs `env:"-"`
}

func DefaultConfig() Config {
	return Config{
		BlackjackNum:  3,
		BlackjackDen:  2,
		BustThreshold: 15,
		BustProbs:     policy.TierProbs{Normal: 0, High: 0.12, Extreme: 0.30},
		SteerProbs:    policy.TierProbs{Normal: 0, High: 0.20, Extreme: 0.45},
	}
}

// State is the private session payload. Deck holds the undealt remainder of
// the shoe, front card next.
type State struct {
	Deck         []cards.Card `json:"deck"`
	Player       []cards.Card `json:"player"`
	Dealer       []cards.Card `json:"dealer"`
	Phase        string       `json:"phase"`
	InsuranceBet int64        `json:"insurance_bet"`
}

// Deal shuffles a fresh shoe and deals the opening hands. The phase is
// "insurance" when the dealer shows an ace, otherwise "playing".
func Deal(r rng.RNG) State {
	shoe := cards.NewShoe(r, shoeDecks)
	s := State{
		Player: []cards.Card{shoe[0], shoe[2]},
		Dealer: []cards.Card{shoe[1], shoe[3]},
		Deck:   shoe[4:],
		Phase:  PhasePlaying,
	}
	if s.Dealer[0].IsAce() && !cards.IsBlackjack(s.Player) {
		s.Phase = PhaseInsurance
	}
	return s
}

func (s *State) PlayerTotal() int { return cards.BlackjackTotal(s.Player) }

func (s *State) DealerUpcard() cards.Card { return s.Dealer[0] }

// PlayerBlackjack reports a natural, which settles the round right after the
// deal.
func (s *State) PlayerBlackjack() bool { return cards.IsBlackjack(s.Player) }

func (s *State) draw() cards.Card {
	c := s.Deck[0]
	s.Deck = s.Deck[1:]
	return c
}

// Insure places the insurance side bet and moves to the playing phase. bet
// is the amount already debited by the caller.
func Insure(s *State, bet int64) error {
	if s.Phase == PhaseDone {
		return ErrRoundOver
	}
	if s.Phase != PhaseInsurance {
		return ErrNotInsurable
	}
	if bet <= 0 {
		return ErrNotInsurable
	}
	s.InsuranceBet = bet
	s.Phase = PhasePlaying
	return nil
}

// Decline skips the insurance offer.
func Decline(s *State) error {
	if s.Phase == PhaseDone {
		return ErrRoundOver
	}
	if s.Phase != PhaseInsurance {
		return ErrInsureDecided
	}
	s.Phase = PhasePlaying
	return nil
}

// HitResult is one hit step.
type HitResult struct {
	Card  cards.Card
	Total int
	Bust  bool
	// Done: the hand busted or reached the card limit; the caller must
	// settle.
	Done bool
}

// Hit deals the player one card. A pending insurance offer is declined
// implicitly. bustRoll is a pre-drawn uniform [0,1): past the bust
// threshold, a gated bias promotes the first busting card in the deck to the
// front before drawing.
func Hit(s *State, cfg Config, tier risk.Tier, bustRoll float64) (HitResult, error) {
	if s.Phase == PhaseDone {
		return HitResult{}, ErrRoundOver
	}
	if s.Phase == PhaseInsurance {
		s.Phase = PhasePlaying
	}

	if s.PlayerTotal() >= cfg.BustThreshold && policy.Gate(cfg.BustProbs, tier, bustRoll) {
		promoteFirst(s.Deck, func(c cards.Card) bool {
			return cards.BlackjackTotal(append(append([]cards.Card{}, s.Player...), c)) > 21
		})
	}

	c := s.draw()
	s.Player = append(s.Player, c)
	total := s.PlayerTotal()

	res := HitResult{Card: c, Total: total, Bust: total > 21}
	if res.Bust || len(s.Player) >= maxHand {
		res.Done = true
		s.Phase = PhaseDone
	}
	return res, nil
}

// Settlement is the resolved round.
type Settlement struct {
	DealerHand  []cards.Card
	DealerTotal int
	PlayerTotal int
	Outcome     string
	// Payout is the total credit for the round in minor units, stakes
	// included (main stake and, when won, the insurance bet).
	Payout int64
}

// Settle stands the player, plays the dealer to 17+ and resolves all bets.
// steerRoll gates the dealer steer: when it fires, each dealer draw prefers
// a card from the next few deck positions that lands the dealer in the
// 17 to 21 band. Cards are only reordered, never invented.
func Settle(s *State, cfg Config, tier risk.Tier, steerRoll float64, stake int64) Settlement {
	if s.Phase == PhaseInsurance {
		s.Phase = PhasePlaying
	}
	s.Phase = PhaseDone

	playerTotal := s.PlayerTotal()
	playerBust := playerTotal > 21
	steer := policy.Gate(cfg.SteerProbs, tier, steerRoll)

	if !playerBust && !cards.IsBlackjack(s.Player) {
		for cards.BlackjackTotal(s.Dealer) < dealerStand && len(s.Deck) > 0 {
			if steer {
				steerDealerDraw(s)
			}
			s.Dealer = append(s.Dealer, s.draw())
		}
	}

	dealerTotal := cards.BlackjackTotal(s.Dealer)
	out := Settlement{
		DealerHand:  s.Dealer,
		DealerTotal: dealerTotal,
		PlayerTotal: playerTotal,
	}

	dealerNatural := cards.IsBlackjack(s.Dealer)
	switch {
	case playerBust:
		out.Outcome = OutcomeBust
	case cards.IsBlackjack(s.Player):
		if dealerNatural {
			out.Outcome = OutcomePush
			out.Payout = stake
		} else {
			out.Outcome = OutcomeBlackjack
			out.Payout = stake + stake*cfg.BlackjackNum/cfg.BlackjackDen
		}
	case len(s.Player) >= maxHand:
		out.Outcome = OutcomeCharlie
		out.Payout = stake * 2
	case dealerTotal > 21:
		out.Outcome = OutcomeWin
		out.Payout = stake * 2
	case playerTotal > dealerTotal:
		out.Outcome = OutcomeWin
		out.Payout = stake * 2
	case playerTotal < dealerTotal:
		out.Outcome = OutcomeDealerWins
	default:
		out.Outcome = OutcomePush
		out.Payout = stake
	}

	if s.InsuranceBet > 0 && dealerNatural {
		out.Payout += s.InsuranceBet * 3
	}
	return out
}

// steerDealerDraw looks at the next few cards and moves the one giving the
// dealer the highest non-bust total of 17 or more to the front. When none
// qualifies the order is left alone.
func steerDealerDraw(s *State) {
	const window = 8

	best, bestTotal := -1, 0
	n := len(s.Deck)
	if n > window {
		n = window
	}
	for i := 0; i < n; i++ {
		total := cards.BlackjackTotal(append(append([]cards.Card{}, s.Dealer...), s.Deck[i]))
		if total >= dealerStand && total <= 21 && total > bestTotal {
			best, bestTotal = i, total
		}
	}
	if best > 0 {
		s.Deck[0], s.Deck[best] = s.Deck[best], s.Deck[0]
	}
}

// promoteFirst moves the first card satisfying ok to the front of the deck.
func promoteFirst(deck []cards.Card, ok func(cards.Card) bool) {
	for i := range deck {
		if ok(deck[i]) {
			if i > 0 {
				deck[0], deck[i] = deck[i], deck[0]
			}
			return
		}
	}
}
