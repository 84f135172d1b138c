// Package cards implements the shared playing-card primitives for the
// card-based game engines.
package cards

import (
	"strings"

	"github.com/stakeworks/wagerd/internal/rng"
)

type Suit string

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var Ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

type Card struct {
	Rank string `json:"rank"`
	Suit Suit   `json:"suit"`
}

func (c Card) String() string {
	return c.Rank + string(c.Suit)
}

func (c Card) IsAce() bool { return c.Rank == "A" }

// BlackjackValue returns the card's blackjack value, aces high (11).
func (c Card) BlackjackValue() int {
	switch c.Rank {
	case "A":
		return 11
	case "10", "J", "Q", "K":
		return 10
	default:
		return int(c.Rank[0] - '0')
	}
}

// BaccaratValue returns the card's baccarat value (0-9).
func (c Card) BaccaratValue() int {
	switch c.Rank {
	case "A":
		return 1
	case "10", "J", "Q", "K":
		return 0
	default:
		return int(c.Rank[0] - '0')
	}
}

// NewShoe builds numDecks standard decks shuffled with r.
func NewShoe(r rng.RNG, numDecks int) []Card {
	shoe := make([]Card, 0, numDecks*52)
	for d := 0; d < numDecks; d++ {
		for _, s := range Suits {
			for _, rk := range Ranks {
				shoe = append(shoe, Card{Rank: rk, Suit: s})
			}
		}
	}
	r.Shuffle(len(shoe), func(i, j int) {
		shoe[i], shoe[j] = shoe[j], shoe[i]
	})
	return shoe
}

// BlackjackTotal computes the best hand total, demoting aces from 11 to 1
// while the hand would bust.
func BlackjackTotal(hand []Card) int {
	total := 0
	aces := 0
	for _, c := range hand {
		if c.IsAce() {
			aces++
		}
		total += c.BlackjackValue()
	}
	for aces > 0 && total > 21 {
		total -= 10
		aces--
	}
	return total
}

// IsSoft reports whether the hand counts an ace as 11.
func IsSoft(hand []Card) bool {
	total := 0
	aces := 0
	for _, c := range hand {
		if c.IsAce() {
			aces++
		}
		total += c.BlackjackValue()
	}
	for aces > 0 && total > 21 {
		total -= 10
		aces--
	}
	return aces > 0
}

// IsBlackjack reports a natural: two cards totaling 21.
func IsBlackjack(hand []Card) bool {
	return len(hand) == 2 && BlackjackTotal(hand) == 21
}

// BaccaratTotal computes a baccarat hand total (modulo 10).
func BaccaratTotal(hand []Card) int {
	total := 0
	for _, c := range hand {
		total += c.BaccaratValue()
	}
	return total % 10
}

// Format renders a hand as a compact space-separated string.
func Format(hand []Card) string {
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
