package cards

import (
	"testing"

	"github.com/stakeworks/wagerd/internal/rng"
)

func TestBlackjackTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hand []Card
		want int
	}{
		{"hard_20", []Card{{Rank: "K", Suit: Spades}, {Rank: "Q", Suit: Hearts}}, 20},
		{"natural_21", []Card{{Rank: "A", Suit: Spades}, {Rank: "K", Suit: Hearts}}, 21},
		{"soft_17", []Card{{Rank: "A", Suit: Spades}, {Rank: "6", Suit: Hearts}}, 17},
		{"ace_demoted", []Card{{Rank: "A", Suit: Spades}, {Rank: "9", Suit: Hearts}, {Rank: "5", Suit: Clubs}}, 15},
		{"two_aces", []Card{{Rank: "A", Suit: Spades}, {Rank: "A", Suit: Hearts}}, 12},
		{"bust", []Card{{Rank: "K", Suit: Spades}, {Rank: "9", Suit: Hearts}, {Rank: "5", Suit: Clubs}}, 24},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BlackjackTotal(tt.hand); got != tt.want {
				t.Fatalf("total(%s): want %d, got %d", Format(tt.hand), tt.want, got)
			}
		})
	}
}

func TestIsSoft(t *testing.T) {
	t.Parallel()

	soft := []Card{{Rank: "A", Suit: Spades}, {Rank: "6", Suit: Hearts}}
	if !IsSoft(soft) {
		t.Error("A+6 should be soft")
	}

	hard := []Card{{Rank: "A", Suit: Spades}, {Rank: "9", Suit: Hearts}, {Rank: "5", Suit: Clubs}}
	if IsSoft(hard) {
		t.Error("A+9+5 should be hard (ace demoted)")
	}
}

func TestIsBlackjack(t *testing.T) {
	t.Parallel()

	if !IsBlackjack([]Card{{Rank: "A", Suit: Spades}, {Rank: "Q", Suit: Hearts}}) {
		t.Error("A+Q should be blackjack")
	}
	if IsBlackjack([]Card{{Rank: "7", Suit: Spades}, {Rank: "7", Suit: Hearts}, {Rank: "7", Suit: Clubs}}) {
		t.Error("three-card 21 is not a natural")
	}
}

func TestBaccaratTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hand []Card
		want int
	}{
		{"face_cards_zero", []Card{{Rank: "K", Suit: Spades}, {Rank: "Q", Suit: Hearts}}, 0},
		{"natural_nine", []Card{{Rank: "4", Suit: Spades}, {Rank: "5", Suit: Hearts}}, 9},
		{"modulo_ten", []Card{{Rank: "7", Suit: Spades}, {Rank: "8", Suit: Hearts}}, 5},
		{"ace_is_one", []Card{{Rank: "A", Suit: Spades}, {Rank: "9", Suit: Hearts}}, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BaccaratTotal(tt.hand); got != tt.want {
				t.Fatalf("total(%s): want %d, got %d", Format(tt.hand), tt.want, got)
			}
		})
	}
}

func TestNewShoe(t *testing.T) {
	t.Parallel()

	shoe := NewShoe(rng.Crypto{}, 6)
	if len(shoe) != 312 {
		t.Fatalf("shoe size: want 312, got %d", len(shoe))
	}

	counts := make(map[Card]int)
	for _, c := range shoe {
		counts[c]++
	}
	if len(counts) != 52 {
		t.Fatalf("distinct cards: want 52, got %d", len(counts))
	}
	for c, n := range counts {
		if n != 6 {
			t.Fatalf("card %s appears %d times, want 6", c, n)
		}
	}
}
