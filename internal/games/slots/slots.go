// Package slots is the single-step reel game: open and settle in one call.
// The outcome is a weighted category draw; the weight table shifts toward
// low/no payout as the risk tier rises.
package slots

import (
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
)

// Category is an outcome class in the pay table.
type Category string

const (
	CategoryLose    Category = "LOSE"
	CategorySmall   Category = "SMALL"
	CategoryMedium  Category = "MEDIUM"
	CategoryBig     Category = "BIG"
	CategoryJackpot Category = "JACKPOT"
	// CategoryNearMiss renders two jackpot symbols and pays nothing. It
	// exists for perceived-near-miss effect only and is reported to the
	// client as a plain loss.
	CategoryNearMiss Category = "NEAR_MISS"
)

// Reel symbols, low to high.
const (
	SymbolCherry  = "cherry"
	SymbolLemon   = "lemon"
	SymbolBell    = "bell"
	SymbolDiamond = "diamond"
	SymbolSeven   = "seven"
)

var lowSymbols = []string{SymbolCherry, SymbolLemon, SymbolBell}

// TierWeights is the draw weight of one category per risk tier.
type TierWeights struct {
	Normal  int64
	High    int64
	Extreme int64
}

func (w TierWeights) forTier(t risk.Tier) int64 {
	switch t {
	case risk.TierHigh:
		return w.High
	case risk.TierExtreme:
		return w.Extreme
	default:
		return w.Normal
	}
}

type payline struct {
	category   Category
	multiplier float64
	weights    TierWeights
}

// Config is the pay and weight table. Multipliers and weights are tunable.
type Config struct {
	SmallMultiplier   float64 `env:"SLOTS_SMALL_MULTIPLIER" envDefault:"2"`
	MediumMultiplier  float64 `env:"SLOTS_MEDIUM_MULTIPLIER" envDefault:"5"`
	BigMultiplier     float64 `env:"SLOTS_BIG_MULTIPLIER" envDefault:"10"`
	JackpotMultiplier float64 `env:"SLOTS_JACKPOT_MULTIPLIER" envDefault:"25"`
}

func DefaultConfig() Config {
	return Config{
		SmallMultiplier:   2,
		MediumMultiplier:  5,
		BigMultiplier:     10,
		JackpotMultiplier: 25,
	}
}

// table returns the full pay table. Weights per 10000 draws; the loss and
// near-miss shares grow with the tier, win shares shrink.
func (c Config) table() []payline {
	return []payline{
		{CategoryLose, 0, TierWeights{Normal: 5400, High: 6300, Extreme: 7300}},
		{CategoryNearMiss, 0, TierWeights{Normal: 600, High: 900, Extreme: 1300}},
		{CategorySmall, c.SmallMultiplier, TierWeights{Normal: 2600, High: 2000, Extreme: 1250}},
		{CategoryMedium, c.MediumMultiplier, TierWeights{Normal: 1000, High: 620, Extreme: 135}},
		{CategoryBig, c.BigMultiplier, TierWeights{Normal: 320, High: 150, Extreme: 12}},
		{CategoryJackpot, c.JackpotMultiplier, TierWeights{Normal: 80, High: 30, Extreme: 3}},
	}
}

// Result is one settled spin.
type Result struct {
	Category Category
	Reels    [3]string
	Payout   int64
}

// PublicCategory is what the client may see: the near-miss class is a loss.
func (r Result) PublicCategory() Category {
	if r.Category == CategoryNearMiss {
		return CategoryLose
	}
	return r.Category
}

// Spin draws a category for the tier and renders matching reels. The payout
// is stake times the category multiplier, truncated to minor units.
func Spin(r rng.RNG, cfg Config, stake int64, tier risk.Tier) Result {
	table := cfg.table()

	weights := make([]int64, len(table))
	for i, p := range table {
		weights[i] = p.weights.forTier(tier)
	}

	idx := rng.WeightedPick(r, weights)
	if idx < 0 {
		idx = 0
	}
	line := table[idx]

	res := Result{
		Category: line.category,
		Reels:    renderReels(r, line.category),
	}
	if line.multiplier > 0 {
		res.Payout = int64(float64(stake) * line.multiplier)
	}
	return res
}

// renderReels produces reels consistent with the category: wins are three
// of a kind, a near miss is two sevens and a low symbol, a loss never
// matches three.
func renderReels(r rng.RNG, cat Category) [3]string {
	switch cat {
	case CategorySmall:
		s := lowSymbols[r.Intn(len(lowSymbols))]
		return [3]string{s, s, s}
	case CategoryMedium:
		return [3]string{SymbolBell, SymbolBell, SymbolBell}
	case CategoryBig:
		return [3]string{SymbolDiamond, SymbolDiamond, SymbolDiamond}
	case CategoryJackpot:
		return [3]string{SymbolSeven, SymbolSeven, SymbolSeven}
	case CategoryNearMiss:
		miss := lowSymbols[r.Intn(len(lowSymbols))]
		return [3]string{SymbolSeven, SymbolSeven, miss}
	default:
		reels := [3]string{
			lowSymbols[r.Intn(len(lowSymbols))],
			lowSymbols[r.Intn(len(lowSymbols))],
			lowSymbols[r.Intn(len(lowSymbols))],
		}
		for reels[0] == reels[1] && reels[1] == reels[2] {
			reels[2] = pickOther(r, reels[1])
		}
		return reels
	}
}

func pickOther(r rng.RNG, not string) string {
	for {
		s := lowSymbols[r.Intn(len(lowSymbols))]
		if s != not {
			return s
		}
	}
}
