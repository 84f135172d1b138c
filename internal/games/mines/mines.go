// Package mines is the multi-step tile-reveal game: N mines hidden in a
// 5x5 grid, a growing multiplier per safe reveal, manual cashout, and an
// auto-settle once every safe tile is open.
package mines

import (
	"math"

	"github.com/stakeworks/wagerd/internal/games/policy"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/rng"
)

const (
	GridTiles = 25
	MinMines  = 1
	MaxMines  = 24
)

// Config holds the tunable mine parameters.
type Config struct {
	// EdgeFactor scales the per-reveal multiplier growth; below 1 is house
	// edge against the fair odds ratio.
	EdgeFactor float64 `env:"MINES_EDGE_FACTOR" envDefault:"0.92"`
	// RelocateProbs is the per-tier chance that a reveal relocates an
	// unrevealed mine onto the chosen tile.
	RelocateProbs policy.TierProbs
	// RelocateHigh/Extreme feed RelocateProbs from env; Normal stays zero.
	RelocateHigh    float64 `env:"MINES_RELOCATE_HIGH" envDefault:"0.15"`
	RelocateExtreme float64 `env:"MINES_RELOCATE_EXTREME" envDefault:"0.35"`
}

func DefaultConfig() Config {
	cfg := Config{
		EdgeFactor:      0.92,
		RelocateHigh:    0.15,
		RelocateExtreme: 0.35,
	}
	cfg.RelocateProbs = policy.TierProbs{High: cfg.RelocateHigh, Extreme: cfg.RelocateExtreme}
	return cfg
}

// Normalize fills derived fields after env loading.
func (c *Config) Normalize() {
	c.RelocateProbs = policy.TierProbs{High: c.RelocateHigh, Extreme: c.RelocateExtreme}
}

// State is the private per-session game state. Mines and the full grid
// layout never reach the client.
type State struct {
	MineCount int   `json:"mine_count"`
	Mines     []int `json:"mines"`
	Revealed  []int `json:"revealed"`
}

// NewState places mineCount mines uniformly among the grid tiles.
func NewState(r rng.RNG, mineCount int) State {
	s := State{MineCount: mineCount}
	taken := make(map[int]bool, mineCount)
	for len(s.Mines) < mineCount {
		tile := r.Intn(GridTiles)
		if taken[tile] {
			continue
		}
		taken[tile] = true
		s.Mines = append(s.Mines, tile)
	}
	return s
}

func (s *State) isMine(tile int) bool {
	for _, m := range s.Mines {
		if m == tile {
			return true
		}
	}
	return false
}

func (s *State) isRevealed(tile int) bool {
	for _, t := range s.Revealed {
		if t == tile {
			return true
		}
	}
	return false
}

// SafeReveals is the number of safe tiles opened so far.
func (s *State) SafeReveals() int { return len(s.Revealed) }

// AllCleared reports whether every non-mine tile is open.
func (s *State) AllCleared() bool {
	return len(s.Revealed) == GridTiles-s.MineCount
}

// Multiplier is the deterministic payout multiplier for the given mine
// count after the given number of safe reveals. Grows linearly in reveals
// with a slope proportional to the mine/safe odds ratio.
func Multiplier(cfg Config, mineCount, reveals int) float64 {
	if reveals <= 0 {
		return 1.0
	}
	base := cfg.EdgeFactor * float64(mineCount) / float64(GridTiles-mineCount)
	base = round2(base)
	return round2(1.0 + base*float64(reveals))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// RevealOutcome describes one reveal step.
type RevealOutcome struct {
	// Replayed: the tile was already open; nothing changed.
	Replayed bool
	// Hit: the tile held a mine, the round is lost.
	Hit bool
	// Relocated: outcome policy moved a mine onto the chosen tile.
	Relocated bool
	// Cleared: the last safe tile was opened, the round auto-settles.
	Cleared bool
	// Multiplier after this reveal (unchanged on replay or hit).
	Multiplier float64
}

// Reveal applies one tile choice to the state. relocRoll and relocPick are
// pre-drawn (uniform [0,1) and a non-negative int): with them fixed, the
// outcome is deterministic for a given state and tier.
//
// The bias step may move one mine from an unrevealed tile onto the chosen
// tile; the number of mines in the grid never changes.
func Reveal(s *State, cfg Config, tile int, tier risk.Tier, relocRoll float64, relocPick int) RevealOutcome {
	out := RevealOutcome{Multiplier: Multiplier(cfg, s.MineCount, s.SafeReveals())}

	if tile < 0 || tile >= GridTiles {
		out.Replayed = true
		return out
	}
	if s.isRevealed(tile) {
		out.Replayed = true
		return out
	}

	if !s.isMine(tile) && policy.Gate(cfg.RelocateProbs, tier, relocRoll) {
		// Move one mine onto the chosen tile. Every mine still sits on an
		// unrevealed tile, so any of them is movable.
		if len(s.Mines) > 0 && relocPick >= 0 {
			s.Mines[relocPick%len(s.Mines)] = tile
			out.Relocated = true
		}
	}

	if s.isMine(tile) {
		out.Hit = true
		return out
	}

	s.Revealed = append(s.Revealed, tile)
	out.Multiplier = Multiplier(cfg, s.MineCount, s.SafeReveals())
	out.Cleared = s.AllCleared()
	return out
}
