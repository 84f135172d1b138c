// Package policy holds the shared shape of outcome biasing. Every bias is a
// rearrangement of already-drawn cards/tiles/symbols, gated by the risk
// tier: given the same draws and tier the effect is deterministic, so the
// underlying RNG stays auditable.
package policy

import "github.com/stakeworks/wagerd/internal/risk"

// TierProbs is a probability per risk tier, in [0, 1].
type TierProbs struct {
	Normal  float64 `env:"-"`
	High    float64 `env:"-"`
	Extreme float64 `env:"-"`
}

// For returns the probability configured for the tier.
func (p TierProbs) For(t risk.Tier) float64 {
	switch t {
	case risk.TierHigh:
		return p.High
	case risk.TierExtreme:
		return p.Extreme
	default:
		return p.Normal
	}
}

// Gate reports whether a bias step fires, given the tier and a pre-drawn
// uniform roll in [0, 1). Passing the roll in keeps the bias function pure.
func Gate(p TierProbs, t risk.Tier, roll float64) bool {
	return roll < p.For(t)
}
