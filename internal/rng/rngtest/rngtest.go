// Package rngtest provides a deterministic RNG for game-engine tests.
package rngtest

import "math/rand"

// Seeded wraps math/rand behind the production RNG interface so tests can
// pin draws.
type Seeded struct{ r *rand.Rand }

func New(seed int64) *Seeded {
	return &Seeded{r: rand.New(rand.NewSource(seed))}
}

func (s *Seeded) Intn(n int) int       { return s.r.Intn(n) }
func (s *Seeded) Int63n(n int64) int64 { return s.r.Int63n(n) }
func (s *Seeded) Float64() float64     { return s.r.Float64() }
func (s *Seeded) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}
