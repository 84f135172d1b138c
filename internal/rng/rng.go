// Package rng provides the cryptographically secure randomness used for
// all outcome generation, plus the server-seed commitment used for
// provable-fairness disclosure.
package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/big"
)

// RNG is the draw source games consume. The production implementation is
// Crypto; tests substitute a seeded source to pin outcomes.
type RNG interface {
	// Intn returns a uniform int in [0, n). n must be > 0.
	Intn(n int) int
	// Int63n returns a uniform int64 in [0, n). n must be > 0.
	Int63n(n int64) int64
	// Float64 returns a uniform float64 in [0, 1).
	Float64() float64
	// Shuffle performs a Fisher-Yates shuffle over n elements.
	Shuffle(n int, swap func(i, j int))
}

// Crypto is an RNG backed by crypto/rand.
type Crypto struct{}

func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (Crypto) Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

func (c Crypto) Float64() float64 {
	// 53 random bits, same construction math/rand uses.
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		return 0
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func (c Crypto) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := c.Intn(i + 1)
		swap(i, j)
	}
}

// Stream derives draws deterministically from committed seed material by
// hashing the seed with a block counter. A round that plays its deal,
// layout or shoe from a Stream lets the client re-derive that material
// from the disclosed seed and check it against the SeedHash commitment.
type Stream struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func NewStream(seed string) *Stream {
	return &Stream{seed: []byte(seed)}
}

func (s *Stream) next64() uint64 {
	if len(s.buf) < 8 {
		var block [8]byte
		binary.BigEndian.PutUint64(block[:], s.counter)
		s.counter++
		sum := sha256.Sum256(append(s.seed, block[:]...))
		s.buf = sum[:]
	}
	u := binary.BigEndian.Uint64(s.buf[:8])
	s.buf = s.buf[8:]
	return u
}

func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Int63n(int64(n)))
}

func (s *Stream) Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	// Rejection sampling keeps the draw uniform.
	limit := (^uint64(0) / uint64(n)) * uint64(n)
	for {
		u := s.next64()
		if u < limit {
			return int64(u % uint64(n))
		}
	}
}

func (s *Stream) Float64() float64 {
	return float64(s.next64()>>11) / (1 << 53)
}

func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// NewServerSeed returns 32 bytes of fresh seed material, hex encoded.
func NewServerSeed() string {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// SeedHash is the public commitment to a server seed: clients see the hash
// at play time and can verify the seed disclosed at settlement hashes to it.
func SeedHash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// WeightedPick selects an index from weights proportionally to weight.
// Non-positive weights are skipped. Returns -1 when nothing is pickable.
func WeightedPick(r RNG, weights []int64) int {
	var total int64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	roll := r.Int63n(total)

	var cum int64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		if roll < cum {
			return i
		}
	}
	return len(weights) - 1
}
