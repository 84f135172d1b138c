// Package keyedmutex provides short-lived exclusive locks keyed by an
// arbitrary int64 id (one lock per account). Acquire waits up to a bound
// for the holder to release; callers translate a timeout into their own
// busy/try-again error.
package keyedmutex

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the lock was not acquired within the wait bound.
var ErrTimeout = errors.New("keyedmutex: acquire timed out")

type entry struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// KeyedMutex hands out per-key exclusive locks. The zero value is not
// usable; construct with New.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*entry
	maxWait time.Duration
}

func New(maxWait time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[int64]*entry),
		maxWait: maxWait,
	}
}

// Acquire takes the lock for key, waiting at most the configured bound.
// The returned release function must be called exactly once. Returns
// ErrTimeout on contention beyond the bound, or ctx.Err if ctx ends first.
func (m *KeyedMutex) Acquire(ctx context.Context, key int64) (release func(), err error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		e.ch <- struct{}{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	select {
	case <-e.ch:
		return func() { m.release(key, e) }, nil
	case <-timer.C:
		m.unref(key, e)
		return nil, ErrTimeout
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key int64, e *entry) {
	e.ch <- struct{}{}
	m.unref(key, e)
}

// unref drops one reference and evicts idle entries so the map does not
// grow with the number of accounts ever seen.
func (m *KeyedMutex) unref(key int64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 && len(e.ch) == 1 {
		delete(m.entries, key)
	}
}
