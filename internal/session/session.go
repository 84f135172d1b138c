// Package session defines the game session lifecycle shared by all game
// engines. A session is the single source of truth between the opening debit
// and the settling credit: while it exists, the account balance already
// reflects the stake but no payout.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stakeworks/wagerd/internal/risk"
)

// Kind identifies the game a session belongs to.
type Kind string

const (
	KindSlots     Kind = "slots"
	KindMines     Kind = "mines"
	KindBaccarat  Kind = "baccarat"
	KindBlackjack Kind = "blackjack"
)

// Status of a session. Settled and forfeited sessions are deleted in the
// same transaction that finalizes them, so only open and in-progress rows
// ever persist; the terminal statuses appear in responses and hook events.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSettled    Status = "SETTLED"
	StatusForfeited  Status = "FORFEITED"
)

// Record is a persisted session. State is the game's private payload (deck
// order, mine layout) and is never sent to the client; SeedHash is public,
// ServerSeed is disclosed only at settlement.
type Record struct {
	ID         uuid.UUID
	AccountID  int64
	Kind       Kind
	Stake      int64
	Tier       risk.Tier
	Status     Status
	Revision   int
	State      json.RawMessage
	ServerSeed string
	SeedHash   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New builds an open session with revision 0.
func New(accountID int64, kind Kind, stake int64, tier risk.Tier, state json.RawMessage, seed, seedHash string) Record {
	return Record{
		ID:         uuid.New(),
		AccountID:  accountID,
		Kind:       kind,
		Stake:      stake,
		Tier:       tier,
		Status:     StatusOpen,
		State:      state,
		ServerSeed: seed,
		SeedHash:   seedHash,
	}
}

// Advance records one applied step: the session moves to IN_PROGRESS with a
// new private state and a bumped revision.
func (r *Record) Advance(state json.RawMessage) {
	r.Status = StatusInProgress
	r.State = state
	r.Revision++
}

// Public is the client-visible projection of a session. GameState carries
// the game-specific public view (revealed tiles, visible cards) assembled by
// the owning engine.
type Public struct {
	ID        uuid.UUID   `json:"id"`
	Kind      Kind        `json:"kind"`
	Status    Status      `json:"status"`
	Stake     string      `json:"stake"`
	Revision  int         `json:"revision"`
	SeedHash  string      `json:"seed_hash"`
	CreatedAt time.Time   `json:"created_at"`
	GameState interface{} `json:"game_state,omitempty"`
}
