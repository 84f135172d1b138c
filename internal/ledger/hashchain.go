package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/stakeworks/wagerd/internal/repos/audit"
)

var ErrChainBroken = errors.New("audit chain broken")

// RecordHash computes the integrity hash of an audit record: SHA-256 over
// the canonical record content plus the predecessor's hash. The first record
// of a chain carries an empty PrevHash.
func RecordHash(rec audit.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%d|%d|%s|%s|%d|%s",
		rec.Seq, rec.AccountID, rec.Amount, rec.Balance,
		rec.Kind, rec.GameTag, rec.CreatedAt.UnixNano(), rec.PrevHash)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifyChain recomputes every hash of an account's chain in sequence order.
// It reports the first record whose stored hash, link or sequence number
// does not match the recomputation.
func VerifyChain(chain []audit.Record) error {
	prevHash := ""
	for i, rec := range chain {
		if rec.Seq != int64(i+1) {
			return fmt.Errorf("%w: record %d has seq %d", ErrChainBroken, i, rec.Seq)
		}
		if rec.PrevHash != prevHash {
			return fmt.Errorf("%w: record seq %d links to %q, chain has %q",
				ErrChainBroken, rec.Seq, rec.PrevHash, prevHash)
		}
		if got := RecordHash(rec); got != rec.Hash {
			return fmt.Errorf("%w: record seq %d stored hash does not match content",
				ErrChainBroken, rec.Seq)
		}
		prevHash = rec.Hash
	}
	return nil
}
