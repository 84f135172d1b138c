package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stakeworks/wagerd/internal/session"
)

var ErrSessionConflict = errors.New("session already exists")
var ErrSessionNotFound = errors.New("session not found")

type Sessions interface {
	// Insert creates the account's session; a second active session maps the
	// unique violation to ErrSessionConflict.
	Insert(tx *sql.Tx, rec session.Record) error
	GetByAccount(ctx context.Context, accountID int64) (session.Record, error)
	LockAndGetByAccount(tx *sql.Tx, accountID int64) (session.Record, error)
	// Update persists status, revision and private state for a step.
	Update(tx *sql.Tx, rec session.Record) error
	Delete(tx *sql.Tx, accountID int64) error
	// IdleAccountsBefore lists accounts whose session saw no update since
	// the cutoff, for the forfeiture sweeper.
	IdleAccountsBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
}
