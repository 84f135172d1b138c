package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stakeworks/wagerd/internal/repos/sessions"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/session"
)

var _ sessions.Sessions = (*sessionsRepo)(nil)

type sessionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *sessionsRepo {
	return &sessionsRepo{db: db}
}

func (r *sessionsRepo) Insert(tx *sql.Tx, rec session.Record) error {
	_, err := tx.Exec(`
		INSERT INTO game_sessions
			(id, account_id, kind, stake, tier, status, revision, state,
			 server_seed, seed_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, rec.ID, rec.AccountID, rec.Kind, rec.Stake, int(rec.Tier), rec.Status,
		rec.Revision, []byte(rec.State), rec.ServerSeed, rec.SeedHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return sessions.ErrSessionConflict
			}
		}

		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

const sessionColumns = `
	id, account_id, kind, stake, tier, status, revision, state,
	server_seed, seed_hash, created_at, updated_at
`

func scanSession(row *sql.Row) (session.Record, error) {
	var rec session.Record
	var tier int
	var state []byte
	err := row.Scan(
		&rec.ID, &rec.AccountID, &rec.Kind, &rec.Stake, &tier, &rec.Status,
		&rec.Revision, &state, &rec.ServerSeed, &rec.SeedHash,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return session.Record{}, err
	}
	rec.Tier = risk.Tier(tier)
	rec.State = state
	return rec, nil
}

func (r *sessionsRepo) GetByAccount(ctx context.Context, accountID int64) (session.Record, error) {
	rec, err := scanSession(r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE account_id = $1
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, sessions.ErrSessionNotFound
		}

		return session.Record{}, fmt.Errorf("get session: %w", err)
	}

	return rec, nil
}

func (r *sessionsRepo) LockAndGetByAccount(tx *sql.Tx, accountID int64) (session.Record, error) {
	rec, err := scanSession(tx.QueryRow(`
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE account_id = $1
		FOR UPDATE
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, sessions.ErrSessionNotFound
		}

		return session.Record{}, fmt.Errorf("lock/get session: %w", err)
	}

	return rec, nil
}

func (r *sessionsRepo) Update(tx *sql.Tx, rec session.Record) error {
	res, err := tx.Exec(`
		UPDATE game_sessions
		SET status = $2,
		    revision = $3,
		    state = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, rec.ID, rec.Status, rec.Revision, []byte(rec.State))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sessions.ErrSessionNotFound
	}

	return nil
}

func (r *sessionsRepo) Delete(tx *sql.Tx, accountID int64) error {
	res, err := tx.Exec(`
		DELETE FROM game_sessions
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return sessions.ErrSessionNotFound
	}

	return nil
}

func (r *sessionsRepo) IdleAccountsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id
		FROM game_sessions
		WHERE updated_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle sessions: %w", err)
	}

	return ids, nil
}
