package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stakeworks/wagerd/internal/repos/audit"
)

var _ audit.Audit = (*auditRepo)(nil)

type auditRepo struct{ db *sql.DB }

func New(db *sql.DB) *auditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(tx *sql.Tx, rec audit.Record) error {
	_, err := tx.Exec(`
		INSERT INTO audit_records
			(account_id, seq, amount, balance, kind, game_tag, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.AccountID, rec.Seq, rec.Amount, rec.Balance, rec.Kind, rec.GameTag,
		rec.CreatedAt, rec.PrevHash, rec.Hash)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	return nil
}

func (r *auditRepo) Last(tx *sql.Tx, accountID int64) (audit.Record, bool, error) {
	rec, err := scanRecord(tx.QueryRow(`
		SELECT account_id, seq, amount, balance, kind, game_tag, created_at, prev_hash, hash
		FROM audit_records
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Record{}, false, nil
		}

		return audit.Record{}, false, fmt.Errorf("last audit record: %w", err)
	}

	return rec, true, nil
}

func (r *auditRepo) Chain(ctx context.Context, accountID int64) ([]audit.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, seq, amount, balance, kind, game_tag, created_at, prev_hash, hash
		FROM audit_records
		WHERE account_id = $1
		ORDER BY seq ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query audit chain: %w", err)
	}
	defer rows.Close()

	var chain []audit.Record
	for rows.Next() {
		var rec audit.Record
		err := rows.Scan(
			&rec.AccountID, &rec.Seq, &rec.Amount, &rec.Balance, &rec.Kind,
			&rec.GameTag, &rec.CreatedAt, &rec.PrevHash, &rec.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		chain = append(chain, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit chain: %w", err)
	}

	return chain, nil
}

func scanRecord(row *sql.Row) (audit.Record, error) {
	var rec audit.Record
	err := row.Scan(
		&rec.AccountID, &rec.Seq, &rec.Amount, &rec.Balance, &rec.Kind,
		&rec.GameTag, &rec.CreatedAt, &rec.PrevHash, &rec.Hash,
	)
	return rec, err
}
