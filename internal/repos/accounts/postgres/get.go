package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stakeworks/wagerd/internal/repos/accounts"
)

const accountColumns = `
	id, balance, total_deposited, profit, total_wagered, total_won,
	win_streak, loss_streak, last_bet_amount, last_bet_won
`

func scanAccount(row *sql.Row) (accounts.Account, error) {
	var a accounts.Account
	err := row.Scan(
		&a.ID, &a.Balance, &a.TotalDeposited, &a.Profit, &a.TotalWagered,
		&a.TotalWon, &a.WinStreak, &a.LossStreak, &a.LastBetAmount, &a.LastBetWon,
	)
	return a, err
}

func (r *accountsRepo) Get(ctx context.Context, accountID int64) (accounts.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return a, nil
}

func (r *accountsRepo) LockAndGet(tx *sql.Tx, accountID int64) (accounts.Account, error) {
	a, err := scanAccount(tx.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("lock/get account: %w", err)
	}

	return a, nil
}
