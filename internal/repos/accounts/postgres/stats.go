package accounts

import (
	"database/sql"
	"fmt"

	"github.com/stakeworks/wagerd/internal/repos/accounts"
)

func (r *accountsRepo) ApplyStats(tx *sql.Tx, accountID int64, delta accounts.StatsDelta) error {
	if delta.Empty() {
		return nil
	}

	_, err := tx.Exec(`
		UPDATE accounts
		SET total_deposited = total_deposited + $2,
		    total_wagered = total_wagered + $3,
		    total_won = total_won + $4,
		    profit = profit + $5
		WHERE id = $1
	`, accountID, delta.Deposited, delta.Wagered, delta.Won, delta.Profit)
	if err != nil {
		return fmt.Errorf("apply stats: %w", err)
	}

	if delta.Bet == nil {
		return nil
	}

	if delta.Bet.Won {
		_, err = tx.Exec(`
			UPDATE accounts
			SET win_streak = win_streak + 1,
			    loss_streak = 0,
			    last_bet_amount = $2,
			    last_bet_won = TRUE
			WHERE id = $1
		`, accountID, delta.Bet.Amount)
	} else {
		_, err = tx.Exec(`
			UPDATE accounts
			SET win_streak = 0,
			    loss_streak = loss_streak + 1,
			    last_bet_amount = $2,
			    last_bet_won = FALSE
			WHERE id = $1
		`, accountID, delta.Bet.Amount)
	}
	if err != nil {
		return fmt.Errorf("record bet outcome: %w", err)
	}

	return nil
}
