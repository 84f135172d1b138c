package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stakeworks/wagerd/internal/infra/pgtestutil"
	"github.com/stakeworks/wagerd/internal/repos/accounts"
	"github.com/stakeworks/wagerd/internal/repos/audit"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/internal/session"
)

func seedAccount(t *testing.T, db *sql.DB, id, balance int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO accounts (id, balance) VALUES ($1, $2)`, id, balance)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func testSession(accountID, stake int64) session.Record {
	state, _ := json.Marshal(map[string]int{"step": 0})
	return session.New(accountID, session.KindMines, stake, risk.TierNormal, state, "seed", "seedhash")
}

func TestEngine_Apply_DebitCreditChain(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	// Stake 2000.
	snap, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -2_000,
		Kind:      audit.KindStake,
		GameTag:   "slots",
		Stats:     accounts.StatsDelta{Wagered: 2_000, Profit: -2_000},
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if snap.Account.Balance != 8_000 {
		t.Fatalf("balance after stake: want 8000, got %d", snap.Account.Balance)
	}

	// Payout 5000.
	snap, err = engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    5_000,
		Kind:      audit.KindPayout,
		GameTag:   "slots",
		Stats: accounts.StatsDelta{
			Won:    5_000,
			Profit: 5_000,
			Bet:    &accounts.BetOutcome{Amount: 2_000, Won: true},
		},
	})
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if snap.Account.Balance != 13_000 {
		t.Fatalf("balance after payout: want 13000, got %d", snap.Account.Balance)
	}
	if snap.Account.WinStreak != 1 || snap.Account.LossStreak != 0 {
		t.Fatalf("streaks: %d/%d", snap.Account.WinStreak, snap.Account.LossStreak)
	}

	n, err := engine.VerifyAccount(ctx, 1)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n != 2 {
		t.Fatalf("chain length: want 2, got %d", n)
	}
}

func TestEngine_Apply_InsufficientFundsHasNoEffect(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 500)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -800,
		Kind:      audit.KindStake,
		GameTag:   "mines",
		Stats:     accounts.StatsDelta{Wagered: 800},
		Session:   SessionOp{Kind: OpCreate, Record: testSession(1, 800)},
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	var balance, wagered int64
	if err := db.QueryRow(`SELECT balance, total_wagered FROM accounts WHERE id = 1`).Scan(&balance, &wagered); err != nil {
		t.Fatal(err)
	}
	if balance != 500 || wagered != 0 {
		t.Fatalf("failed debit left effects: balance=%d wagered=%d", balance, wagered)
	}

	var sessionCount, auditCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM game_sessions`).Scan(&sessionCount); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records`).Scan(&auditCount); err != nil {
		t.Fatal(err)
	}
	if sessionCount != 0 || auditCount != 0 {
		t.Fatalf("failed debit left rows: sessions=%d audit=%d", sessionCount, auditCount)
	}
}

func TestEngine_Apply_SessionConflictRollsBackDebit(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	open := func(stake int64) error {
		_, err := engine.Apply(ctx, Entry{
			AccountID: 1,
			Amount:    -stake,
			Kind:      audit.KindStake,
			GameTag:   "mines",
			Stats:     accounts.StatsDelta{Wagered: stake},
			Session:   SessionOp{Kind: OpCreate, Record: testSession(1, stake)},
		})
		return err
	}

	if err := open(1_000); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := open(1_000); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("second open: want ErrSessionConflict, got %v", err)
	}

	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = 1`).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	// Only the first stake landed.
	if balance != 9_000 {
		t.Fatalf("balance: want 9000, got %d", balance)
	}

	var auditCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE account_id = 1`).Scan(&auditCount); err != nil {
		t.Fatal(err)
	}
	if auditCount != 1 {
		t.Fatalf("audit rows: want 1, got %d", auditCount)
	}
}

func TestEngine_Apply_UnknownAccount(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, err := engine.Apply(ctx, Entry{AccountID: 404, Amount: -100, Kind: audit.KindStake})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestEngine_Apply_ConcurrentDebitsNoDoubleSpend(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 1_000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	worker := func() {
		defer wg.Done()
		_, err := engine.Apply(context.Background(), Entry{
			AccountID: 1,
			Amount:    -800,
			Kind:      audit.KindStake,
			GameTag:   "slots",
		})
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Add(2)
	go worker()
	go worker()
	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got success=%d insufficient=%d", success, insufficient)
	}

	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = 1`).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != 200 {
		t.Fatalf("balance: want 200, got %d", balance)
	}
}

func TestEngine_Apply_ZeroAmountWritesNoAuditRecord(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	if _, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -1_000,
		Kind:      audit.KindStake,
		GameTag:   "blackjack",
		Session:   SessionOp{Kind: OpCreate, Record: testSession(1, 1_000)},
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Settle a lost round: no payout, session deleted, streaks updated.
	snap, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    0,
		Kind:      audit.KindPayout,
		GameTag:   "blackjack",
		Stats:     accounts.StatsDelta{Bet: &accounts.BetOutcome{Amount: 1_000, Won: false}},
		Session:   SessionOp{Kind: OpDelete, Record: session.Record{AccountID: 1}},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if snap.Account.LossStreak != 1 {
		t.Fatalf("loss streak: %d", snap.Account.LossStreak)
	}

	var auditCount, sessionCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE account_id = 1`).Scan(&auditCount); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM game_sessions`).Scan(&sessionCount); err != nil {
		t.Fatal(err)
	}
	if auditCount != 1 || sessionCount != 0 {
		t.Fatalf("want 1 audit row and no session, got audit=%d sessions=%d", auditCount, sessionCount)
	}
}

func TestEngine_VerifyAccount_DetectsTampering(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	for _, amount := range []int64{-1_000, 2_500, -1_000} {
		kind := audit.KindPayout
		if amount < 0 {
			kind = audit.KindStake
		}
		if _, err := engine.Apply(ctx, Entry{AccountID: 1, Amount: amount, Kind: kind, GameTag: "slots"}); err != nil {
			t.Fatalf("apply %d: %v", amount, err)
		}
	}

	if _, err := engine.VerifyAccount(ctx, 1); err != nil {
		t.Fatalf("intact chain: %v", err)
	}

	if _, err := db.Exec(`UPDATE audit_records SET amount = amount + 1 WHERE account_id = 1 AND seq = 2`); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.VerifyAccount(ctx, 1); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("want ErrChainBroken, got %v", err)
	}
}

func TestEngine_Apply_SettleLegCommitsWithStake(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	snap, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -2_000,
		Kind:      audit.KindStake,
		GameTag:   "slots",
		Stats: accounts.StatsDelta{
			Wagered: 2_000,
			Won:     3_000,
			Profit:  1_000,
			Bet:     &accounts.BetOutcome{Amount: 2_000, Won: true},
		},
		Settle: &Leg{Amount: 3_000, Kind: audit.KindPayout},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap.Account.Balance != 11_000 {
		t.Fatalf("balance: want 11000, got %d", snap.Account.Balance)
	}

	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = 1`).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != 11_000 {
		t.Fatalf("stored balance: want 11000, got %d", balance)
	}

	rows, err := db.Query(`SELECT amount, balance, kind FROM audit_records WHERE account_id = 1 ORDER BY seq`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	type leg struct {
		amount, balance int64
		kind            string
	}
	var got []leg
	for rows.Next() {
		var l leg
		if err := rows.Scan(&l.amount, &l.balance, &l.kind); err != nil {
			t.Fatal(err)
		}
		got = append(got, l)
	}
	want := []leg{
		{-2_000, 8_000, string(audit.KindStake)},
		{3_000, 11_000, string(audit.KindPayout)},
	}
	if len(got) != len(want) {
		t.Fatalf("audit records: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: want %+v, got %+v", i, want[i], got[i])
		}
	}

	n, err := engine.VerifyAccount(ctx, 1)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n != 2 {
		t.Fatalf("chain length: want 2, got %d", n)
	}
}

func TestEngine_Apply_ZeroSettleLegWritesOneRecord(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 5_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	snap, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -1_000,
		Kind:      audit.KindStake,
		GameTag:   "baccarat",
		Stats: accounts.StatsDelta{
			Wagered: 1_000,
			Profit:  -1_000,
			Bet:     &accounts.BetOutcome{Amount: 1_000, Won: false},
		},
		Settle: &Leg{Amount: 0, Kind: audit.KindPayout},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if snap.Account.Balance != 4_000 {
		t.Fatalf("balance: want 4000, got %d", snap.Account.Balance)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE account_id = 1`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("audit records: want 1, got %d", count)
	}
}

func TestEngine_Apply_SettleLegInseparableFromStake(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 500)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	// Stake exceeds the balance; the payout leg must not survive the
	// aborted debit as a stray credit.
	_, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -800,
		Kind:      audit.KindStake,
		GameTag:   "slots",
		Stats:     accounts.StatsDelta{Wagered: 800},
		Settle:    &Leg{Amount: 1_600, Kind: audit.KindPayout},
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = 1`).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != 500 {
		t.Fatalf("balance: want 500, got %d", balance)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE account_id = 1`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("audit records: want 0, got %d", count)
	}
}

func TestEngine_Apply_NegativeSettleLegRejected(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	engine := New(db)
	seedAccount(t, db, 1, 5_000)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, err := engine.Apply(ctx, Entry{
		AccountID: 1,
		Amount:    -1_000,
		Kind:      audit.KindStake,
		Settle:    &Leg{Amount: -500, Kind: audit.KindPayout},
	})
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("want ErrTransactionFailed, got %v", err)
	}
}
