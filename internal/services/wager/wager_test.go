package wager

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stakeworks/wagerd/internal/games/blackjack"
	"github.com/stakeworks/wagerd/internal/games/cards"
	"github.com/stakeworks/wagerd/internal/games/mines"
	"github.com/stakeworks/wagerd/internal/games/slots"
	"github.com/stakeworks/wagerd/internal/infra/pgtestutil"
	"github.com/stakeworks/wagerd/internal/ledger"
	"github.com/stakeworks/wagerd/internal/rng"
	"github.com/stakeworks/wagerd/internal/rng/rngtest"
)

func newTestService(t *testing.T, db *sql.DB) *Service {
	t.Helper()

	opts := DefaultOptions()
	opts.RNG = rngtest.New(42)
	return New(db, opts)
}

func seedAccount(t *testing.T, db *sql.DB, id, balance int64) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO accounts (id, balance) VALUES ($1, $2)`, id, balance); err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func balanceOf(t *testing.T, db *sql.DB, id int64) int64 {
	t.Helper()
	var balance int64
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, id).Scan(&balance); err != nil {
		t.Fatalf("read balance(%d): %v", id, err)
	}
	return balance
}

func sessionCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM game_sessions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestService_DepositWithdraw(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 0)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	balance, err := svc.Deposit(ctx, 1, 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance != 10_000 {
		t.Fatalf("balance after deposit: %d", balance)
	}

	balance, err = svc.Withdraw(ctx, 1, 3_000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if balance != 7_000 {
		t.Fatalf("balance after withdraw: %d", balance)
	}

	if _, err := svc.Withdraw(ctx, 1, 8_000); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("overdraw: want ErrInsufficientFunds, got %v", err)
	}

	report, err := svc.VerifyAudit(ctx, 1)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Intact || report.Records != 2 {
		t.Fatalf("audit report: %+v", report)
	}
}

func TestService_SpinSlots_BalanceArithmetic(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	res, err := svc.SpinSlots(ctx, 1, 2_000)
	if err != nil {
		t.Fatalf("spin: %v", err)
	}

	if res.Balance != 10_000-2_000+res.Payout {
		t.Fatalf("balance: want %d, got %d", 10_000-2_000+res.Payout, res.Balance)
	}
	if res.Balance != balanceOf(t, db, 1) {
		t.Fatal("response balance differs from stored balance")
	}
	if sessionCount(t, db) != 0 {
		t.Fatal("single-step spin left a session")
	}

	// The spin never reports the tease category.
	if res.Category == "NEAR_MISS" {
		t.Fatal("near miss leaked to the client")
	}

	var auditCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE account_id = 1`).Scan(&auditCount); err != nil {
		t.Fatal(err)
	}
	wantRecords := 1
	if res.Payout > 0 {
		wantRecords = 2
	}
	if auditCount != wantRecords {
		t.Fatalf("audit records: want %d, got %d", wantRecords, auditCount)
	}

	if report, err := svc.VerifyAudit(ctx, 1); err != nil || !report.Intact {
		t.Fatalf("chain not intact: %+v %v", report, err)
	}
}

func TestService_ConcurrentWithdrawalsNoDoubleSpend(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 1_000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	worker := func() {
		defer wg.Done()
		_, err := svc.Withdraw(context.Background(), 1, 800)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			success++
		case errors.Is(err, ledger.ErrInsufficientFunds):
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
		t.Fatalf("want exactly one success, got success=%d insufficient=%d", success, insufficient)
	}
	if got := balanceOf(t, db, 1); got != 200 {
		t.Fatalf("balance: want 200, got %d", got)
	}
}

func TestService_SingleActiveSession(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.MinesOpen(ctx, 1, 500, 3); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := svc.MinesOpen(ctx, 1, 500, 3); !errors.Is(err, ledger.ErrSessionConflict) {
		t.Fatalf("second open: want ErrSessionConflict, got %v", err)
	}
	if _, err := svc.BlackjackDeal(ctx, 1, 500); !errors.Is(err, ledger.ErrSessionConflict) {
		t.Fatalf("deal during mines: want ErrSessionConflict, got %v", err)
	}
	if _, err := svc.SpinSlots(ctx, 1, 500); !errors.Is(err, ledger.ErrSessionConflict) {
		t.Fatalf("spin during mines: want ErrSessionConflict, got %v", err)
	}

	// Only the first stake was debited.
	if got := balanceOf(t, db, 1); got != 9_500 {
		t.Fatalf("balance: want 9500, got %d", got)
	}
}

// minesLayout reads the private session state straight from storage, so the
// test can steer around the mines deterministically.
func minesLayout(t *testing.T, db *sql.DB, accountID int64) mines.State {
	t.Helper()

	var raw []byte
	if err := db.QueryRow(`SELECT state FROM game_sessions WHERE account_id = $1`, accountID).Scan(&raw); err != nil {
		t.Fatalf("read session state: %v", err)
	}
	var state mines.State
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("decode session state: %v", err)
	}
	return state
}

func safeTiles(state mines.State, n int) []int {
	isMine := make(map[int]bool, len(state.Mines))
	for _, m := range state.Mines {
		isMine[m] = true
	}
	var tiles []int
	for tile := 0; tile < mines.GridTiles && len(tiles) < n; tile++ {
		if !isMine[tile] {
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

func TestService_MinesRevealCashoutLifecycle(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	view, err := svc.MinesOpen(ctx, 1, 500, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if view.Balance != 9_500 {
		t.Fatalf("balance after open: %d", view.Balance)
	}

	state := minesLayout(t, db, 1)
	for _, tile := range safeTiles(state, 5) {
		view, err = svc.MinesReveal(ctx, 1, tile)
		if err != nil {
			t.Fatalf("reveal %d: %v", tile, err)
		}
		if view.Settled {
			t.Fatalf("reveal of safe tile %d settled the round: %+v", tile, view)
		}
	}
	if len(view.Revealed) != 5 {
		t.Fatalf("revealed count: %d", len(view.Revealed))
	}

	wantPayout := minesPayout(500, mines.Multiplier(svc.opts.Mines, 3, 5))
	out, err := svc.MinesCashout(ctx, 1)
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}
	if out.Payout != wantPayout {
		t.Fatalf("payout: want %d, got %d", wantPayout, out.Payout)
	}
	if out.Balance != 9_500+wantPayout {
		t.Fatalf("balance: want %d, got %d", 9_500+wantPayout, out.Balance)
	}
	if out.ServerSeed == "" {
		t.Fatal("settle must disclose the server seed")
	}
	if sessionCount(t, db) != 0 {
		t.Fatal("session survived cashout")
	}

	// Replaying the cashout finds no session.
	if _, err := svc.MinesCashout(ctx, 1); !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("replayed cashout: want ErrSessionNotFound, got %v", err)
	}

	if report, err := svc.VerifyAudit(ctx, 1); err != nil || !report.Intact {
		t.Fatalf("chain not intact: %+v %v", report, err)
	}
}

func TestService_MinesRevealReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.MinesOpen(ctx, 1, 500, 1); err != nil {
		t.Fatalf("open: %v", err)
	}

	tile := safeTiles(minesLayout(t, db, 1), 1)[0]

	first, err := svc.MinesReveal(ctx, 1, tile)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	again, err := svc.MinesReveal(ctx, 1, tile)
	if err != nil {
		t.Fatalf("replayed reveal: %v", err)
	}

	if again.Revision != first.Revision {
		t.Fatalf("replay bumped revision: %d -> %d", first.Revision, again.Revision)
	}
	if again.Multiplier != first.Multiplier || len(again.Revealed) != len(first.Revealed) {
		t.Fatalf("replay changed public state: %+v vs %+v", first, again)
	}
	if got := balanceOf(t, db, 1); got != 9_500 {
		t.Fatalf("replay touched balance: %d", got)
	}
}

func TestService_MinesHitSettlesAsLoss(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.MinesOpen(ctx, 1, 500, 3); err != nil {
		t.Fatalf("open: %v", err)
	}

	mineTile := minesLayout(t, db, 1).Mines[0]
	view, err := svc.MinesReveal(ctx, 1, mineTile)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !view.Settled || !view.Hit {
		t.Fatalf("mine hit not terminal: %+v", view)
	}
	if len(view.Mines) == 0 {
		t.Fatal("settled view must disclose the mine layout")
	}
	if view.Balance != 9_500 {
		t.Fatalf("loss must keep the stake debited: %d", view.Balance)
	}
	if sessionCount(t, db) != 0 {
		t.Fatal("session survived the hit")
	}
}

func TestService_ForfeitIsFullLoss(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.MinesOpen(ctx, 1, 800, 3); err != nil {
		t.Fatalf("open: %v", err)
	}

	balance, err := svc.Forfeit(ctx, 1)
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if balance != 9_200 {
		t.Fatalf("balance after forfeit: want 9200, got %d", balance)
	}
	if sessionCount(t, db) != 0 {
		t.Fatal("session survived forfeit")
	}

	if _, err := svc.Forfeit(ctx, 1); !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("second forfeit: want ErrSessionNotFound, got %v", err)
	}
}

func TestService_ResyncProjectsSessionWithoutSecrets(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.Resync(ctx, 1); !errors.Is(err, ledger.ErrSessionNotFound) {
		t.Fatalf("resync without session: want ErrSessionNotFound, got %v", err)
	}

	if _, err := svc.MinesOpen(ctx, 1, 500, 3); err != nil {
		t.Fatalf("open: %v", err)
	}

	pub, err := svc.Resync(ctx, 1)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if pub.Kind != "mines" || pub.SeedHash == "" {
		t.Fatalf("projection: %+v", pub)
	}

	// The serialized projection must not contain the mine layout.
	raw, err := json.Marshal(pub)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if gs, ok := decoded["game_state"].(map[string]interface{}); ok {
		if _, leak := gs["mines"]; leak {
			t.Fatal("projection leaked mine layout")
		}
	}
}

func TestService_BlackjackStandSettles(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	view, err := svc.BlackjackDeal(ctx, 1, 1_000)
	if err != nil {
		t.Fatalf("deal: %v", err)
	}

	if view.Settled {
		// Natural off the deal: the round settled in one call.
		if view.Balance != 9_000+view.Payout {
			t.Fatalf("balance: want %d, got %d", 9_000+view.Payout, view.Balance)
		}
		if sessionCount(t, db) != 0 {
			t.Fatal("natural left a session")
		}
		return
	}

	if view.Phase == blackjack.PhaseInsurance {
		if view, err = svc.BlackjackInsurance(ctx, 1, false); err != nil {
			t.Fatalf("decline insurance: %v", err)
		}
	}

	out, err := svc.BlackjackStand(ctx, 1)
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	if !out.Settled {
		t.Fatalf("stand did not settle: %+v", out)
	}
	if out.Balance != 9_000+out.Payout {
		t.Fatalf("balance: want %d, got %d", 9_000+out.Payout, out.Balance)
	}
	if out.DealerTotal < 17 && out.Outcome == blackjack.OutcomeWin {
		t.Fatalf("dealer stopped early: %+v", out)
	}
	if sessionCount(t, db) != 0 {
		t.Fatal("session survived settlement")
	}

	if report, err := svc.VerifyAudit(ctx, 1); err != nil || !report.Intact {
		t.Fatalf("chain not intact: %+v %v", report, err)
	}
}

// plantBlackjackState replaces the persisted round with a crafted one, to
// drive the insurance path deterministically.
func plantBlackjackState(t *testing.T, db *sql.DB, accountID int64, state blackjack.State) {
	t.Helper()

	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE game_sessions SET state = $2 WHERE account_id = $1`, accountID, raw); err != nil {
		t.Fatalf("plant state: %v", err)
	}
}

func TestService_BlackjackInsuranceDebitsHalfStake(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	view, err := svc.BlackjackDeal(ctx, 1, 1_000)
	if err != nil {
		t.Fatalf("deal: %v", err)
	}
	if view.Settled {
		t.Skip("natural off the deal, no session to test insurance on")
	}

	plantBlackjackState(t, db, 1, blackjack.State{
		Player: []cards.Card{{Rank: "10", Suit: cards.Spades}, {Rank: "8", Suit: cards.Hearts}},
		Dealer: []cards.Card{{Rank: "A", Suit: cards.Clubs}, {Rank: "9", Suit: cards.Spades}},
		Deck:   []cards.Card{{Rank: "2", Suit: cards.Spades}},
		Phase:  blackjack.PhaseInsurance,
	})

	after, err := svc.BlackjackInsurance(ctx, 1, true)
	if err != nil {
		t.Fatalf("take insurance: %v", err)
	}
	if after.Balance != 8_500 {
		t.Fatalf("balance after insurance: want 8500, got %d", after.Balance)
	}
	if after.Phase != blackjack.PhasePlaying {
		t.Fatalf("phase: %q", after.Phase)
	}

	// Replaying the decision is a no-op.
	replay, err := svc.BlackjackInsurance(ctx, 1, true)
	if err != nil {
		t.Fatalf("replay insurance: %v", err)
	}
	if replay.Revision != after.Revision || balanceOf(t, db, 1) != 8_500 {
		t.Fatal("insurance replay was not idempotent")
	}

	// Dealer has no natural (A+9 is soft 20): insurance is lost and the
	// main bet loses 18 to 20.
	out, err := svc.BlackjackStand(ctx, 1)
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	if !out.Settled {
		t.Fatalf("stand did not settle: %+v", out)
	}
	if out.Balance != 8_500+out.Payout {
		t.Fatalf("balance: want %d, got %d", 8_500+out.Payout, out.Balance)
	}
}

func TestService_SweeperForfeitsIdleSessions(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	opts := DefaultOptions()
	opts.RNG = rngtest.New(42)
	opts.IdleTimeout = time.Millisecond
	svc := New(db, opts)

	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.MinesOpen(ctx, 1, 500, 3); err != nil {
		t.Fatalf("open: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	svc.SweepIdleSessions(ctx)

	if sessionCount(t, db) != 0 {
		t.Fatal("idle session survived the sweep")
	}
	if got := balanceOf(t, db, 1); got != 9_500 {
		t.Fatalf("forfeiture must be a full loss: %d", got)
	}
}

func TestService_LockContentionIsBusy(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	opts := DefaultOptions()
	opts.RNG = rngtest.New(42)
	opts.LockWait = 50 * time.Millisecond
	svc := New(db, opts)

	seedAccount(t, db, 1, 10_000)

	release, err := svc.locks.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.Deposit(ctx, 1, 100); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
}

func TestService_InvalidInputs(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	if _, err := svc.SpinSlots(ctx, 1, 0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("zero stake: %v", err)
	}
	if _, err := svc.MinesOpen(ctx, 1, 500, 0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("zero mines: %v", err)
	}
	if _, err := svc.MinesOpen(ctx, 1, 500, 25); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("all-mine grid: %v", err)
	}
	if _, err := svc.Balance(ctx, 404); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("unknown account: %v", err)
	}
}

func TestService_SlotsSpinReproducibleFromSeed(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	res, err := svc.SpinSlots(ctx, 1, 2_000)
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	if rng.SeedHash(res.ServerSeed) != res.SeedHash {
		t.Fatal("disclosed seed does not match the committed hash")
	}

	// The disclosed seed, stake and tier fully determine the spin.
	replay := slots.Spin(rng.NewStream(res.ServerSeed), svc.opts.Slots, 2_000, res.Tier)
	if replay.Reels != res.Reels {
		t.Fatalf("reels: disclosed %v, replayed %v", res.Reels, replay.Reels)
	}
	if replay.Payout != res.Payout {
		t.Fatalf("payout: disclosed %d, replayed %d", res.Payout, replay.Payout)
	}
}

func TestService_MinesLayoutReproducibleFromSeed(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := newTestService(t, db)
	seedAccount(t, db, 1, 10_000)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	view, err := svc.MinesOpen(ctx, 1, 500, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	state := minesLayout(t, db, 1)
	tile := safeTiles(state, 1)[0]
	if _, err := svc.MinesReveal(ctx, 1, tile); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	out, err := svc.MinesCashout(ctx, 1)
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}

	if rng.SeedHash(out.ServerSeed) != view.SeedHash {
		t.Fatal("disclosed seed does not match the committed hash")
	}

	replay := mines.NewState(rng.NewStream(out.ServerSeed), 3)
	if len(replay.Mines) != len(out.Mines) {
		t.Fatalf("mine count: disclosed %d, replayed %d", len(out.Mines), len(replay.Mines))
	}
	for i := range replay.Mines {
		if replay.Mines[i] != out.Mines[i] {
			t.Fatalf("layout: disclosed %v, replayed %v", out.Mines, replay.Mines)
		}
	}
}
