package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/models"

	"github.com/shopspring/decimal"
)

func TestSettleProportionalPayout(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")
	carol := createTestUser(t, env.db, "carol")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Home", "Away")
	mustStake(t, env, p, 0, alice.ID, "alice", "100")
	mustStake(t, env, p, 0, bob.ID, "bob", "200")
	mustStake(t, env, p, 1, carol.ID, "carol", "700")
	lockNow(t, env, p)

	result, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.Status != models.PredictionStatusSettled {
		t.Errorf("expected status SETTLED, got %s", result.Status)
	}
	if result.AutoVoided {
		t.Error("expected a normal settlement, got auto-void")
	}
	if result.StakeCount != 3 {
		t.Errorf("expected 3 stakes, got %d", result.StakeCount)
	}

	// 100 and 200 on a 300 winning pool split 1000: shares are 333.333... and
	// 666.666..., truncated to token precision.
	wantPayouts := map[uint]string{
		alice.ID: "333.333",
		bob.ID:   "666.666",
		carol.ID: "0",
	}
	stakes, err := env.repo.ListStakes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("failed to list stakes: %v", err)
	}
	paid := decimal.Zero
	for _, stake := range stakes {
		if stake.Payout == nil {
			t.Errorf("user %d payout still pending after settlement", stake.UserID)
			continue
		}
		want := decimal.RequireFromString(wantPayouts[stake.UserID])
		if !stake.Payout.Equal(want) {
			t.Errorf("user %d: expected payout %s, got %s", stake.UserID, want, stake.Payout)
		}
		paid = paid.Add(*stake.Payout)
	}

	// The truncation remainder stays unallocated: paid out never exceeds pool.
	got := reload(t, env, p.ID)
	if paid.GreaterThan(got.TotalPool) {
		t.Errorf("paid out %s exceeds total pool %s", paid, got.TotalPool)
	}
	if want := decimal.RequireFromString("999.999"); !paid.Equal(want) {
		t.Errorf("expected total paid %s, got %s", want, paid)
	}
	if !result.Settlement.PaidOut.Equal(paid) {
		t.Errorf("settlement records paid out %s, stakes sum to %s", result.Settlement.PaidOut, paid)
	}

	if got.Status != models.PredictionStatusSettled {
		t.Errorf("expected stored status SETTLED, got %s", got.Status)
	}
	if got.WinningOutcomeID == nil || *got.WinningOutcomeID != p.Outcomes[0].ID {
		t.Error("expected winning outcome recorded on the prediction")
	}
	for _, outcome := range got.Outcomes {
		if outcome.ID == p.Outcomes[0].ID && !outcome.IsWinner {
			t.Error("expected winning outcome flagged")
		}
		if outcome.ID == p.Outcomes[1].ID && outcome.IsWinner {
			t.Error("losing outcome flagged as winner")
		}
	}
}

func TestSettleIncludesStakeAdmittedBeforeLock(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")
	carol := createTestUser(t, env.db, "carol")
	dave := createTestUser(t, env.db, "dave")

	locksAt := time.Now().Add(time.Hour)
	p := createTestPrediction(t, env, creator.ID, locksAt, "Home", "Away")
	mustStake(t, env, p, 0, alice.ID, "alice", "100")
	mustStake(t, env, p, 0, bob.ID, "bob", "200")
	mustStake(t, env, p, 1, carol.ID, "carol", "700")

	// Drive the lifecycle clock so that one more stake lands on the winning
	// outcome after the settle call has taken its first read of the pools but
	// before the lock takes. The payout ratio must be computed from the pools
	// as of the lock, with that stake included.
	beforeLock := time.Now()
	afterLock := locksAt.Add(time.Minute)
	state := 0
	env.lifecycle.now = func() time.Time {
		switch state {
		case 0:
			state = 1
			mustStake(t, env, p, 0, dave.ID, "dave", "100")
			state = 2
			return afterLock
		case 1:
			// The clock the late stake itself observes is still pre-lock.
			return beforeLock
		default:
			return afterLock
		}
	}

	result, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	// Pool is 1100 with 400 on the winner: 100 → 275, 200 → 550.
	wantPayouts := map[uint]string{
		alice.ID: "275",
		bob.ID:   "550",
		carol.ID: "0",
		dave.ID:  "275",
	}
	stakes, err := env.repo.ListStakes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("failed to list stakes: %v", err)
	}
	if len(stakes) != 4 {
		t.Fatalf("expected 4 stakes, got %d", len(stakes))
	}
	paid := decimal.Zero
	for _, stake := range stakes {
		want := decimal.RequireFromString(wantPayouts[stake.UserID])
		if stake.Payout == nil || !stake.Payout.Equal(want) {
			t.Errorf("user %d: expected payout %s, got %v", stake.UserID, want, stake.Payout)
		}
		if stake.Payout != nil {
			paid = paid.Add(*stake.Payout)
		}
	}

	got := reload(t, env, p.ID)
	if paid.GreaterThan(got.TotalPool) {
		t.Errorf("paid out %s exceeds total pool %s", paid, got.TotalPool)
	}
	if want := decimal.RequireFromString("1100"); !result.Settlement.TotalPool.Equal(want) {
		t.Errorf("settlement records pool %s, want %s", result.Settlement.TotalPool, want)
	}
}

func TestSettleConcurrentCallers(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	mustStake(t, env, p, 0, alice.ID, "alice", "100")
	mustStake(t, env, p, 1, bob.ID, "bob", "300")
	lockNow(t, env, p)

	// A single connection serializes the two transactions at the pool without
	// changing their ordering at the service layer, so the loser cannot fail
	// with a driver busy error instead of losing the status swap.
	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
			results <- err
		}()
	}

	wins, conflicts := 0, 0
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidTransition {
			t.Fatalf("unexpected error from concurrent settle: %v", err)
		}
		conflicts++
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winning settle, got %d successes and %d conflicts", wins, conflicts)
	}

	// Payouts were written exactly once.
	stakes, err := env.repo.ListStakes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("failed to list stakes: %v", err)
	}
	for _, stake := range stakes {
		want := stake.Amount.Mul(decimal.RequireFromString("4")).RoundDown(3)
		if stake.OutcomeID != p.Outcomes[0].ID {
			want = decimal.Zero
		}
		if stake.Payout == nil || !stake.Payout.Equal(want) {
			t.Errorf("user %d: expected payout %s, got %v", stake.UserID, want, stake.Payout)
		}
	}
	if _, err := env.repo.GetSettlement(context.Background(), p.ID); err != nil {
		t.Errorf("expected a settlement record: %v", err)
	}
}

func TestSettleExactlyOnce(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	mustStake(t, env, p, 0, alice.ID, "alice", "100")
	mustStake(t, env, p, 1, bob.ID, "bob", "100")
	lockNow(t, env, p)

	ctx := context.Background()
	if _, err := env.settlement.Settle(ctx, p.ID, p.Outcomes[0].ID, creator.ID); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}

	// A second settle, even with a different winner, must fail cleanly.
	_, err := env.settlement.Settle(ctx, p.ID, p.Outcomes[1].ID, creator.ID)
	wantCode(t, err, apperrors.CodeInvalidTransition)

	// And so must a void after settlement.
	_, err = env.settlement.Void(ctx, p.ID, "changed my mind", creator.ID)
	wantCode(t, err, apperrors.CodeInvalidTransition)

	// Payouts are untouched by the failed attempts.
	summary, err := env.stakes.GetMyStakes(ctx, p.ID, alice.ID)
	if err != nil {
		t.Fatalf("failed to load stakes: %v", err)
	}
	if want := decimal.RequireFromString("200"); !summary.TotalPayout.Equal(want) {
		t.Errorf("expected payout %s after failed re-settle, got %s", want, summary.TotalPayout)
	}
}

func TestSettleRequiresLocked(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")

	_, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
	wantCode(t, err, apperrors.CodeInvalidTransition)
}

func TestSettlePastDueOpenPrediction(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	mustStake(t, env, p, 0, alice.ID, "alice", "100")

	// Rewind locks_at but leave the stored status OPEN; settlement must apply
	// the lazy lock itself rather than depend on the sweeper.
	err := env.db.Model(&models.Prediction{}).
		Where("id = ?", p.ID).
		Update("locks_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("failed to rewind locks_at: %v", err)
	}
	p.LocksAt = time.Now().Add(-time.Minute)

	result, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.Status != models.PredictionStatusSettled {
		t.Errorf("expected status SETTLED, got %s", result.Status)
	}
}

func TestSettleUnknownOutcome(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	other := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	lockNow(t, env, p)

	_, err := env.settlement.Settle(context.Background(), p.ID, other.Outcomes[0].ID, creator.ID)
	wantCode(t, err, apperrors.CodeValidation)
}

func TestSettleZeroWinningPoolAutoVoids(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	mustStake(t, env, p, 1, alice.ID, "alice", "150")
	mustStake(t, env, p, 1, bob.ID, "bob", "50")
	lockNow(t, env, p)

	// The winner nobody staked cannot be paid proportionally.
	result, err := env.settlement.Settle(context.Background(), p.ID, p.Outcomes[0].ID, creator.ID)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !result.AutoVoided {
		t.Error("expected auto-void on zero winning pool")
	}
	if result.Status != models.PredictionStatusVoid {
		t.Errorf("expected status VOID, got %s", result.Status)
	}

	got := reload(t, env, p.ID)
	if got.Status != models.PredictionStatusVoid {
		t.Errorf("expected stored status VOID, got %s", got.Status)
	}
	if got.VoidReason == nil || *got.VoidReason == "" {
		t.Error("expected a void reason on the prediction")
	}

	// Everyone is refunded in full.
	stakes, err := env.repo.ListStakes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("failed to list stakes: %v", err)
	}
	for _, stake := range stakes {
		if stake.Payout == nil || !stake.Payout.Equal(stake.Amount) {
			t.Errorf("user %d: expected refund of %s, got %v", stake.UserID, stake.Amount, stake.Payout)
		}
	}
}

func TestVoidRefundsAllStakes(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")
	alice := createTestUser(t, env.db, "alice")
	bob := createTestUser(t, env.db, "bob")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	mustStake(t, env, p, 0, alice.ID, "alice", "120.250")
	mustStake(t, env, p, 1, bob.ID, "bob", "80")
	lockNow(t, env, p)

	result, err := env.settlement.Void(context.Background(), p.ID, "match abandoned", creator.ID)
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if result.Status != models.PredictionStatusVoid {
		t.Errorf("expected status VOID, got %s", result.Status)
	}
	if result.AutoVoided {
		t.Error("manual void must not be flagged as auto-void")
	}
	if !result.Settlement.PaidOut.Equal(result.Settlement.TotalPool) {
		t.Errorf("void paid out %s of pool %s", result.Settlement.PaidOut, result.Settlement.TotalPool)
	}

	stakes, err := env.repo.ListStakes(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("failed to list stakes: %v", err)
	}
	for _, stake := range stakes {
		if stake.Payout == nil || !stake.Payout.Equal(stake.Amount) {
			t.Errorf("user %d: expected refund of %s, got %v", stake.UserID, stake.Amount, stake.Payout)
		}
	}

	got := reload(t, env, p.ID)
	if got.VoidReason == nil || *got.VoidReason != "match abandoned" {
		t.Error("expected void reason recorded on the prediction")
	}
}

func TestVoidRequiresReason(t *testing.T) {
	env := newTestEnv(t, decimal.RequireFromString("100000"))
	creator := createTestUser(t, env.db, "creator")

	p := createTestPrediction(t, env, creator.ID, time.Now().Add(time.Hour), "Yes", "No")
	lockNow(t, env, p)

	_, err := env.settlement.Void(context.Background(), p.ID, "   ", creator.ID)
	wantCode(t, err, apperrors.CodeValidation)
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to models.PredictionStatus }{
		{models.PredictionStatusOpen, models.PredictionStatusLocked},
		{models.PredictionStatusLocked, models.PredictionStatusSettling},
		{models.PredictionStatusSettling, models.PredictionStatusSettled},
		{models.PredictionStatusSettling, models.PredictionStatusVoid},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to models.PredictionStatus }{
		{models.PredictionStatusOpen, models.PredictionStatusSettling},
		{models.PredictionStatusOpen, models.PredictionStatusSettled},
		{models.PredictionStatusLocked, models.PredictionStatusOpen},
		{models.PredictionStatusLocked, models.PredictionStatusVoid},
		{models.PredictionStatusSettled, models.PredictionStatusVoid},
		{models.PredictionStatusVoid, models.PredictionStatusOpen},
		{models.PredictionStatusSettled, models.PredictionStatusSettling},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}
