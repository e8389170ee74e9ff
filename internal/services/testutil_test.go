package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/auth"
	"sportsblock/internal/database"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// A named shared-cache memory DB so every pooled connection sees the
	// same data, unique per test so tests stay isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// stubBalances is a canned balance collaborator
type stubBalances struct {
	available decimal.Decimal
	err       error
}

func (s stubBalances) GetBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	return s.available, s.err
}

type testEnv struct {
	db         *gorm.DB
	repo       *repository.Repository
	lifecycle  *LifecycleService
	ledger     *PoolLedger
	stakes     *StakeService
	settlement *SettlementService
	preds      *PredictionService
}

func newTestEnv(t *testing.T, available decimal.Decimal) *testEnv {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	lifecycle := NewLifecycleService(repo)
	ledger := NewPoolLedger(
		repo,
		stubBalances{available: available},
		lifecycle,
		decimal.RequireFromString("10"),
		decimal.RequireFromString("1000"),
	)
	authorizer := auth.NewAuthorizer([]string{"sb-admin"})
	return &testEnv{
		db:         db,
		repo:       repo,
		lifecycle:  lifecycle,
		ledger:     ledger,
		stakes:     NewStakeService(repo, ledger),
		settlement: NewSettlementService(repo, lifecycle),
		preds:      NewPredictionService(repo, lifecycle, authorizer),
	}
}

func createTestUser(t *testing.T, db *gorm.DB, account string) *models.User {
	user := models.User{HiveAccount: account}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &user
}

// createTestPrediction builds a prediction with the given outcome labels
func createTestPrediction(
	t *testing.T,
	env *testEnv,
	creatorID uint,
	locksAt time.Time,
	labels ...string,
) *models.Prediction {
	prediction := &models.Prediction{
		ID:        uuid.New(),
		Permlink:  fmt.Sprintf("test-%s", uuid.NewString()[:8]),
		Title:     "Test prediction",
		CreatorID: creatorID,
		LocksAt:   locksAt,
		Status:    models.PredictionStatusOpen,
		CreatedAt: time.Now(),
	}
	outcomes := make([]models.Outcome, len(labels))
	for i, label := range labels {
		outcomes[i] = models.Outcome{ID: uuid.New(), Label: label, SortOrder: i}
	}
	if err := env.repo.CreatePrediction(context.Background(), prediction, outcomes); err != nil {
		t.Fatalf("failed to create prediction: %v", err)
	}
	prediction.Outcomes = outcomes
	return prediction
}

// mustStake places a stake and fails the test on error
func mustStake(t *testing.T, env *testEnv, p *models.Prediction, outcomeIdx int, userID uint, account string, amount string) *models.Stake {
	stake, _, err := env.ledger.RecordStake(
		context.Background(),
		p.ID,
		p.Outcomes[outcomeIdx].ID,
		userID,
		account,
		decimal.RequireFromString(amount),
	)
	if err != nil {
		t.Fatalf("stake of %s failed: %v", amount, err)
	}
	return stake
}

// lockNow forces a prediction into LOCKED for settlement tests
func lockNow(t *testing.T, env *testEnv, p *models.Prediction) {
	err := env.db.Model(&models.Prediction{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"status":   models.PredictionStatusLocked,
			"locks_at": time.Now().Add(-time.Minute),
		}).Error
	if err != nil {
		t.Fatalf("failed to lock prediction: %v", err)
	}
	p.Status = models.PredictionStatusLocked
	p.LocksAt = time.Now().Add(-time.Minute)
}

// wantCode asserts an error carries the given taxonomy code
func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperrors.Error with code %s, got %T: %v", code, err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// reload fetches the current prediction state
func reload(t *testing.T, env *testEnv, id uuid.UUID) *models.Prediction {
	t.Helper()
	p, err := env.repo.GetPredictionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload prediction: %v", err)
	}
	return p
}
