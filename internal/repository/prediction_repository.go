package repository

import (
	"context"
	"time"

	"sportsblock/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a transactional repository. Financial mutations
// (stake intake, settlement, void) are all-or-nothing through this.
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// CreatePrediction creates a prediction together with its outcomes
func (r *Repository) CreatePrediction(ctx context.Context, prediction *models.Prediction, outcomes []models.Outcome) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(prediction).Error; err != nil {
			return err
		}
		for i := range outcomes {
			outcomes[i].PredictionID = prediction.ID
		}
		return tx.Create(&outcomes).Error
	})
}

// GetPredictionByID retrieves a prediction with its outcomes
func (r *Repository) GetPredictionByID(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	var prediction models.Prediction
	err := r.db.WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&prediction).Error
	if err != nil {
		return nil, err
	}
	return &prediction, nil
}

// GetOutcome retrieves a single outcome
func (r *Repository) GetOutcome(ctx context.Context, id uuid.UUID) (*models.Outcome, error) {
	var outcome models.Outcome
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&outcome).Error
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListPredictions returns a page of predictions, newest first. The cursor is
// (before, beforeID); zero values mean "from the top".
func (r *Repository) ListPredictions(
	ctx context.Context,
	statuses []models.PredictionStatus,
	before time.Time,
	beforeID uuid.UUID,
	limit int,
) ([]models.Prediction, error) {
	query := r.db.WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		})

	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	if !before.IsZero() {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", before, before, beforeID)
	}

	var predictions []models.Prediction
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&predictions).Error
	return predictions, err
}

// UpdatePrediction persists pre-stake edits
func (r *Repository) UpdatePrediction(ctx context.Context, prediction *models.Prediction) error {
	return r.db.WithContext(ctx).Save(prediction).Error
}

// UpdateOutcomeLabel renames an outcome
func (r *Repository) UpdateOutcomeLabel(ctx context.Context, id uuid.UUID, label string) error {
	return r.db.WithContext(ctx).
		Model(&models.Outcome{}).
		Where("id = ?", id).
		Update("label", label).Error
}

// DeletePrediction removes a prediction and its outcomes. The prediction row
// delete is conditional on OPEN status and a zero pool, so a stake that
// commits after the caller's check stops the cascade instead of being
// destroyed with it. Returns false when the guard did not match.
func (r *Repository) DeletePrediction(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("id = ? AND status = ? AND total_pool = 0", id, models.PredictionStatusOpen).
			Delete(&models.Prediction{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Where("prediction_id = ?", id).Delete(&models.Stake{}).Error; err != nil {
			return err
		}
		return tx.Where("prediction_id = ?", id).Delete(&models.Outcome{}).Error
	})
	return deleted, err
}

// TransitionStatus performs a compare-and-swap status update. It succeeds only
// when the current status is exactly `from`; concurrent callers observe false
// and must not mutate anything further.
func (r *Repository) TransitionStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to models.PredictionStatus,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkLockedIfDue flips an OPEN prediction to LOCKED once its lock time has
// passed. Safe to call from any read or mutation path; the conditional update
// makes concurrent callers idempotent.
func (r *Repository) MarkLockedIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ? AND status = ? AND locks_at <= ?", id, models.PredictionStatusOpen, now).
		Updates(map[string]interface{}{
			"status":     models.PredictionStatusLocked,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LockEarly locks an OPEN prediction ahead of its lock time. The lock
// timestamp is rewound so stored status and the lazy time check agree.
func (r *Repository) LockEarly(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ? AND status = ? AND locks_at > ?", id, models.PredictionStatusOpen, now).
		Updates(map[string]interface{}{
			"status":     models.PredictionStatusLocked,
			"locks_at":   now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListDuePredictionIDs returns OPEN predictions whose lock time has passed
func (r *Repository) ListDuePredictionIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("status = ? AND locks_at <= ?", models.PredictionStatusOpen, now).
		Order("locks_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// IncrementPools adds amount to the prediction's total pool and the outcome's
// pool. The total-pool update is conditional on the prediction still being
// OPEN and before its lock time, which closes the race against a concurrent
// lock or settlement: a stake that loses that race increments nothing.
func (r *Repository) IncrementPools(
	ctx context.Context,
	predictionID, outcomeID uuid.UUID,
	amount decimal.Decimal,
	now time.Time,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ? AND status = ? AND locks_at > ?", predictionID, models.PredictionStatusOpen, now).
		Updates(map[string]interface{}{
			"total_pool": gorm.Expr("total_pool + ?", amount),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.Outcome{}).
		Where("id = ? AND prediction_id = ?", outcomeID, predictionID).
		Updates(map[string]interface{}{
			"pool":       gorm.Expr("pool + ?", amount),
			"updated_at": now,
		}).Error
	return err == nil, err
}

// GetUserOutcomeStake finds the caller's existing stake row on an outcome,
// nil when this is their first stake there.
func (r *Repository) GetUserOutcomeStake(
	ctx context.Context,
	predictionID, outcomeID uuid.UUID,
	userID uint,
) (*models.Stake, error) {
	var stake models.Stake
	err := r.db.WithContext(ctx).
		Where("prediction_id = ? AND outcome_id = ? AND user_id = ?", predictionID, outcomeID, userID).
		First(&stake).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stake, nil
}

// CreateStake inserts a new stake row
func (r *Repository) CreateStake(ctx context.Context, stake *models.Stake) error {
	return r.db.WithContext(ctx).Create(stake).Error
}

// AddToStake accumulates a top-up into an existing stake row
func (r *Repository) AddToStake(ctx context.Context, stakeID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("id = ?", stakeID).
		Updates(map[string]interface{}{
			"amount":     gorm.Expr("amount + ?", amount),
			"updated_at": time.Now(),
		}).Error
}

// GetStake reloads a stake row
func (r *Repository) GetStake(ctx context.Context, id uuid.UUID) (*models.Stake, error) {
	var stake models.Stake
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&stake).Error
	if err != nil {
		return nil, err
	}
	return &stake, nil
}

// ListStakes returns every stake on a prediction
func (r *Repository) ListStakes(ctx context.Context, predictionID uuid.UUID) ([]models.Stake, error) {
	var stakes []models.Stake
	err := r.db.WithContext(ctx).
		Where("prediction_id = ?", predictionID).
		Order("created_at ASC").
		Find(&stakes).Error
	return stakes, err
}

// ListUserStakes returns the caller's stakes on a prediction
func (r *Repository) ListUserStakes(ctx context.Context, predictionID uuid.UUID, userID uint) ([]models.Stake, error) {
	var stakes []models.Stake
	err := r.db.WithContext(ctx).
		Where("prediction_id = ? AND user_id = ?", predictionID, userID).
		Order("created_at ASC").
		Find(&stakes).Error
	return stakes, err
}

// TotalUserStake sums the caller's stake amounts on a prediction
func (r *Repository) TotalUserStake(ctx context.Context, predictionID uuid.UUID, userID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("prediction_id = ? AND user_id = ?", predictionID, userID).
		Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// UserPayoutSum sums the caller's settled payouts on a prediction
func (r *Repository) UserPayoutSum(ctx context.Context, predictionID uuid.UUID, userID uint) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("prediction_id = ? AND user_id = ? AND payout IS NOT NULL", predictionID, userID).
		Select("COALESCE(SUM(payout), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// SetStakePayout writes a single stake's final payout
func (r *Repository) SetStakePayout(ctx context.Context, stakeID uuid.UUID, payout decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("id = ?", stakeID).
		Updates(map[string]interface{}{
			"payout":     payout,
			"updated_at": time.Now(),
		}).Error
}

// ZeroLosingPayouts records payout 0 on every stake outside the winning
// outcome, so "lost" is distinguishable from "not yet settled".
func (r *Repository) ZeroLosingPayouts(ctx context.Context, predictionID, winningOutcomeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("prediction_id = ? AND outcome_id != ?", predictionID, winningOutcomeID).
		Updates(map[string]interface{}{
			"payout":     decimal.Zero,
			"updated_at": time.Now(),
		}).Error
}

// RefundAllStakes sets every stake's payout to its own amount (full refund)
func (r *Repository) RefundAllStakes(ctx context.Context, predictionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Stake{}).
		Where("prediction_id = ?", predictionID).
		Updates(map[string]interface{}{
			"payout":     gorm.Expr("amount"),
			"updated_at": time.Now(),
		}).Error
}

// MarkOutcomeWinner flips the winner flag exactly once
func (r *Repository) MarkOutcomeWinner(ctx context.Context, outcomeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Outcome{}).
		Where("id = ? AND is_winner = ?", outcomeID, false).
		Update("is_winner", true).Error
}

// FinalizePrediction writes the terminal status plus settlement fields
func (r *Repository) FinalizePrediction(
	ctx context.Context,
	id uuid.UUID,
	status models.PredictionStatus,
	winningOutcomeID *uuid.UUID,
	voidReason *string,
) error {
	return r.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ? AND status = ?", id, models.PredictionStatusSettling).
		Updates(map[string]interface{}{
			"status":             status,
			"winning_outcome_id": winningOutcomeID,
			"void_reason":        voidReason,
			"updated_at":         time.Now(),
		}).Error
}

// CreateSettlement writes the settlement audit record
func (r *Repository) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

// GetSettlement returns the settlement audit record for a prediction
func (r *Repository) GetSettlement(ctx context.Context, predictionID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).Where("prediction_id = ?", predictionID).First(&settlement).Error
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}
