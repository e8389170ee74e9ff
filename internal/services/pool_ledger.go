package services

import (
	"context"
	"log"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/balance"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// medalsPrecision is the MEDALS token precision on Hive-Engine.
const medalsPrecision = 3

// defaultOdds is the display fallback for empty pools.
var defaultOdds = decimal.NewFromInt(1)

// PoolLedger is the source of truth for how much is staked, by whom, on what.
// It owns the conservation invariant: the prediction's total pool always
// equals the sum of its outcome pools, which equals the sum of all accepted
// stake amounts.
type PoolLedger struct {
	repo      *repository.Repository
	balances  balance.Reader
	lifecycle *LifecycleService
	minStake  decimal.Decimal
	maxStake  decimal.Decimal
	now       func() time.Time
}

func NewPoolLedger(
	repo *repository.Repository,
	balances balance.Reader,
	lifecycle *LifecycleService,
	minStake, maxStake decimal.Decimal,
) *PoolLedger {
	return &PoolLedger{
		repo:      repo,
		balances:  balances,
		lifecycle: lifecycle,
		minStake:  minStake,
		maxStake:  maxStake,
		now:       time.Now,
	}
}

// ValidateAmount checks a stake amount against the platform bounds and the
// token precision.
func (l *PoolLedger) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.New(apperrors.CodeValidation, "stake amount must be positive")
	}
	if amount.Exponent() < -medalsPrecision {
		return apperrors.Newf(apperrors.CodeValidation,
			"stake amount supports at most %d decimal places", medalsPrecision)
	}
	if amount.LessThan(l.minStake) {
		return apperrors.Newf(apperrors.CodeValidation, "minimum stake is %s MEDALS", l.minStake).
			WithDetail("min_stake", l.minStake)
	}
	if amount.GreaterThan(l.maxStake) {
		return apperrors.Newf(apperrors.CodeValidation, "maximum stake is %s MEDALS", l.maxStake).
			WithDetail("max_stake", l.maxStake)
	}
	return nil
}

// RecordStake validates and applies a stake: it checks the lock boundary and
// the staker's MEDALS balance, then accumulates the stake row and increments
// the outcome pool and total pool in one transaction. Repeated stakes on the
// same outcome are top-ups into the existing row.
func (l *PoolLedger) RecordStake(
	ctx context.Context,
	predictionID, outcomeID uuid.UUID,
	userID uint,
	hiveAccount string,
	amount decimal.Decimal,
) (*models.Stake, *models.Prediction, error) {
	if err := l.ValidateAmount(amount); err != nil {
		return nil, nil, err
	}

	prediction, err := l.repo.GetPredictionByID(ctx, predictionID)
	if err != nil {
		return nil, nil, asNotFound(err, "prediction not found")
	}

	effective, err := l.lifecycle.SyncLock(ctx, prediction)
	if err != nil {
		return nil, nil, err
	}
	switch effective {
	case models.PredictionStatusOpen:
	case models.PredictionStatusLocked, models.PredictionStatusSettling:
		return nil, nil, apperrors.New(apperrors.CodePredictionLocked, "staking closed, prediction is locked").
			WithDetail("status", effective)
	default:
		return nil, nil, apperrors.Newf(apperrors.CodePredictionNotOpen, "prediction is %s", effective).
			WithDetail("status", effective)
	}

	if !outcomeBelongs(prediction, outcomeID) {
		return nil, nil, apperrors.New(apperrors.CodeValidation, "outcome does not belong to this prediction")
	}

	available, err := l.balances.GetBalance(ctx, hiveAccount)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.CodeUpstream, "balance service unavailable").
			WithDetail("cause", err.Error())
	}
	if available.LessThan(amount) {
		return nil, nil, apperrors.Newf(apperrors.CodeInsufficientBalance,
			"available balance %s MEDALS is below stake %s", available, amount).
			WithDetail("available", available)
	}

	var stakeID uuid.UUID
	err = l.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// The conditional increment is the authoritative lock-boundary
		// check: it only fires while the row is OPEN and before locks_at,
		// so a concurrent lock or settlement cannot interleave a stake.
		applied, err := tx.IncrementPools(ctx, predictionID, outcomeID, amount, l.now())
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.New(apperrors.CodePredictionLocked, "staking closed, prediction is locked")
		}

		existing, err := tx.GetUserOutcomeStake(ctx, predictionID, outcomeID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			stakeID = existing.ID
			return tx.AddToStake(ctx, existing.ID, amount)
		}

		stake := &models.Stake{
			ID:           uuid.New(),
			PredictionID: predictionID,
			OutcomeID:    outcomeID,
			UserID:       userID,
			Amount:       amount,
			CreatedAt:    l.now(),
		}
		stakeID = stake.ID
		return tx.CreateStake(ctx, stake)
	})
	if err != nil {
		return nil, nil, err
	}

	stake, err := l.repo.GetStake(ctx, stakeID)
	if err != nil {
		return nil, nil, err
	}
	prediction, err = l.repo.GetPredictionByID(ctx, predictionID)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("Stake accepted: prediction=%s outcome=%s user=%d amount=%s total_pool=%s",
		predictionID, outcomeID, userID, amount, prediction.TotalPool)

	return stake, prediction, nil
}

// ComputeOdds derives display odds per outcome: totalPool / outcomePool,
// falling back to 1.0 on empty pools. Odds are informational only; payouts
// use pool shares at settlement time, never these numbers.
func ComputeOdds(prediction *models.Prediction) map[uuid.UUID]decimal.Decimal {
	odds := make(map[uuid.UUID]decimal.Decimal, len(prediction.Outcomes))
	for _, outcome := range prediction.Outcomes {
		odds[outcome.ID] = OddsFor(prediction.TotalPool, outcome.Pool)
	}
	return odds
}

// OddsFor computes one outcome's display odds
func OddsFor(totalPool, outcomePool decimal.Decimal) decimal.Decimal {
	if outcomePool.IsZero() || totalPool.IsZero() {
		return defaultOdds
	}
	return totalPool.DivRound(outcomePool, medalsPrecision)
}

// TotalUserStake aggregates a user's stake amounts on a prediction
func (l *PoolLedger) TotalUserStake(ctx context.Context, predictionID uuid.UUID, userID uint) (decimal.Decimal, error) {
	return l.repo.TotalUserStake(ctx, predictionID, userID)
}

// UserPayoutSum aggregates a user's settled payouts on a prediction
func (l *PoolLedger) UserPayoutSum(ctx context.Context, predictionID uuid.UUID, userID uint) (decimal.Decimal, error) {
	return l.repo.UserPayoutSum(ctx, predictionID, userID)
}

func outcomeBelongs(prediction *models.Prediction, outcomeID uuid.UUID) bool {
	for _, outcome := range prediction.Outcomes {
		if outcome.ID == outcomeID {
			return true
		}
	}
	return false
}
