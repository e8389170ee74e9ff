package services

import (
	"context"
	"log"
	"strings"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const zeroPoolVoidReason = "no stakes on winning outcome"

// SettlementService computes and persists final payouts exactly once per
// prediction. The LOCKED → SETTLING compare-and-swap and the payout writes
// share one transaction, so a concurrent second settle or void observes
// InvalidTransition and leaves no side effects.
//
// Payout policy: winning-outcome stakers split the entire pool in proportion
// to their share of the winning pool. Payouts are truncated to the MEDALS
// precision (3 decimals); the truncation remainder stays unallocated, so the
// sum of payouts never exceeds the total pool.
type SettlementService struct {
	repo      *repository.Repository
	lifecycle *LifecycleService
	now       func() time.Time
}

func NewSettlementService(repo *repository.Repository, lifecycle *LifecycleService) *SettlementService {
	return &SettlementService{
		repo:      repo,
		lifecycle: lifecycle,
		now:       time.Now,
	}
}

// Settle declares winningOutcomeID the winner and pays out the pool.
//
// A winning outcome nobody staked cannot be distributed proportionally; that
// case voids the prediction automatically, refunding every stake in full.
func (s *SettlementService) Settle(
	ctx context.Context,
	predictionID, winningOutcomeID uuid.UUID,
	settledByID uint,
) (*models.SettlementResult, error) {
	prediction, err := s.repo.GetPredictionByID(ctx, predictionID)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	if !outcomeBelongs(prediction, winningOutcomeID) {
		return nil, apperrors.New(apperrors.CodeValidation, "winning outcome does not belong to this prediction")
	}

	var result *models.SettlementResult
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := s.lifecycle.BeginSettling(ctx, tx, prediction); err != nil {
			return err
		}

		// Pools are re-read after the CAS: a stake admitted between the
		// caller's read and the lock is part of the pool being split, and the
		// payout ratio must come from the same snapshot as the stake list.
		current, err := tx.GetPredictionByID(ctx, predictionID)
		if err != nil {
			return err
		}
		var winningOutcome *models.Outcome
		for i := range current.Outcomes {
			if current.Outcomes[i].ID == winningOutcomeID {
				winningOutcome = &current.Outcomes[i]
				break
			}
		}
		if winningOutcome == nil {
			return apperrors.New(apperrors.CodeValidation, "winning outcome does not belong to this prediction")
		}

		stakes, err := tx.ListStakes(ctx, predictionID)
		if err != nil {
			return err
		}

		if winningOutcome.Pool.IsZero() {
			voided, err := s.finalizeVoid(ctx, tx, current, zeroPoolVoidReason, settledByID, len(stakes))
			if err != nil {
				return err
			}
			voided.AutoVoided = true
			result = voided
			return nil
		}

		paidOut := decimal.Zero
		for _, stake := range stakes {
			if stake.OutcomeID != winningOutcomeID {
				continue
			}
			payout := stake.Amount.
				Mul(current.TotalPool).
				Div(winningOutcome.Pool).
				RoundDown(medalsPrecision)
			if err := tx.SetStakePayout(ctx, stake.ID, payout); err != nil {
				return err
			}
			paidOut = paidOut.Add(payout)
		}

		if err := tx.ZeroLosingPayouts(ctx, predictionID, winningOutcomeID); err != nil {
			return err
		}
		if err := tx.MarkOutcomeWinner(ctx, winningOutcomeID); err != nil {
			return err
		}
		if err := tx.FinalizePrediction(ctx, predictionID, models.PredictionStatusSettled, &winningOutcomeID, nil); err != nil {
			return err
		}

		settlement := models.Settlement{
			ID:               uuid.New(),
			PredictionID:     predictionID,
			Kind:             models.SettlementKindSettle,
			WinningOutcomeID: &winningOutcomeID,
			TotalPool:        current.TotalPool,
			PaidOut:          paidOut,
			SettledByID:      settledByID,
			CreatedAt:        s.now(),
		}
		if err := tx.CreateSettlement(ctx, &settlement); err != nil {
			return err
		}

		result = &models.SettlementResult{
			Settlement: settlement,
			Status:     models.PredictionStatusSettled,
			StakeCount: len(stakes),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AutoVoided {
		log.Printf("Prediction %s auto-voided on settle: winning outcome %s had no stakes",
			predictionID, winningOutcomeID)
	} else {
		log.Printf("Prediction %s settled: winner=%s pool=%s paid_out=%s",
			predictionID, winningOutcomeID, result.Settlement.TotalPool, result.Settlement.PaidOut)
	}

	return result, nil
}

// Void cancels a LOCKED prediction and refunds every stake in full.
func (s *SettlementService) Void(
	ctx context.Context,
	predictionID uuid.UUID,
	reason string,
	settledByID uint,
) (*models.SettlementResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "void reason is required")
	}

	prediction, err := s.repo.GetPredictionByID(ctx, predictionID)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	var result *models.SettlementResult
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := s.lifecycle.BeginSettling(ctx, tx, prediction); err != nil {
			return err
		}

		// Same post-lock re-read as Settle: the audited pool must include any
		// stake that slipped in before the lock took.
		current, err := tx.GetPredictionByID(ctx, predictionID)
		if err != nil {
			return err
		}

		stakes, err := tx.ListStakes(ctx, predictionID)
		if err != nil {
			return err
		}

		result, err = s.finalizeVoid(ctx, tx, current, reason, settledByID, len(stakes))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Prediction %s voided (%s): %d stakes refunded, pool=%s",
		predictionID, reason, result.StakeCount, result.Settlement.TotalPool)

	return result, nil
}

// finalizeVoid refunds all stakes and writes the terminal VOID state; callers
// run it inside the settling transaction.
func (s *SettlementService) finalizeVoid(
	ctx context.Context,
	tx *repository.Repository,
	prediction *models.Prediction,
	reason string,
	settledByID uint,
	stakeCount int,
) (*models.SettlementResult, error) {
	if err := tx.RefundAllStakes(ctx, prediction.ID); err != nil {
		return nil, err
	}
	if err := tx.FinalizePrediction(ctx, prediction.ID, models.PredictionStatusVoid, nil, &reason); err != nil {
		return nil, err
	}

	settlement := models.Settlement{
		ID:           uuid.New(),
		PredictionID: prediction.ID,
		Kind:         models.SettlementKindVoid,
		Reason:       &reason,
		TotalPool:    prediction.TotalPool,
		PaidOut:      prediction.TotalPool,
		SettledByID:  settledByID,
		CreatedAt:    s.now(),
	}
	if err := tx.CreateSettlement(ctx, &settlement); err != nil {
		return nil, err
	}

	return &models.SettlementResult{
		Settlement: settlement,
		Status:     models.PredictionStatusVoid,
		StakeCount: stakeCount,
	}, nil
}
