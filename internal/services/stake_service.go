package services

import (
	"context"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StakeService is the user-facing validation gate in front of the pool
// ledger. Client-side lock countdowns are advisory; every check here runs
// server-side again.
type StakeService struct {
	repo   *repository.Repository
	ledger *PoolLedger
}

func NewStakeService(repo *repository.Repository, ledger *PoolLedger) *StakeService {
	return &StakeService{
		repo:   repo,
		ledger: ledger,
	}
}

// PlaceStake validates and applies a stake, returning the caller's updated
// stake row plus current pools, odds and a display-only payout projection.
func (s *StakeService) PlaceStake(
	ctx context.Context,
	userID uint,
	hiveAccount string,
	predictionID uuid.UUID,
	req *models.PlaceStakeRequest,
) (*models.StakeReceipt, error) {
	outcomeID, err := uuid.Parse(req.OutcomeID)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, "malformed outcome id")
	}

	stake, prediction, err := s.ledger.RecordStake(ctx, predictionID, outcomeID, userID, hiveAccount, req.Amount)
	if err != nil {
		return nil, err
	}

	var outcomePool decimal.Decimal
	for _, outcome := range prediction.Outcomes {
		if outcome.ID == outcomeID {
			outcomePool = outcome.Pool
			break
		}
	}

	odds := OddsFor(prediction.TotalPool, outcomePool)

	return &models.StakeReceipt{
		Stake:           *stake,
		OutcomePool:     outcomePool,
		TotalPool:       prediction.TotalPool,
		Odds:            odds,
		ProjectedPayout: stake.Amount.Mul(odds).RoundDown(medalsPrecision),
	}, nil
}

// MyStakesSummary is a user's aggregate view over one prediction
type MyStakesSummary struct {
	Stakes      []models.Stake  `json:"stakes"`
	TotalStaked decimal.Decimal `json:"total_staked"`
	TotalPayout decimal.Decimal `json:"total_payout"`
}

// GetMyStakes returns the caller's stakes and aggregates for a prediction
func (s *StakeService) GetMyStakes(ctx context.Context, predictionID uuid.UUID, userID uint) (*MyStakesSummary, error) {
	if _, err := s.repo.GetPredictionByID(ctx, predictionID); err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	stakes, err := s.repo.ListUserStakes(ctx, predictionID, userID)
	if err != nil {
		return nil, err
	}
	totalStaked, err := s.ledger.TotalUserStake(ctx, predictionID, userID)
	if err != nil {
		return nil, err
	}
	totalPayout, err := s.ledger.UserPayoutSum(ctx, predictionID, userID)
	if err != nil {
		return nil, err
	}

	return &MyStakesSummary{
		Stakes:      stakes,
		TotalStaked: totalStaked,
		TotalPayout: totalPayout,
	}, nil
}
