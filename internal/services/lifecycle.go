package services

import (
	"context"
	"log"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"

	"github.com/google/uuid"
)

// validTransitions is the full lifecycle graph:
// OPEN → LOCKED → SETTLING → SETTLED, with SETTLING → VOID as the refund
// branch. Terminal states admit nothing.
var validTransitions = map[models.PredictionStatus][]models.PredictionStatus{
	models.PredictionStatusOpen:     {models.PredictionStatusLocked},
	models.PredictionStatusLocked:   {models.PredictionStatusSettling},
	models.PredictionStatusSettling: {models.PredictionStatusSettled, models.PredictionStatusVoid},
}

// CanTransition reports whether from → to is a legal lifecycle step
func CanTransition(from, to models.PredictionStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LifecycleService owns status transitions. Time-based locking is lazy:
// every caller evaluates now against locks_at instead of trusting a
// background timer, and flips the stored status opportunistically.
type LifecycleService struct {
	repo *repository.Repository
	now  func() time.Time
}

func NewLifecycleService(repo *repository.Repository) *LifecycleService {
	return &LifecycleService{
		repo: repo,
		now:  time.Now,
	}
}

// EffectiveStatus derives what the status currently is, regardless of what is
// stored: an OPEN prediction past its lock time is LOCKED.
func EffectiveStatus(p *models.Prediction, now time.Time) models.PredictionStatus {
	if p.Status == models.PredictionStatusOpen && !now.Before(p.LocksAt) {
		return models.PredictionStatusLocked
	}
	return p.Status
}

// SyncLock flips an OPEN prediction to LOCKED when its lock time has passed
// and returns the effective status. Callers on mutation paths use this before
// checking preconditions.
func (s *LifecycleService) SyncLock(ctx context.Context, p *models.Prediction) (models.PredictionStatus, error) {
	now := s.now()
	effective := EffectiveStatus(p, now)
	if effective == models.PredictionStatusLocked && p.Status == models.PredictionStatusOpen {
		flipped, err := s.repo.MarkLockedIfDue(ctx, p.ID, now)
		if err != nil {
			return effective, err
		}
		if flipped {
			p.Status = models.PredictionStatusLocked
		}
	}
	return effective, nil
}

// LockEarly locks an OPEN prediction before its lock time on behalf of the
// creator or an admin. New stakes are rejected from this moment.
func (s *LifecycleService) LockEarly(ctx context.Context, predictionID uuid.UUID) (*models.Prediction, error) {
	prediction, err := s.repo.GetPredictionByID(ctx, predictionID)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	now := s.now()
	if EffectiveStatus(prediction, now) != models.PredictionStatusOpen {
		return nil, apperrors.Newf(apperrors.CodeInvalidTransition,
			"prediction is %s, only OPEN predictions can be locked", EffectiveStatus(prediction, now)).
			WithDetail("status", EffectiveStatus(prediction, now))
	}

	locked, err := s.repo.LockEarly(ctx, predictionID, now)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Lost the race against the lazy lock or another manual lock.
		return nil, apperrors.New(apperrors.CodeInvalidTransition, "prediction is no longer OPEN")
	}

	log.Printf("Prediction %s locked early", predictionID)
	return s.repo.GetPredictionByID(ctx, predictionID)
}

// BeginSettling performs the compare-and-swap LOCKED → SETTLING step that
// makes settlement exactly-once: the second concurrent caller gets
// InvalidTransition and must not touch anything.
func (s *LifecycleService) BeginSettling(ctx context.Context, txRepo *repository.Repository, p *models.Prediction) error {
	effective, err := s.SyncLock(ctx, p)
	if err != nil {
		return err
	}

	if effective != models.PredictionStatusLocked {
		return apperrors.Newf(apperrors.CodeInvalidTransition,
			"prediction is %s, settlement requires LOCKED", effective).
			WithDetail("status", effective)
	}

	swapped, err := txRepo.TransitionStatus(ctx, p.ID, models.PredictionStatusLocked, models.PredictionStatusSettling)
	if err != nil {
		return err
	}
	if !swapped {
		return apperrors.New(apperrors.CodeInvalidTransition, "prediction is already being settled")
	}

	p.Status = models.PredictionStatusSettling
	return nil
}
