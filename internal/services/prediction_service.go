package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/auth"
	"sportsblock/internal/models"
	"sportsblock/internal/repository"
	"sportsblock/internal/utils"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PredictionService handles prediction CRUD and listing. Edits and deletes
// are only possible while a prediction is OPEN with an empty pool; from the
// first accepted stake everything, outcome labels included, is immutable.
type PredictionService struct {
	repo       *repository.Repository
	lifecycle  *LifecycleService
	authorizer *auth.Authorizer
	now        func() time.Time
}

func NewPredictionService(repo *repository.Repository, lifecycle *LifecycleService, authorizer *auth.Authorizer) *PredictionService {
	return &PredictionService{
		repo:       repo,
		lifecycle:  lifecycle,
		authorizer: authorizer,
		now:        time.Now,
	}
}

// Create creates a prediction with its outcomes atomically
func (s *PredictionService) Create(ctx context.Context, creatorID uint, req *models.CreatePredictionRequest) (*models.Prediction, error) {
	now := s.now()
	if !req.LocksAt.After(now) {
		return nil, apperrors.New(apperrors.CodeValidation, "locks_at must be in the future")
	}

	labels := make([]string, 0, len(req.Outcomes))
	seen := make(map[string]struct{}, len(req.Outcomes))
	for _, raw := range req.Outcomes {
		label := strings.TrimSpace(raw)
		if label == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "outcome labels must be non-empty")
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			return nil, apperrors.Newf(apperrors.CodeValidation, "duplicate outcome label %q", label)
		}
		seen[key] = struct{}{}
		labels = append(labels, label)
	}
	if len(labels) < 2 {
		return nil, apperrors.New(apperrors.CodeValidation, "a prediction needs at least two outcomes")
	}

	prediction := &models.Prediction{
		ID:        uuid.New(),
		Permlink:  utils.GeneratePermlink(req.Title),
		Title:     strings.TrimSpace(req.Title),
		CreatorID: creatorID,
		Category:  req.Category,
		MatchRef:  req.MatchRef,
		LocksAt:   req.LocksAt.UTC(),
		Status:    models.PredictionStatusOpen,
		CreatedAt: now,
	}

	outcomes := make([]models.Outcome, len(labels))
	for i, label := range labels {
		outcomes[i] = models.Outcome{
			ID:        uuid.New(),
			Label:     label,
			SortOrder: i,
			CreatedAt: now,
		}
	}

	if err := s.repo.CreatePrediction(ctx, prediction, outcomes); err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	prediction.Outcomes = outcomes

	log.Printf("Prediction created: %s (%s) by user %d, locks at %s",
		prediction.ID, prediction.Permlink, creatorID, prediction.LocksAt)

	return prediction, nil
}

// Get returns a prediction view; viewerID joins the caller's own stakes in
func (s *PredictionService) Get(ctx context.Context, id uuid.UUID, viewerID *uint) (*models.PredictionView, error) {
	prediction, err := s.repo.GetPredictionByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	view := s.buildView(prediction)

	if viewerID != nil {
		stakes, err := s.repo.ListUserStakes(ctx, id, *viewerID)
		if err != nil {
			return nil, err
		}
		view.MyStakes = stakes
	}

	return view, nil
}

// ListPage is one cursor page of predictions
type ListPage struct {
	Predictions []models.PredictionView `json:"predictions"`
	NextCursor  string                  `json:"next_cursor,omitempty"`
}

// List returns predictions newest first, optionally filtered by status.
// "REFUNDED" is accepted as an alias of VOID.
func (s *PredictionService) List(ctx context.Context, statusFilter, cursor string, limit int) (*ListPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	statuses, err := parseStatusFilter(statusFilter)
	if err != nil {
		return nil, err
	}

	before, beforeID, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	// Over-fetch by one to know whether another page exists.
	predictions, err := s.repo.ListPredictions(ctx, statuses, before, beforeID, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(predictions) > limit
	if hasMore {
		predictions = predictions[:limit]
	}

	page := &ListPage{Predictions: make([]models.PredictionView, 0, len(predictions))}
	for i := range predictions {
		page.Predictions = append(page.Predictions, *s.buildView(&predictions[i]))
	}
	if hasMore {
		last := predictions[len(predictions)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	return page, nil
}

// Edit applies a pre-stake edit. Only the creator or an admin may edit, and
// only while the prediction is OPEN with a zero pool.
func (s *PredictionService) Edit(
	ctx context.Context,
	id uuid.UUID,
	userID uint,
	hiveAccount string,
	req *models.EditPredictionRequest,
) (*models.Prediction, error) {
	prediction, err := s.repo.GetPredictionByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	if !s.authorizer.IsCreatorOrAdmin(userID, hiveAccount, prediction.CreatorID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "only the creator or an admin may edit a prediction")
	}

	if _, err := s.lifecycle.SyncLock(ctx, prediction); err != nil {
		return nil, err
	}
	if !prediction.Editable() {
		return nil, apperrors.New(apperrors.CodePredictionNotOpen,
			"prediction can no longer be edited").
			WithDetail("status", prediction.Status).
			WithDetail("total_pool", prediction.TotalPool)
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "title must be non-empty")
		}
		prediction.Title = title
	}
	if req.Category != nil {
		prediction.Category = req.Category
	}
	if req.MatchRef != nil {
		prediction.MatchRef = req.MatchRef
	}
	if req.LocksAt != nil {
		if !req.LocksAt.After(s.now()) {
			return nil, apperrors.New(apperrors.CodeValidation, "locks_at must be in the future")
		}
		prediction.LocksAt = req.LocksAt.UTC()
	}

	var labels []string
	if len(req.OutcomeLabels) > 0 {
		if len(req.OutcomeLabels) != len(prediction.Outcomes) {
			return nil, apperrors.Newf(apperrors.CodeValidation,
				"expected %d outcome labels, got %d", len(prediction.Outcomes), len(req.OutcomeLabels))
		}
		for _, label := range req.OutcomeLabels {
			label = strings.TrimSpace(label)
			if label == "" {
				return nil, apperrors.New(apperrors.CodeValidation, "outcome labels must be non-empty")
			}
			labels = append(labels, label)
		}
	}

	// All writes land together or not at all.
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		for i, label := range labels {
			if err := tx.UpdateOutcomeLabel(ctx, prediction.Outcomes[i].ID, label); err != nil {
				return err
			}
			prediction.Outcomes[i].Label = label
		}
		return tx.UpdatePrediction(ctx, prediction)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update prediction: %w", err)
	}

	return prediction, nil
}

// Delete removes a prediction; only permitted while it is still modifiable
// (OPEN, zero pool), so no accepted stake can ever be cascaded away.
func (s *PredictionService) Delete(ctx context.Context, id uuid.UUID, userID uint, hiveAccount string) error {
	prediction, err := s.repo.GetPredictionByID(ctx, id)
	if err != nil {
		return asNotFound(err, "prediction not found")
	}

	if !s.authorizer.IsCreatorOrAdmin(userID, hiveAccount, prediction.CreatorID) {
		return apperrors.New(apperrors.CodeForbidden, "only the creator or an admin may delete a prediction")
	}

	if _, err := s.lifecycle.SyncLock(ctx, prediction); err != nil {
		return err
	}
	if !prediction.Editable() {
		return apperrors.New(apperrors.CodePredictionNotOpen,
			"predictions with stakes cannot be deleted").
			WithDetail("status", prediction.Status).
			WithDetail("total_pool", prediction.TotalPool)
	}

	deleted, err := s.repo.DeletePrediction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	if !deleted {
		// The guard in the delete lost a race against a stake or a lock.
		return apperrors.New(apperrors.CodePredictionNotOpen,
			"predictions with stakes cannot be deleted")
	}

	log.Printf("Prediction %s deleted by user %d", id, userID)
	return nil
}

// Lock locks an OPEN prediction early on behalf of the creator or an admin
func (s *PredictionService) Lock(ctx context.Context, id uuid.UUID, userID uint, hiveAccount string) (*models.Prediction, error) {
	prediction, err := s.repo.GetPredictionByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "prediction not found")
	}

	if !s.authorizer.IsCreatorOrAdmin(userID, hiveAccount, prediction.CreatorID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "only the creator or an admin may lock a prediction")
	}

	return s.lifecycle.LockEarly(ctx, id)
}

// Authorize exposes the creator/admin check for settlement handlers
func (s *PredictionService) Authorize(ctx context.Context, id uuid.UUID, userID uint, hiveAccount string) error {
	prediction, err := s.repo.GetPredictionByID(ctx, id)
	if err != nil {
		return asNotFound(err, "prediction not found")
	}
	if !s.authorizer.IsCreatorOrAdmin(userID, hiveAccount, prediction.CreatorID) {
		return apperrors.New(apperrors.CodeForbidden, "only the creator or an admin may perform this action")
	}
	return nil
}

func (s *PredictionService) buildView(prediction *models.Prediction) *models.PredictionView {
	now := s.now()
	effective := EffectiveStatus(prediction, now)

	view := &models.PredictionView{
		Prediction: *prediction,
		Status:     effective,
		Editable:   prediction.Editable() && now.Before(prediction.LocksAt),
		Outcomes:   make([]models.OutcomeView, 0, len(prediction.Outcomes)),
	}
	for _, outcome := range prediction.Outcomes {
		view.Outcomes = append(view.Outcomes, models.OutcomeView{
			Outcome: outcome,
			Odds:    OddsFor(prediction.TotalPool, outcome.Pool),
		})
	}
	return view
}

// parseStatusFilter maps the query-string filter to stored statuses
func parseStatusFilter(filter string) ([]models.PredictionStatus, error) {
	if filter == "" {
		return nil, nil
	}
	switch models.PredictionStatus(strings.ToUpper(filter)) {
	case models.PredictionStatusOpen:
		return []models.PredictionStatus{models.PredictionStatusOpen}, nil
	case models.PredictionStatusLocked:
		return []models.PredictionStatus{models.PredictionStatusLocked}, nil
	case models.PredictionStatusSettling:
		return []models.PredictionStatus{models.PredictionStatusSettling}, nil
	case models.PredictionStatusSettled:
		return []models.PredictionStatus{models.PredictionStatusSettled}, nil
	case models.PredictionStatusVoid, "REFUNDED":
		return []models.PredictionStatus{models.PredictionStatusVoid}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown status filter %q", filter)
	}
}

func encodeCursor(createdAt time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, apperrors.New(apperrors.CodeValidation, "malformed cursor")
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, apperrors.New(apperrors.CodeValidation, "malformed cursor")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, apperrors.New(apperrors.CodeValidation, "malformed cursor")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, apperrors.New(apperrors.CodeValidation, "malformed cursor")
	}

	return createdAt, id, nil
}
