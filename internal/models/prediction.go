package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PredictionStatus string

const (
	PredictionStatusOpen     PredictionStatus = "OPEN"
	PredictionStatusLocked   PredictionStatus = "LOCKED"
	PredictionStatusSettling PredictionStatus = "SETTLING"
	PredictionStatusSettled  PredictionStatus = "SETTLED"
	PredictionStatusVoid     PredictionStatus = "VOID"
)

// IsTerminal reports whether the status admits no further transitions.
func (s PredictionStatus) IsTerminal() bool {
	return s == PredictionStatusSettled || s == PredictionStatusVoid
}

// Prediction represents a single wagering event ("bite") with two or more
// mutually exclusive outcomes.
type Prediction struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Permlink         string           `gorm:"size:255;uniqueIndex;not null" json:"permlink"`
	Title            string           `gorm:"size:500;not null" json:"title"`
	CreatorID        uint             `gorm:"not null;index" json:"creator_id"`
	Creator          *User            `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Category         *string          `gorm:"size:50;index" json:"category,omitempty"`
	MatchRef         *string          `gorm:"size:255" json:"match_ref,omitempty"`
	LocksAt          time.Time        `gorm:"not null;index" json:"locks_at"`
	Status           PredictionStatus `gorm:"size:20;not null;default:OPEN;index" json:"status"`
	WinningOutcomeID *uuid.UUID       `gorm:"type:uuid" json:"winning_outcome_id,omitempty"`
	VoidReason       *string          `gorm:"size:500" json:"void_reason,omitempty"`
	TotalPool        decimal.Decimal  `gorm:"type:decimal(20,3);not null;default:0" json:"total_pool"`
	Outcomes         []Outcome        `gorm:"foreignKey:PredictionID" json:"outcomes,omitempty"`
	CreatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Prediction) TableName() string {
	return "predictions"
}

// Editable reports whether the prediction may still be modified or deleted:
// only while OPEN and before any stake has been accepted.
func (p *Prediction) Editable() bool {
	return p.Status == PredictionStatusOpen && p.TotalPool.IsZero()
}

// Outcome is one possible resolution of a prediction and carries its own pool.
type Outcome struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PredictionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"prediction_id"`
	Label        string          `gorm:"size:255;not null" json:"label"`
	Pool         decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"pool"`
	IsWinner     bool            `gorm:"not null;default:false" json:"is_winner"`
	SortOrder    int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Outcome) TableName() string {
	return "outcomes"
}

// CreatePredictionRequest represents a request to create a new prediction
type CreatePredictionRequest struct {
	Title    string    `json:"title" binding:"required"`
	Outcomes []string  `json:"outcomes" binding:"required,min=2,dive,required"`
	LocksAt  time.Time `json:"locks_at" binding:"required"`
	Category *string   `json:"category"`
	MatchRef *string   `json:"match_ref"`
}

// EditPredictionRequest represents a pre-stake edit. Nil fields are untouched.
type EditPredictionRequest struct {
	Title         *string    `json:"title"`
	Category      *string    `json:"category"`
	MatchRef      *string    `json:"match_ref"`
	LocksAt       *time.Time `json:"locks_at"`
	OutcomeLabels []string   `json:"outcome_labels"`
}

// SettlePredictionRequest names the winning outcome
type SettlePredictionRequest struct {
	WinningOutcomeID string `json:"winning_outcome_id" binding:"required"`
}

// VoidPredictionRequest carries the mandatory void reason
type VoidPredictionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OutcomeView is an outcome plus its derived display odds
type OutcomeView struct {
	Outcome
	Odds decimal.Decimal `json:"odds"`
}

// PredictionView is the API shape for list/detail responses. Its Outcomes
// shadow the raw model's so odds ride along; MyStakes is populated only for
// authenticated callers.
type PredictionView struct {
	Prediction
	Status   PredictionStatus `json:"status"`
	Editable bool             `json:"editable"`
	Outcomes []OutcomeView    `json:"outcomes"`
	MyStakes []Stake          `json:"my_stakes,omitempty"`
}
