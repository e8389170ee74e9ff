package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stake is a user's committed MEDALS amount on one outcome. Repeated stakes
// on the same outcome accumulate into this row (top-up semantics); Payout
// stays nil until the prediction settles or voids, then is written exactly
// once (zero for losing stakes, so "lost" is distinguishable from "pending").
type Stake struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	PredictionID uuid.UUID        `gorm:"type:uuid;not null;index:idx_stakes_prediction_user" json:"prediction_id"`
	OutcomeID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"outcome_id"`
	UserID       uint             `gorm:"not null;index:idx_stakes_prediction_user" json:"user_id"`
	Amount       decimal.Decimal  `gorm:"type:decimal(20,3);not null" json:"amount"`
	Payout       *decimal.Decimal `gorm:"type:decimal(20,3)" json:"payout,omitempty"`
	CreatedAt    time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Stake) TableName() string {
	return "stakes"
}

// PlaceStakeRequest represents a request to stake MEDALS on an outcome
type PlaceStakeRequest struct {
	OutcomeID string          `json:"outcome_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// StakeReceipt is returned after a stake is accepted. ProjectedPayout uses
// the pool state at acceptance time and is display-only; the real payout is
// computed from pool shares at settlement.
type StakeReceipt struct {
	Stake           Stake           `json:"stake"`
	OutcomePool     decimal.Decimal `json:"outcome_pool"`
	TotalPool       decimal.Decimal `json:"total_pool"`
	Odds            decimal.Decimal `json:"odds"`
	ProjectedPayout decimal.Decimal `json:"projected_payout"`
}
