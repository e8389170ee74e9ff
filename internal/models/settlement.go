package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SettlementKind string

const (
	SettlementKindSettle SettlementKind = "SETTLE"
	SettlementKindVoid   SettlementKind = "VOID"
)

// Settlement is the audit record of a settle or void action. It is written in
// the same transaction as the payouts, so its existence implies the payouts
// were persisted. One per prediction, ever.
type Settlement struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PredictionID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"prediction_id"`
	Kind             SettlementKind  `gorm:"size:20;not null" json:"kind"`
	WinningOutcomeID *uuid.UUID      `gorm:"type:uuid" json:"winning_outcome_id,omitempty"`
	Reason           *string         `gorm:"size:500" json:"reason,omitempty"`
	TotalPool        decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"total_pool"`
	PaidOut          decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"paid_out"`
	SettledByID      uint            `gorm:"not null;index" json:"settled_by_id"`
	CreatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// SettlementResult is returned to the caller of settle/void.
type SettlementResult struct {
	Settlement Settlement       `json:"settlement"`
	Status     PredictionStatus `json:"status"`
	StakeCount int              `json:"stake_count"`
	// AutoVoided is set when a settle request hit an unstaked winning
	// outcome and was converted into a full refund.
	AutoVoided bool `json:"auto_voided,omitempty"`
}
