package models

import (
	"time"
)

// User represents a Sportsblock account, identified by its Hive account name.
// MEDALS balances are not stored here; they live on Hive-Engine and are read
// through the balance collaborator.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	HiveAccount   string    `gorm:"size:16;uniqueIndex;not null" json:"hive_account"`
	PostingPubkey string    `gorm:"size:64" json:"posting_pubkey,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
