package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TransactionTypeEarned     TransactionType = "earned"
	TransactionTypeSpent      TransactionType = "spent"
	TransactionTypeBonus      TransactionType = "bonus"
	TransactionTypeExpired    TransactionType = "expired"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeEarned,
		TransactionTypeSpent,
		TransactionTypeBonus,
		TransactionTypeExpired,
		TransactionTypeAdjustment:
		return true
	}
	return false
}

type SourceType string

const (
	SourceTypeActivity    SourceType = "activity"
	SourceTypeReward      SourceType = "reward"
	SourceTypeAchievement SourceType = "achievement"
	SourceTypeStreak      SourceType = "streak"
	SourceTypeAdmin       SourceType = "admin"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceTypeActivity,
		SourceTypeReward,
		SourceTypeAchievement,
		SourceTypeStreak,
		SourceTypeAdmin:
		return true
	}
	return false
}

// PointsAccount is the per-user balance and streak aggregate.
//
// Spent points leave TotalPoints untouched, so TotalPoints equals
// AvailablePoints plus everything redeemed so far.
type PointsAccount struct {
	UserID             snowflake.ID `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	TotalPoints        int64        `json:"total_points" gorm:"not null;default:0"`
	AvailablePoints    int64        `json:"available_points" gorm:"not null;default:0"`
	LifetimePoints     int64        `json:"lifetime_points" gorm:"not null;default:0"`
	CurrentStreak      int          `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak      int          `json:"longest_streak" gorm:"not null;default:0"`
	LastActivityAt     *time.Time   `json:"last_activity_at,omitempty"`
	LastStreakUpdateAt *time.Time   `json:"last_streak_update_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null"`
}

func (PointsAccount) TableName() string { return "points_accounts" }

// PointsTransaction is an append-only ledger row; one per balance mutation.
type PointsTransaction struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID    `json:"user_id" gorm:"not null;index:ix_points_transactions_user_created,priority:1"`
	Amount      int64           `json:"amount" gorm:"not null"`
	Type        TransactionType `json:"type" gorm:"type:varchar(16);not null"`
	Description string          `json:"description" gorm:"type:text;not null"`
	SourceType  SourceType      `json:"source_type" gorm:"type:varchar(16);not null"`
	SourceID    *snowflake.ID   `json:"source_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;index:ix_points_transactions_user_created,priority:2"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

// Entry describes one balance mutation to post against an account.
type Entry struct {
	Amount      int64
	Type        TransactionType
	Description string
	SourceType  SourceType
	SourceID    *snowflake.ID
	OccurredAt  time.Time
}
