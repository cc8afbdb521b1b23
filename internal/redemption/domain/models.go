package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRedeemed, StatusExpired:
		return true
	default:
		return false
	}
}

// UserReward is a redemption: points were spent and a code was issued.
type UserReward struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID `json:"user_id" gorm:"not null;index:ix_user_rewards_user_status,priority:1"`
	RewardID    snowflake.ID `json:"reward_id" gorm:"not null;index"`
	Code        string       `json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	Status      Status       `json:"status" gorm:"type:varchar(16);not null;index:ix_user_rewards_user_status,priority:2;index:ix_user_rewards_status_expires,priority:1"`
	PointsSpent int64        `json:"points_spent" gorm:"not null"`
	EarnedAt    time.Time    `json:"earned_at" gorm:"not null"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty" gorm:"index:ix_user_rewards_status_expires,priority:2"`
	RedeemedAt  *time.Time   `json:"redeemed_at,omitempty"`

	RewardName string `json:"reward_name,omitempty" gorm:"->;-:migration"`
}

func (UserReward) TableName() string { return "user_rewards" }

// Expired reports whether an active redemption is past its expiry at now.
func (r UserReward) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
