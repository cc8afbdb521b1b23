package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationStatusPending,
		VerificationStatusVerified,
		VerificationStatusRejected:
		return true
	default:
		return false
	}
}

// ActivityRecord is one completion of a catalog activity. PointsEarned is
// copied from the activity at record time and never recomputed.
type ActivityRecord struct {
	ID                 snowflake.ID       `json:"id" gorm:"primaryKey"`
	UserID             snowflake.ID       `json:"user_id" gorm:"not null;index:ix_activity_records_user_activity_completed,priority:1;index:ix_activity_records_user_completed,priority:1"`
	ActivityID         snowflake.ID       `json:"activity_id" gorm:"not null;index:ix_activity_records_user_activity_completed,priority:2"`
	CompletedAt        time.Time          `json:"completed_at" gorm:"not null;index:ix_activity_records_user_activity_completed,priority:3;index:ix_activity_records_user_completed,priority:2"`
	PointsEarned       int64              `json:"points_earned" gorm:"not null"`
	Notes              *string            `json:"notes,omitempty" gorm:"type:text"`
	ProofImageURL      *string            `json:"proof_image_url,omitempty" gorm:"type:text"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"type:varchar(16);not null"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
}

func (ActivityRecord) TableName() string { return "activity_records" }
