package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ActivityCategory string

const (
	ActivityCategoryPhysical    ActivityCategory = "physical"
	ActivityCategoryMental      ActivityCategory = "mental"
	ActivityCategoryMedication  ActivityCategory = "medication"
	ActivityCategoryAppointment ActivityCategory = "appointment"
	ActivityCategoryEducation   ActivityCategory = "education"
	ActivityCategorySocial      ActivityCategory = "social"
)

func (c ActivityCategory) Valid() bool {
	switch c {
	case ActivityCategoryPhysical,
		ActivityCategoryMental,
		ActivityCategoryMedication,
		ActivityCategoryAppointment,
		ActivityCategoryEducation,
		ActivityCategorySocial:
		return true
	}
	return false
}

// Frequency controls how often a user may earn points for the same activity.
type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// AchievementCategory groups achievements; general ones span every activity category.
type AchievementCategory string

const (
	AchievementCategoryGeneral     AchievementCategory = "general"
	AchievementCategoryPhysical    AchievementCategory = "physical"
	AchievementCategoryMental      AchievementCategory = "mental"
	AchievementCategoryMedication  AchievementCategory = "medication"
	AchievementCategoryAppointment AchievementCategory = "appointment"
	AchievementCategoryEducation   AchievementCategory = "education"
	AchievementCategorySocial      AchievementCategory = "social"
	AchievementCategoryStreak      AchievementCategory = "streak"
)

func (c AchievementCategory) Valid() bool {
	switch c {
	case AchievementCategoryGeneral,
		AchievementCategoryPhysical,
		AchievementCategoryMental,
		AchievementCategoryMedication,
		AchievementCategoryAppointment,
		AchievementCategoryEducation,
		AchievementCategorySocial,
		AchievementCategoryStreak:
		return true
	}
	return false
}

type RewardCategory string

const (
	RewardCategoryDiscount    RewardCategory = "discount"
	RewardCategoryGiftCard    RewardCategory = "gift_card"
	RewardCategoryMerchandise RewardCategory = "merchandise"
	RewardCategoryExperience  RewardCategory = "experience"
	RewardCategoryDonation    RewardCategory = "donation"
	RewardCategoryContent     RewardCategory = "content"
)

func (c RewardCategory) Valid() bool {
	switch c {
	case RewardCategoryDiscount,
		RewardCategoryGiftCard,
		RewardCategoryMerchandise,
		RewardCategoryExperience,
		RewardCategoryDonation,
		RewardCategoryContent:
		return true
	}
	return false
}

// RedemptionValidity is how long a redeemed reward of this category stays usable.
// Zero means it never expires.
func (c RewardCategory) RedemptionValidity() time.Duration {
	switch c {
	case RewardCategoryDiscount, RewardCategoryGiftCard:
		return 30 * 24 * time.Hour
	case RewardCategoryMerchandise,
		RewardCategoryExperience,
		RewardCategoryDonation,
		RewardCategoryContent:
		return 0
	}
	return 0
}

const (
	MinAchievementLevel = 1
	MaxAchievementLevel = 3
)

type Activity struct {
	ID          snowflake.ID     `json:"id" gorm:"primaryKey"`
	Name        string           `json:"name" gorm:"type:text;not null"`
	Description *string          `json:"description,omitempty" gorm:"type:text"`
	Category    ActivityCategory `json:"category" gorm:"type:varchar(32);not null;index"`
	PointsValue int64            `json:"points_value" gorm:"not null"`
	Frequency   Frequency        `json:"frequency" gorm:"type:varchar(16);not null"`
	Active      bool             `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"not null"`
}

func (Activity) TableName() string { return "activities" }

type Achievement struct {
	ID             snowflake.ID        `json:"id" gorm:"primaryKey"`
	Name           string              `json:"name" gorm:"type:text;not null"`
	Description    *string             `json:"description,omitempty" gorm:"type:text"`
	Level          int                 `json:"level" gorm:"not null"`
	PointsRequired int64               `json:"points_required" gorm:"not null;index"`
	Category       AchievementCategory `json:"category" gorm:"type:varchar(32);not null"`
	Active         bool                `json:"active" gorm:"not null;default:true"`
	CreatedAt      time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time           `json:"updated_at" gorm:"not null"`
}

func (Achievement) TableName() string { return "achievements" }

// Reward is a redeemable catalog entry. A nil Inventory means unlimited stock.
type Reward struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:text;not null"`
	Description *string        `json:"description,omitempty" gorm:"type:text"`
	Category    RewardCategory `json:"category" gorm:"type:varchar(32);not null;index"`
	PointsCost  int64          `json:"points_cost" gorm:"not null"`
	Inventory   *int64         `json:"inventory"`
	Active      bool           `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
}

func (Reward) TableName() string { return "rewards" }

// InStock reports whether one more unit can be redeemed.
func (r Reward) InStock() bool {
	return r.Inventory == nil || *r.Inventory > 0
}
