package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
)

// UserAchievement marks an achievement as unlocked; at most one per pair.
type UserAchievement struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID        snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_user_achievements_pair,priority:1"`
	AchievementID snowflake.ID `json:"achievement_id" gorm:"not null;uniqueIndex:ux_user_achievements_pair,priority:2"`
	UnlockedAt    time.Time    `json:"unlocked_at" gorm:"not null"`
}

func (UserAchievement) TableName() string { return "user_achievements" }

// UnlockedAchievement is a user achievement joined with its catalog entry.
type UnlockedAchievement struct {
	UserAchievement
	Name        string                            `json:"name"`
	Description *string                           `json:"description,omitempty"`
	Level       int                               `json:"level"`
	Category    catalogdomain.AchievementCategory `json:"category"`
}

// Unlock is produced by one evaluation for each newly unlocked achievement.
type Unlock struct {
	Achievement catalogdomain.Achievement
	Record      UserAchievement
	BonusPoints int64
}

// LevelBonus is the points bonus granted on unlocking an achievement of level.
func LevelBonus(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(level * 50)
}
