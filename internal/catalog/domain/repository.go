package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertActivity(ctx context.Context, db *gorm.DB, activity *Activity) error
	UpdateActivity(ctx context.Context, db *gorm.DB, activity *Activity) error
	FindActivityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Activity, error)
	ListActivities(ctx context.Context, db *gorm.DB, category *ActivityCategory) ([]Activity, error)

	InsertAchievement(ctx context.Context, db *gorm.DB, achievement *Achievement) error
	FindAchievementByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Achievement, error)
	ListAchievements(ctx context.Context, db *gorm.DB, category *AchievementCategory) ([]Achievement, error)

	InsertReward(ctx context.Context, db *gorm.DB, reward *Reward) error
	UpdateReward(ctx context.Context, db *gorm.DB, reward *Reward) error
	FindRewardByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reward, error)
	ListRewards(ctx context.Context, db *gorm.DB, category *RewardCategory) ([]Reward, error)
}
