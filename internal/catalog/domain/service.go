package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListActivities(ctx context.Context, category string) ([]Activity, error)
	GetActivity(ctx context.Context, id snowflake.ID) (*Activity, error)
	CreateActivity(ctx context.Context, req CreateActivityRequest) (*Activity, error)
	UpdateActivity(ctx context.Context, id snowflake.ID, req UpdateActivityRequest) (*Activity, error)

	ListAchievements(ctx context.Context, category string) ([]Achievement, error)
	CreateAchievement(ctx context.Context, req CreateAchievementRequest) (*Achievement, error)

	ListRewards(ctx context.Context, category string) ([]Reward, error)
	GetReward(ctx context.Context, id snowflake.ID) (*Reward, error)
	CreateReward(ctx context.Context, req CreateRewardRequest) (*Reward, error)
	UpdateReward(ctx context.Context, id snowflake.ID, req UpdateRewardRequest) (*Reward, error)
}

type CreateActivityRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	PointsValue int64   `json:"points_value"`
	Frequency   string  `json:"frequency"`
	Active      *bool   `json:"active"`
}

// UpdateActivityRequest edits future recordings only; recorded points are snapshots.
type UpdateActivityRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PointsValue *int64  `json:"points_value"`
	Frequency   *string `json:"frequency"`
	Active      *bool   `json:"active"`
}

type CreateAchievementRequest struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	Level          int     `json:"level"`
	PointsRequired int64   `json:"points_required"`
	Category       string  `json:"category"`
	Active         *bool   `json:"active"`
}

type CreateRewardRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	PointsCost  int64   `json:"points_cost"`
	Inventory   *int64  `json:"inventory"`
	Active      *bool   `json:"active"`
}

// UpdateRewardRequest changes a reward. Unlimited clears the inventory cap.
type UpdateRewardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PointsCost  *int64  `json:"points_cost"`
	Inventory   *int64  `json:"inventory"`
	Unlimited   bool    `json:"unlimited"`
	Active      *bool   `json:"active"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidFrequency   = errors.New("invalid_frequency")
	ErrInvalidPoints      = errors.New("invalid_points")
	ErrInvalidLevel       = errors.New("invalid_level")
	ErrInvalidInventory   = errors.New("invalid_inventory")
	ErrActivityNotFound   = errors.New("activity_not_found")
	ErrActivityInactive   = errors.New("activity_inactive")
	ErrAchievementMissing = errors.New("achievement_not_found")
	ErrRewardNotFound     = errors.New("reward_not_found")
)

// ErrRewardInactive is a disabled reward. Members cannot tell it apart from a
// missing one, so it matches ErrRewardNotFound.
var ErrRewardInactive = fmt.Errorf("%w: reward_inactive", ErrRewardNotFound)
