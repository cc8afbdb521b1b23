package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertActivity(ctx context.Context, db *gorm.DB, activity *domain.Activity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activities (id, name, description, category, points_value, frequency, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.Name,
		activity.Description,
		activity.Category,
		activity.PointsValue,
		activity.Frequency,
		activity.Active,
		activity.CreatedAt,
		activity.UpdatedAt,
	).Error
}

func (r *repo) UpdateActivity(ctx context.Context, db *gorm.DB, activity *domain.Activity) error {
	if activity == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE activities
		 SET name = ?, description = ?, points_value = ?, frequency = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		activity.Name,
		activity.Description,
		activity.PointsValue,
		activity.Frequency,
		activity.Active,
		activity.UpdatedAt,
		activity.ID,
	).Error
}

func (r *repo) FindActivityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Activity, error) {
	var item domain.Activity
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, category, points_value, frequency, active, created_at, updated_at
		 FROM activities WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListActivities(ctx context.Context, db *gorm.DB, category *domain.ActivityCategory) ([]domain.Activity, error) {
	var items []domain.Activity
	stmt := db.WithContext(ctx).Model(&domain.Activity{}).Where("active = ?", true)
	if category != nil {
		stmt = stmt.Where("category = ?", *category)
	}
	if err := stmt.Order("points_value DESC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertAchievement(ctx context.Context, db *gorm.DB, achievement *domain.Achievement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO achievements (id, name, description, level, points_required, category, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		achievement.ID,
		achievement.Name,
		achievement.Description,
		achievement.Level,
		achievement.PointsRequired,
		achievement.Category,
		achievement.Active,
		achievement.CreatedAt,
		achievement.UpdatedAt,
	).Error
}

func (r *repo) FindAchievementByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Achievement, error) {
	var item domain.Achievement
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, level, points_required, category, active, created_at, updated_at
		 FROM achievements WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListAchievements(ctx context.Context, db *gorm.DB, category *domain.AchievementCategory) ([]domain.Achievement, error) {
	var items []domain.Achievement
	stmt := db.WithContext(ctx).Model(&domain.Achievement{}).Where("active = ?", true)
	if category != nil {
		stmt = stmt.Where("category = ?", *category)
	}
	if err := stmt.Order("level ASC, points_required ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertReward(ctx context.Context, db *gorm.DB, reward *domain.Reward) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rewards (id, name, description, category, points_cost, inventory, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reward.ID,
		reward.Name,
		reward.Description,
		reward.Category,
		reward.PointsCost,
		reward.Inventory,
		reward.Active,
		reward.CreatedAt,
		reward.UpdatedAt,
	).Error
}

func (r *repo) UpdateReward(ctx context.Context, db *gorm.DB, reward *domain.Reward) error {
	if reward == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE rewards
		 SET name = ?, description = ?, points_cost = ?, inventory = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		reward.Name,
		reward.Description,
		reward.PointsCost,
		reward.Inventory,
		reward.Active,
		reward.UpdatedAt,
		reward.ID,
	).Error
}

func (r *repo) FindRewardByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reward, error) {
	var item domain.Reward
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, category, points_cost, inventory, active, created_at, updated_at
		 FROM rewards WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListRewards(ctx context.Context, db *gorm.DB, category *domain.RewardCategory) ([]domain.Reward, error) {
	var items []domain.Reward
	stmt := db.WithContext(ctx).Model(&domain.Reward{}).Where("active = ?", true)
	if category != nil {
		stmt = stmt.Where("category = ?", *category)
	}
	if err := stmt.Order("points_cost ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
