package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/achievement/domain"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListEligible(ctx context.Context, db *gorm.DB, userID snowflake.ID, lifetime int64) ([]catalogdomain.Achievement, error) {
	var items []catalogdomain.Achievement
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.name, a.description, a.level, a.points_required, a.category, a.active, a.created_at, a.updated_at
		 FROM achievements a
		 WHERE a.active = ? AND a.points_required <= ?
		   AND NOT EXISTS (
		     SELECT 1 FROM user_achievements ua
		     WHERE ua.user_id = ? AND ua.achievement_id = a.id
		   )
		 ORDER BY a.id ASC`,
		true,
		lifetime,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *domain.UserAchievement) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.UnlockedAchievement, error) {
	var items []domain.UnlockedAchievement
	err := db.WithContext(ctx).Raw(
		`SELECT ua.id, ua.user_id, ua.achievement_id, ua.unlocked_at,
		        a.name, a.description, a.level, a.category
		 FROM user_achievements ua
		 JOIN achievements a ON a.id = ua.achievement_id
		 WHERE ua.user_id = ?
		 ORDER BY ua.unlocked_at DESC, ua.id DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
