package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/redemption/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LockReward(ctx context.Context, db *gorm.DB, rewardID snowflake.ID) (*catalogdomain.Reward, error) {
	query := `SELECT id, name, description, category, points_cost, inventory, active, created_at, updated_at
		FROM rewards WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var reward catalogdomain.Reward
	if err := db.WithContext(ctx).Raw(query, rewardID).Scan(&reward).Error; err != nil {
		return nil, err
	}
	if reward.ID == 0 {
		return nil, nil
	}
	return &reward, nil
}

func (r *repo) DecrementInventory(ctx context.Context, db *gorm.DB, rewardID snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE rewards
		 SET inventory = inventory - 1, updated_at = ?
		 WHERE id = ? AND inventory IS NOT NULL AND inventory > 0`,
		now.UTC(),
		rewardID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.UserReward) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_rewards (id, user_id, reward_id, code, status, points_spent, earned_at, expires_at, redeemed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.RewardID,
		entry.Code,
		entry.Status,
		entry.PointsSpent,
		entry.EarnedAt,
		entry.ExpiresAt,
		entry.RedeemedAt,
	).Error
}

const userRewardColumns = `ur.id, ur.user_id, ur.reward_id, ur.code, ur.status, ur.points_spent,
	ur.earned_at, ur.expires_at, ur.redeemed_at, r.name AS reward_name`

func (r *repo) FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*domain.UserReward, error) {
	query := `SELECT ` + userRewardColumns + `
		FROM user_rewards ur
		JOIN rewards r ON r.id = ur.reward_id
		WHERE ur.code = ?`
	if db.Dialector.Name() == "postgres" {
		query += " FOR UPDATE OF ur"
	} else if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var entry domain.UserReward
	if err := db.WithContext(ctx).Raw(query, code).Scan(&entry).Error; err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status *domain.Status) ([]domain.UserReward, error) {
	query := `SELECT ` + userRewardColumns + `
		FROM user_rewards ur
		JOIN rewards r ON r.id = ur.reward_id
		WHERE ur.user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND ur.status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY ur.earned_at DESC, ur.id DESC`

	var items []domain.UserReward
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE user_rewards SET status = ?, redeemed_at = ? WHERE id = ? AND status = ?`,
		domain.StatusRedeemed,
		at.UTC(),
		id,
		domain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ClaimExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.UserReward, error) {
	query := `SELECT id, user_id, reward_id, code, status, points_spent, earned_at, expires_at, redeemed_at
		FROM user_rewards
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at ASC, id ASC
		LIMIT ?`
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		query += " FOR UPDATE SKIP LOCKED"
	}

	var items []domain.UserReward
	if err := db.WithContext(ctx).Raw(query, domain.StatusActive, now.UTC(), limit).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE user_rewards SET status = ? WHERE id IN ? AND status = ?`,
		domain.StatusExpired,
		ids,
		domain.StatusActive,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
