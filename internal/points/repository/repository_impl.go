package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/points/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccountIfAbsent(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (bool, error) {
	account := domain.PointsAccount{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

const accountColumns = `user_id, total_points, available_points, lifetime_points, current_streak, longest_streak,
	last_activity_at, last_streak_update_at, created_at, updated_at`

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.PointsAccount, error) {
	return r.findAccount(ctx, db, userID, false)
}

func (r *repo) FindAccountForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.PointsAccount, error) {
	return r.findAccount(ctx, db, userID, true)
}

func (r *repo) findAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID, forUpdate bool) (*domain.PointsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM points_accounts WHERE user_id = ?`
	if forUpdate && db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var account domain.PointsAccount
	if err := db.WithContext(ctx).Raw(query, userID).Scan(&account).Error; err != nil {
		return nil, err
	}
	if account.UserID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) SaveAccount(ctx context.Context, db *gorm.DB, account *domain.PointsAccount) error {
	if account == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE points_accounts
		 SET total_points = ?, available_points = ?, lifetime_points = ?,
		     current_streak = ?, longest_streak = ?,
		     last_activity_at = ?, last_streak_update_at = ?, updated_at = ?
		 WHERE user_id = ?`,
		account.TotalPoints,
		account.AvailablePoints,
		account.LifetimePoints,
		account.CurrentStreak,
		account.LongestStreak,
		account.LastActivityAt,
		account.LastStreakUpdateAt,
		account.UpdatedAt,
		account.UserID,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.PointsTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO points_transactions (id, user_id, amount, type, description, source_type, source_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.Amount,
		txn.Type,
		txn.Description,
		txn.SourceType,
		txn.SourceID,
		txn.CreatedAt,
	).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit, offset int) ([]domain.PointsTransaction, error) {
	var items []domain.PointsTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, amount, type, description, source_type, source_id, created_at
		 FROM points_transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
