package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/activity/domain"
	"github.com/smallbiznis/carepoints/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const recordColumns = `id, user_id, activity_id, completed_at, points_earned, notes, proof_image_url, verification_status, verified_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.ActivityRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activity_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.ActivityID,
		record.CompletedAt,
		record.PointsEarned,
		record.Notes,
		record.ProofImageURL,
		record.VerificationStatus,
		record.VerifiedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ActivityRecord, error) {
	var record domain.ActivityRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM activity_records WHERE id = ?`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

// ExistsInWindow and HasRecordBetween use locking reads. Callers hold the
// account row lock, and the reads must see records committed by whoever held
// it before them.
func (r *repo) ExistsInWindow(ctx context.Context, conn *gorm.DB, userID, activityID snowflake.ID, from, to *time.Time) (bool, error) {
	stmt := db.ForShare(conn.WithContext(ctx)).Model(&domain.ActivityRecord{}).
		Where("user_id = ? AND activity_id = ?", userID, activityID)
	if from != nil {
		stmt = stmt.Where("completed_at >= ?", from.UTC())
	}
	if to != nil {
		stmt = stmt.Where("completed_at < ?", to.UTC())
	}
	return anyID(stmt)
}

func (r *repo) HasRecordBetween(ctx context.Context, conn *gorm.DB, userID snowflake.ID, from, to time.Time, excludeID snowflake.ID) (bool, error) {
	return anyID(db.ForShare(conn.WithContext(ctx)).Model(&domain.ActivityRecord{}).
		Where("user_id = ? AND id <> ? AND completed_at >= ? AND completed_at <= ?", userID, excludeID, from.UTC(), to.UTC()))
}

func anyID(stmt *gorm.DB) (bool, error) {
	var ids []int64
	if err := stmt.Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit, offset int) ([]domain.ActivityRecord, error) {
	var items []domain.ActivityRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM activity_records
		 WHERE user_id = ?
		 ORDER BY completed_at DESC, id DESC
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

func (r *repo) UpdateVerification(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.VerificationStatus, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE activity_records
		 SET verification_status = ?, verified_at = ?
		 WHERE id = ? AND verification_status = ?`,
		status,
		at.UTC(),
		id,
		domain.VerificationStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
