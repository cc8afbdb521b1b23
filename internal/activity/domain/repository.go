package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ActivityRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ActivityRecord, error)
	// ExistsInWindow checks for a (user, activity) record completed in
	// [from, to). Nil bounds are open.
	ExistsInWindow(ctx context.Context, db *gorm.DB, userID, activityID snowflake.ID, from, to *time.Time) (bool, error)
	// HasRecordBetween checks for any of the user's records completed in
	// [from, to], ignoring excludeID.
	HasRecordBetween(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time, excludeID snowflake.ID) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit, offset int) ([]ActivityRecord, error)
	// UpdateVerification moves a pending record to status; false when the
	// record was no longer pending.
	UpdateVerification(ctx context.Context, db *gorm.DB, id snowflake.ID, status VerificationStatus, at time.Time) (bool, error)
}
