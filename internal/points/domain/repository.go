package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertAccountIfAbsent creates a zero-balance account and reports whether it did.
	InsertAccountIfAbsent(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (bool, error)
	FindAccount(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*PointsAccount, error)
	FindAccountForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*PointsAccount, error)
	SaveAccount(ctx context.Context, db *gorm.DB, account *PointsAccount) error

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *PointsTransaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit, offset int) ([]PointsTransaction, error)
}
