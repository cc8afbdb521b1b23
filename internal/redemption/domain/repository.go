package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// LockReward reads a reward row under a write lock; nil when absent.
	LockReward(ctx context.Context, db *gorm.DB, rewardID snowflake.ID) (*catalogdomain.Reward, error)
	// DecrementInventory takes one unit from a finite inventory, reporting
	// false when none is left.
	DecrementInventory(ctx context.Context, db *gorm.DB, rewardID snowflake.ID, now time.Time) (bool, error)

	Insert(ctx context.Context, db *gorm.DB, entry *UserReward) error
	FindByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*UserReward, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status *Status) ([]UserReward, error)
	MarkRedeemed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	// ClaimExpired locks up to limit active redemptions expiring at or
	// before now, skipping rows held by other workers.
	ClaimExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]UserReward, error)
	MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}
