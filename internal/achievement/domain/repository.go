package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// ListEligible returns active achievements within lifetime that the user
	// has not unlocked, ascending by id.
	ListEligible(ctx context.Context, db *gorm.DB, userID snowflake.ID, lifetime int64) ([]catalogdomain.Achievement, error)
	// InsertIfAbsent reports false when the pair was already unlocked.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *UserAchievement) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]UnlockedAchievement, error)
}
