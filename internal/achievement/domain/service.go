package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"gorm.io/gorm"
)

// Evaluator unlocks achievements inside the caller's transaction.
type Evaluator interface {
	Evaluate(ctx context.Context, tx *gorm.DB, account *pointsdomain.PointsAccount, now time.Time) ([]Unlock, error)
}

type Service interface {
	ListUserAchievements(ctx context.Context, userID snowflake.ID) ([]UnlockedAchievement, error)
}

var ErrInvalidUser = errors.New("invalid_user")
