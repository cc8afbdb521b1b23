package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	RedeemReward(ctx context.Context, req RedeemRequest) (*UserReward, error)
	ListUserRewards(ctx context.Context, userID snowflake.ID, status string) ([]UserReward, error)
	// FulfillByCode marks an active redemption as used.
	FulfillByCode(ctx context.Context, code string) (*UserReward, error)
	// ExpireDue moves past-expiry active redemptions to expired. Balances are
	// not touched.
	ExpireDue(ctx context.Context, now time.Time, batchSize int) ([]UserReward, error)
}

type RedeemRequest struct {
	UserID   snowflake.ID `json:"-"`
	RewardID snowflake.ID `json:"reward_id"`
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidReward       = errors.New("invalid_reward")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrOutOfStock          = errors.New("out_of_stock")
	ErrRedemptionNotFound  = errors.New("redemption_not_found")
	ErrRedemptionNotActive = errors.New("redemption_not_active")
	ErrRedemptionExpired   = errors.New("redemption_expired")
)
