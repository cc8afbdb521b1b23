package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
	"gorm.io/gorm"
)

// Ledger mutates accounts inside a caller-owned transaction.
type Ledger interface {
	// EnsureAccount creates the account when absent, then locks it.
	EnsureAccount(ctx context.Context, tx *gorm.DB, userID snowflake.ID, now time.Time) (*PointsAccount, bool, error)
	// LockAccount locks an existing account; nil when the user has none.
	LockAccount(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*PointsAccount, error)
	// Post applies entry to account and appends its transaction row.
	Post(ctx context.Context, tx *gorm.DB, account *PointsAccount, entry Entry) (*PointsTransaction, error)
	// SaveStreak persists streak fields changed on account.
	SaveStreak(ctx context.Context, tx *gorm.DB, account *PointsAccount) error
}

type Service interface {
	GetAccount(ctx context.Context, userID snowflake.ID) (*PointsAccount, error)
	ListHistory(ctx context.Context, userID snowflake.ID, page pagination.Page) (HistoryResponse, error)
	Adjust(ctx context.Context, req AdjustRequest) (*AdjustResponse, error)
}

type HistoryResponse struct {
	pagination.PageInfo
	Transactions []PointsTransaction `json:"transactions"`
}

// AdjustRequest is an administrative correction. Negative amounts may not
// exceed the available balance.
type AdjustRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Amount int64        `json:"amount"`
	Reason string       `json:"reason"`
}

type AdjustResponse struct {
	Account     PointsAccount     `json:"account"`
	Transaction PointsTransaction `json:"transaction"`
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidEntry       = errors.New("invalid_entry")
	ErrInvalidReason      = errors.New("invalid_reason")
	ErrInsufficientPoints = errors.New("insufficient_points")
	ErrNoAccount          = errors.New("no_account")
)
