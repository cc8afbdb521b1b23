// Package streak maintains consecutive-activity streaks on points accounts.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	ContinuationWindow = 36 * time.Hour
	LookbackWindow     = 24 * time.Hour
	MilestoneInterval  = 5
	MilestoneUnitBonus = 25
)

type Decision int

const (
	// Unchanged leaves the streak as is: the last update is recent but no
	// other record falls inside the lookback window.
	Unchanged Decision = iota
	Extended
	Reset
)

// Decide picks the streak transition. A missing last update counts as
// infinitely long ago.
func Decide(lastUpdate *time.Time, now time.Time, hasRecentRecord bool) Decision {
	if lastUpdate == nil || now.Sub(*lastUpdate) > ContinuationWindow {
		return Reset
	}
	if hasRecentRecord {
		return Extended
	}
	return Unchanged
}

// MilestoneBonus returns the bonus for reaching streak, zero when streak is
// not a positive multiple of MilestoneInterval.
func MilestoneBonus(streak int) int64 {
	if streak <= 0 || streak%MilestoneInterval != 0 {
		return 0
	}
	return int64(MilestoneUnitBonus * (streak / MilestoneInterval))
}

// RecordFinder reports whether a user completed any activity in a window.
type RecordFinder interface {
	HasRecordBetween(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time, excludeID snowflake.ID) (bool, error)
}

type Result struct {
	Decision Decision
	Current  int
	Longest  int
	Bonus    *pointsdomain.PointsTransaction
}

func (r Result) Milestone() bool { return r.Bonus != nil }

type Params struct {
	fx.In

	Finder RecordFinder
	Ledger pointsdomain.Ledger
}

type Calculator struct {
	finder RecordFinder
	ledger pointsdomain.Ledger
}

func New(p Params) *Calculator {
	return &Calculator{finder: p.Finder, ledger: p.Ledger}
}

// Start initializes the streak of an account created by its first activity.
func (c *Calculator) Start(ctx context.Context, tx *gorm.DB, account *pointsdomain.PointsAccount, now time.Time) (Result, error) {
	ts := now.UTC()
	account.CurrentStreak = 1
	if account.LongestStreak < 1 {
		account.LongestStreak = 1
	}
	account.LastStreakUpdateAt = &ts
	if err := c.ledger.SaveStreak(ctx, tx, account); err != nil {
		return Result{}, err
	}
	return Result{Decision: Reset, Current: account.CurrentStreak, Longest: account.LongestStreak}, nil
}

// Apply updates the streak after recordID was inserted and posts the
// milestone bonus when one is reached. It must run inside the recording
// transaction with the account row locked.
func (c *Calculator) Apply(ctx context.Context, tx *gorm.DB, account *pointsdomain.PointsAccount, recordID snowflake.ID, now time.Time) (Result, error) {
	now = now.UTC()

	hasRecent := false
	last := account.LastStreakUpdateAt
	if last != nil && now.Sub(*last) <= ContinuationWindow {
		found, err := c.finder.HasRecordBetween(ctx, tx, account.UserID, now.Add(-LookbackWindow), now, recordID)
		if err != nil {
			return Result{}, err
		}
		hasRecent = found
	}

	decision := Decide(last, now, hasRecent)
	switch decision {
	case Extended:
		account.CurrentStreak++
	case Reset:
		account.CurrentStreak = 1
	default:
		return Result{Decision: Unchanged, Current: account.CurrentStreak, Longest: account.LongestStreak}, nil
	}
	if account.LongestStreak < account.CurrentStreak {
		account.LongestStreak = account.CurrentStreak
	}
	account.LastStreakUpdateAt = &now
	if err := c.ledger.SaveStreak(ctx, tx, account); err != nil {
		return Result{}, err
	}

	result := Result{Decision: decision, Current: account.CurrentStreak, Longest: account.LongestStreak}
	if bonus := MilestoneBonus(account.CurrentStreak); bonus > 0 {
		txn, err := c.ledger.Post(ctx, tx, account, pointsdomain.Entry{
			Amount:      bonus,
			Type:        pointsdomain.TransactionTypeBonus,
			Description: fmt.Sprintf("%d-day streak bonus", account.CurrentStreak),
			SourceType:  pointsdomain.SourceTypeStreak,
			OccurredAt:  now,
		})
		if err != nil {
			return Result{}, err
		}
		result.Bonus = txn
	}
	return result, nil
}
