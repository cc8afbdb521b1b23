package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/points/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type LedgerParams struct {
	fx.In

	GenID *snowflake.Node
	Repo  domain.Repository
}

type ledger struct {
	genID *snowflake.Node
	repo  domain.Repository
}

func NewLedger(p LedgerParams) domain.Ledger {
	return &ledger{genID: p.GenID, repo: p.Repo}
}

func (l *ledger) EnsureAccount(ctx context.Context, tx *gorm.DB, userID snowflake.ID, now time.Time) (*domain.PointsAccount, bool, error) {
	if userID == 0 {
		return nil, false, domain.ErrInvalidUser
	}
	created, err := l.repo.InsertAccountIfAbsent(ctx, tx, userID, now.UTC())
	if err != nil {
		return nil, false, err
	}
	account, err := l.repo.FindAccountForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, domain.ErrNoAccount
	}
	return account, created, nil
}

func (l *ledger) LockAccount(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*domain.PointsAccount, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return l.repo.FindAccountForUpdate(ctx, tx, userID)
}

func (l *ledger) Post(ctx context.Context, tx *gorm.DB, account *domain.PointsAccount, entry domain.Entry) (*domain.PointsTransaction, error) {
	if account == nil || account.UserID == 0 {
		return nil, domain.ErrNoAccount
	}
	if !entry.SourceType.Valid() || strings.TrimSpace(entry.Description) == "" {
		return nil, domain.ErrInvalidEntry
	}

	next, err := apply(*account, entry)
	if err != nil {
		return nil, err
	}

	occurredAt := entry.OccurredAt.UTC()
	if entry.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	if entry.Type == domain.TransactionTypeEarned {
		next.LastActivityAt = &occurredAt
	}
	next.UpdatedAt = occurredAt

	if err := l.repo.SaveAccount(ctx, tx, &next); err != nil {
		return nil, err
	}

	txn := &domain.PointsTransaction{
		ID:          l.genID.Generate(),
		UserID:      account.UserID,
		Amount:      entry.Amount,
		Type:        entry.Type,
		Description: strings.TrimSpace(entry.Description),
		SourceType:  entry.SourceType,
		SourceID:    entry.SourceID,
		CreatedAt:   occurredAt,
	}
	if err := l.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	*account = next
	return txn, nil
}

func (l *ledger) SaveStreak(ctx context.Context, tx *gorm.DB, account *domain.PointsAccount) error {
	if account == nil || account.UserID == 0 {
		return domain.ErrNoAccount
	}
	if account.LongestStreak < account.CurrentStreak {
		account.LongestStreak = account.CurrentStreak
	}
	return l.repo.SaveAccount(ctx, tx, account)
}

// apply returns the account after entry is posted.
//
// Credits (earned, bonus, positive adjustment) raise total, available and
// lifetime. Spending lowers available only. Expiry and negative adjustments
// lower total and available. Lifetime never decreases and available never
// drops below zero.
func apply(account domain.PointsAccount, entry domain.Entry) (domain.PointsAccount, error) {
	amount := entry.Amount
	switch entry.Type {
	case domain.TransactionTypeEarned, domain.TransactionTypeBonus:
		if amount <= 0 {
			return account, domain.ErrInvalidAmount
		}
		account.TotalPoints += amount
		account.AvailablePoints += amount
		account.LifetimePoints += amount
	case domain.TransactionTypeSpent:
		if amount >= 0 {
			return account, domain.ErrInvalidAmount
		}
		if account.AvailablePoints+amount < 0 {
			return account, domain.ErrInsufficientPoints
		}
		account.AvailablePoints += amount
	case domain.TransactionTypeExpired:
		if amount >= 0 {
			return account, domain.ErrInvalidAmount
		}
		if account.AvailablePoints+amount < 0 {
			return account, domain.ErrInsufficientPoints
		}
		account.TotalPoints += amount
		account.AvailablePoints += amount
	case domain.TransactionTypeAdjustment:
		switch {
		case amount > 0:
			account.TotalPoints += amount
			account.AvailablePoints += amount
			account.LifetimePoints += amount
		case amount < 0:
			if account.AvailablePoints+amount < 0 {
				return account, domain.ErrInsufficientPoints
			}
			account.TotalPoints += amount
			account.AvailablePoints += amount
		default:
			return account, domain.ErrInvalidAmount
		}
	default:
		return account, domain.ErrInvalidEntry
	}
	return account, nil
}
