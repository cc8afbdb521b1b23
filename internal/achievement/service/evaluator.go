package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/achievement/domain"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type EvaluatorParams struct {
	fx.In

	GenID  *snowflake.Node
	Repo   domain.Repository
	Ledger pointsdomain.Ledger
}

type evaluator struct {
	genID  *snowflake.Node
	repo   domain.Repository
	ledger pointsdomain.Ledger
}

func NewEvaluator(p EvaluatorParams) domain.Evaluator {
	return &evaluator{genID: p.GenID, repo: p.Repo, ledger: p.Ledger}
}

// Evaluate makes a single pass over the achievements reachable with the
// account's lifetime points. Bonuses posted here do not trigger another pass.
func (e *evaluator) Evaluate(ctx context.Context, tx *gorm.DB, account *pointsdomain.PointsAccount, now time.Time) ([]domain.Unlock, error) {
	if account == nil || account.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	now = now.UTC()

	eligible, err := e.repo.ListEligible(ctx, tx, account.UserID, account.LifetimePoints)
	if err != nil {
		return nil, err
	}

	var unlocks []domain.Unlock
	for _, achievement := range eligible {
		record := domain.UserAchievement{
			ID:            e.genID.Generate(),
			UserID:        account.UserID,
			AchievementID: achievement.ID,
			UnlockedAt:    now,
		}
		inserted, err := e.repo.InsertIfAbsent(ctx, tx, &record)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}

		unlock := domain.Unlock{Achievement: achievement, Record: record}
		if bonus := domain.LevelBonus(achievement.Level); bonus > 0 {
			sourceID := achievement.ID
			if _, err := e.ledger.Post(ctx, tx, account, pointsdomain.Entry{
				Amount:      bonus,
				Type:        pointsdomain.TransactionTypeBonus,
				Description: fmt.Sprintf("Achievement unlocked: %s", achievement.Name),
				SourceType:  pointsdomain.SourceTypeAchievement,
				SourceID:    &sourceID,
				OccurredAt:  now,
			}); err != nil {
				return nil, err
			}
			unlock.BonusPoints = bonus
		}
		unlocks = append(unlocks, unlock)
	}
	return unlocks, nil
}
