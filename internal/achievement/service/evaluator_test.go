package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/achievement/domain"
	"github.com/smallbiznis/carepoints/internal/achievement/repository"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/carepoints/internal/catalog/repository"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	pointsrepository "github.com/smallbiznis/carepoints/internal/points/repository"
	pointsservice "github.com/smallbiznis/carepoints/internal/points/service"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	ledger    pointsdomain.Ledger
	evaluator domain.Evaluator
	svc       domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t,
		&catalogdomain.Achievement{},
		&domain.UserAchievement{},
		&pointsdomain.PointsAccount{},
		&pointsdomain.PointsTransaction{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ledger := pointsservice.NewLedger(pointsservice.LedgerParams{GenID: node, Repo: pointsrepository.Provide()})
	repo := repository.Provide()
	return &fixture{
		db:        conn,
		node:      node,
		ledger:    ledger,
		evaluator: NewEvaluator(EvaluatorParams{GenID: node, Repo: repo, Ledger: ledger}),
		svc:       New(Params{DB: conn, Log: zap.NewNop(), Repo: repo}),
	}
}

func (f *fixture) achievement(t *testing.T, name string, level int, required int64, active bool) catalogdomain.Achievement {
	t.Helper()
	item := catalogdomain.Achievement{
		ID:             f.node.Generate(),
		Name:           name,
		Level:          level,
		PointsRequired: required,
		Category:       catalogdomain.AchievementCategoryGeneral,
		Active:         active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, catalogrepository.Provide().InsertAchievement(context.Background(), f.db, &item))
	return item
}

// earnAndEvaluate credits amount and evaluates achievements in one transaction.
func (f *fixture) earnAndEvaluate(t *testing.T, userID snowflake.ID, amount int64) ([]domain.Unlock, *pointsdomain.PointsAccount) {
	t.Helper()
	var (
		unlocks []domain.Unlock
		account *pointsdomain.PointsAccount
	)
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		account, _, err = f.ledger.EnsureAccount(context.Background(), tx, userID, now)
		if err != nil {
			return err
		}
		if _, err := f.ledger.Post(context.Background(), tx, account, pointsdomain.Entry{
			Amount:      amount,
			Type:        pointsdomain.TransactionTypeEarned,
			Description: "Daily Exercise",
			SourceType:  pointsdomain.SourceTypeActivity,
			OccurredAt:  now,
		}); err != nil {
			return err
		}
		unlocks, err = f.evaluator.Evaluate(context.Background(), tx, account, now)
		return err
	}))
	return unlocks, account
}

func TestEvaluateUnlocksOnceAtThreshold(t *testing.T) {
	f := newFixture(t)
	explorer := f.achievement(t, "Health Explorer", 1, 100, true)

	unlocks, _ := f.earnAndEvaluate(t, 42, 90)
	assert.Empty(t, unlocks)

	unlocks, account := f.earnAndEvaluate(t, 42, 20)
	require.Len(t, unlocks, 1)
	assert.Equal(t, explorer.ID, unlocks[0].Achievement.ID)
	assert.Zero(t, unlocks[0].BonusPoints)
	assert.Equal(t, int64(110), account.LifetimePoints)

	unlocks, _ = f.earnAndEvaluate(t, 42, 15)
	assert.Empty(t, unlocks)

	var count int64
	require.NoError(t, f.db.Model(&domain.UserAchievement{}).Where("user_id = ?", 42).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEvaluatePostsLevelBonusInSinglePass(t *testing.T) {
	f := newFixture(t)
	f.achievement(t, "Starter", 1, 10, true)
	champion := f.achievement(t, "Champion", 2, 50, true)
	// Reachable only through the champion bonus; a single pass leaves it locked.
	f.achievement(t, "Legend", 3, 120, true)
	f.achievement(t, "Hidden", 1, 5, false)

	unlocks, account := f.earnAndEvaluate(t, 42, 60)
	require.Len(t, unlocks, 2)
	assert.Equal(t, "Starter", unlocks[0].Achievement.Name)
	assert.Equal(t, champion.ID, unlocks[1].Achievement.ID)
	assert.Equal(t, int64(100), unlocks[1].BonusPoints)
	assert.Equal(t, int64(160), account.LifetimePoints)
	assert.Equal(t, int64(160), account.AvailablePoints)

	var bonus pointsdomain.PointsTransaction
	require.NoError(t, f.db.Where("type = ?", pointsdomain.TransactionTypeBonus).First(&bonus).Error)
	assert.Equal(t, pointsdomain.SourceTypeAchievement, bonus.SourceType)
	require.NotNil(t, bonus.SourceID)
	assert.Equal(t, champion.ID, *bonus.SourceID)

	unlocked, err := f.svc.ListUserAchievements(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, unlocked, 2)

	unlocks, _ = f.earnAndEvaluate(t, 42, 1)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "Legend", unlocks[0].Achievement.Name)
	assert.Equal(t, int64(150), unlocks[0].BonusPoints)
}

func TestListUserAchievementsValidatesUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListUserAchievements(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	items, err := f.svc.ListUserAchievements(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLevelBonus(t *testing.T) {
	assert.Zero(t, domain.LevelBonus(1))
	assert.Equal(t, int64(100), domain.LevelBonus(2))
	assert.Equal(t, int64(150), domain.LevelBonus(3))
}
