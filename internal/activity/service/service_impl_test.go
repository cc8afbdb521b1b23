package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	achievementrepository "github.com/smallbiznis/carepoints/internal/achievement/repository"
	achievementservice "github.com/smallbiznis/carepoints/internal/achievement/service"
	"github.com/smallbiznis/carepoints/internal/activity/domain"
	"github.com/smallbiznis/carepoints/internal/activity/repository"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/carepoints/internal/catalog/repository"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/notification"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	pointsrepository "github.com/smallbiznis/carepoints/internal/points/repository"
	pointsservice "github.com/smallbiznis/carepoints/internal/points/service"
	"github.com/smallbiznis/carepoints/internal/streak"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *capturePublisher) Publish(_ context.Context, events ...notification.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	publisher *capturePublisher
	svc       *Service
}

var fixtureModels = []any{
	&catalogdomain.Activity{},
	&catalogdomain.Achievement{},
	&domain.ActivityRecord{},
	&achievementdomain.UserAchievement{},
	&pointsdomain.PointsAccount{},
	&pointsdomain.PointsTransaction{},
}

func newFixture(t *testing.T, cfg config.GamificationConfig) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t, fixtureModels...), cfg)
}

func newFixtureOn(t *testing.T, conn *gorm.DB, cfg config.GamificationConfig) *fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.Provide()
	ledger := pointsservice.NewLedger(pointsservice.LedgerParams{GenID: node, Repo: pointsrepository.Provide()})
	fake := clock.NewFakeClock(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	publisher := &capturePublisher{}

	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repo,
		CatalogRepo:  catalogrepository.Provide(),
		Ledger:       ledger,
		Streaks:      streak.New(streak.Params{Finder: repo, Ledger: ledger}),
		Evaluator:    achievementservice.NewEvaluator(achievementservice.EvaluatorParams{GenID: node, Repo: achievementrepository.Provide(), Ledger: ledger}),
		Clock:        fake,
		Gamification: config.NewStaticGamificationConfig(cfg),
		Publisher:    publisher,
	}).(*Service)

	return &fixture{db: conn, node: node, clock: fake, publisher: publisher, svc: svc}
}

func (f *fixture) activity(t *testing.T, name string, points int64, freq catalogdomain.Frequency, active bool) catalogdomain.Activity {
	t.Helper()
	item := catalogdomain.Activity{
		ID:          f.node.Generate(),
		Name:        name,
		Category:    catalogdomain.ActivityCategoryPhysical,
		PointsValue: points,
		Frequency:   freq,
		Active:      active,
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	require.NoError(t, catalogrepository.Provide().InsertActivity(context.Background(), f.db, &item))
	return item
}

func (f *fixture) achievement(t *testing.T, name string, level int, required int64) catalogdomain.Achievement {
	t.Helper()
	item := catalogdomain.Achievement{
		ID:             f.node.Generate(),
		Name:           name,
		Level:          level,
		PointsRequired: required,
		Category:       catalogdomain.AchievementCategoryGeneral,
		Active:         true,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	require.NoError(t, catalogrepository.Provide().InsertAchievement(context.Background(), f.db, &item))
	return item
}

func (f *fixture) record(userID, activityID snowflake.ID) (*domain.RecordActivityResponse, error) {
	return f.svc.RecordActivity(context.Background(), domain.RecordActivityRequest{UserID: userID, ActivityID: activityID})
}

func (f *fixture) account(t *testing.T, userID snowflake.ID) pointsdomain.PointsAccount {
	t.Helper()
	var account pointsdomain.PointsAccount
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&account).Error)
	return account
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestRecordActivityDailyDuplicateRejected(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	resp, err := f.record(42, exercise.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), resp.Account.AvailablePoints)
	assert.Equal(t, int64(15), resp.Record.PointsEarned)
	assert.Equal(t, domain.VerificationStatusPending, resp.Record.VerificationStatus)

	f.clock.Set(time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC))
	_, err = f.record(42, exercise.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateActivity)

	account := f.account(t, 42)
	assert.Equal(t, int64(15), account.AvailablePoints)
	assert.Equal(t, int64(1), f.count(t, &domain.ActivityRecord{}))
	assert.Equal(t, int64(1), f.count(t, &pointsdomain.PointsTransaction{}))

	f.clock.Set(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	_, err = f.record(42, exercise.ID)
	require.NoError(t, err)
}

func TestRecordActivityFirstRecordingStartsStreak(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	resp, err := f.record(42, exercise.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Streak.Current)
	assert.Equal(t, 1, resp.Streak.Longest)

	account := f.account(t, 42)
	assert.Equal(t, 1, account.CurrentStreak)
	require.NotNil(t, account.LastStreakUpdateAt)
	require.NotNil(t, account.LastActivityAt)
	assert.Equal(t, []string{notification.EventActivityRecorded}, f.publisher.types())
}

func TestRecordActivityFifthDayAwardsStreakBonus(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	var resp *domain.RecordActivityResponse
	for day := 1; day <= 5; day++ {
		var err error
		resp, err = f.record(42, exercise.ID)
		require.NoError(t, err, "day %d", day)
		assert.Equal(t, day, resp.Streak.Current)
		f.clock.Advance(23 * time.Hour)
	}

	assert.Equal(t, int64(25), resp.Streak.BonusPoints)
	assert.Equal(t, int64(5*15+25), resp.Account.AvailablePoints)
	assert.Equal(t, int64(5*15+25), resp.Account.LifetimePoints)
	assert.Equal(t, 5, resp.Account.LongestStreak)
	assert.Contains(t, f.publisher.types(), notification.EventStreakMilestone)

	var bonus pointsdomain.PointsTransaction
	require.NoError(t, f.db.Where("source_type = ?", pointsdomain.SourceTypeStreak).First(&bonus).Error)
	assert.Equal(t, int64(25), bonus.Amount)
	assert.Equal(t, pointsdomain.TransactionTypeBonus, bonus.Type)
}

func TestRecordActivityStreakResetsAfterGap(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	_, err := f.record(42, exercise.ID)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Hour)
	resp, err := f.record(42, exercise.ID)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Streak.Current)

	f.clock.Advance(72 * time.Hour)
	resp, err = f.record(42, exercise.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Streak.Current)
	assert.Equal(t, 2, resp.Streak.Longest)
}

func TestRecordActivityUnlocksAchievementOnce(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	checkup := f.activity(t, "Annual Checkup", 90, catalogdomain.FrequencyOnce, true)
	exercise := f.activity(t, "Daily Exercise", 20, catalogdomain.FrequencyDaily, true)
	f.achievement(t, "Health Explorer", 1, 100)

	resp, err := f.record(42, checkup.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.Achievements)
	assert.Equal(t, int64(90), resp.Account.LifetimePoints)

	resp, err = f.record(42, exercise.ID)
	require.NoError(t, err)
	require.Len(t, resp.Achievements, 1)
	assert.Equal(t, "Health Explorer", resp.Achievements[0].Name)
	assert.Equal(t, int64(110), resp.Account.LifetimePoints)
	assert.Contains(t, f.publisher.types(), notification.EventAchievementUnlocked)

	f.clock.Advance(24 * time.Hour)
	resp, err = f.record(42, exercise.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.Achievements)
	assert.Equal(t, int64(1), f.count(t, &achievementdomain.UserAchievement{}))
}

func TestRecordActivityStrictFrequencyGatesWeekly(t *testing.T) {
	cfg := config.DefaultGamificationConfig()
	cfg.StrictFrequency = true
	f := newFixture(t, cfg)
	class := f.activity(t, "Yoga Class", 30, catalogdomain.FrequencyWeekly, true)
	checkup := f.activity(t, "Annual Checkup", 100, catalogdomain.FrequencyOnce, true)

	_, err := f.record(42, class.ID)
	require.NoError(t, err)
	_, err = f.record(42, checkup.ID)
	require.NoError(t, err)

	f.clock.Advance(3 * 24 * time.Hour)
	_, err = f.record(42, class.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateActivity)

	f.clock.Advance(5 * 24 * time.Hour)
	_, err = f.record(42, class.ID)
	require.NoError(t, err)
	_, err = f.record(42, checkup.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateActivity)
}

func TestRecordActivityLenientFrequencyAllowsRepeats(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	class := f.activity(t, "Yoga Class", 30, catalogdomain.FrequencyWeekly, true)

	_, err := f.record(42, class.ID)
	require.NoError(t, err)
	resp, err := f.record(42, class.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), resp.Account.AvailablePoints)
}

func TestRecordActivityRespectsConfiguredTimezone(t *testing.T) {
	cfg := config.DefaultGamificationConfig()
	cfg.Timezone = "Asia/Jakarta"
	f := newFixture(t, cfg)
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	f.clock.Set(time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC)) // 23:00 local
	_, err := f.record(42, exercise.ID)
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)) // 01:00 next local day
	_, err = f.record(42, exercise.ID)
	require.NoError(t, err)
}

func TestRecordActivityValidation(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	retired := f.activity(t, "Retired", 15, catalogdomain.FrequencyDaily, false)
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	_, err := f.record(0, exercise.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = f.record(42, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidActivity)
	_, err = f.record(42, f.node.Generate())
	assert.ErrorIs(t, err, catalogdomain.ErrActivityNotFound)
	_, err = f.record(42, retired.ID)
	assert.ErrorIs(t, err, catalogdomain.ErrActivityInactive)

	bad := "javascript:alert(1)"
	_, err = f.svc.RecordActivity(context.Background(), domain.RecordActivityRequest{UserID: 42, ActivityID: exercise.ID, ProofImageURL: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidProofURL)

	assert.Zero(t, f.count(t, &pointsdomain.PointsAccount{}))
	assert.Zero(t, f.count(t, &domain.ActivityRecord{}))

	notes := "<i>Felt</i> great"
	resp, err := f.svc.RecordActivity(context.Background(), domain.RecordActivityRequest{UserID: 42, ActivityID: exercise.ID, Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, resp.Record.Notes)
	assert.Equal(t, "Felt great", *resp.Record.Notes)
}

func TestRecordActivityConcurrentDuplicatesCreditOnce(t *testing.T) {
	assertDailyDuplicatesCreditOnce(t, newFixture(t, config.DefaultGamificationConfig()))
}

// assertDailyDuplicatesCreditOnce races one member's recordings of a daily
// activity.
func assertDailyDuplicatesCreditOnce(t *testing.T, f *fixture) {
	t.Helper()
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.record(42, exercise.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, domain.ErrDuplicateActivity):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, int64(15), f.account(t, 42).AvailablePoints)
}

func TestListUserActivitiesAndVerify(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		resp, err := f.record(42, exercise.ID)
		require.NoError(t, err)
		ids = append(ids, resp.Record.ID)
		f.clock.Advance(24 * time.Hour)
	}

	page, err := f.svc.ListUserActivities(context.Background(), 42, pagination.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[2], page.Records[0].ID)

	verified, err := f.svc.VerifyRecord(context.Background(), ids[0], domain.VerificationStatusVerified)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationStatusVerified, verified.VerificationStatus)
	assert.NotNil(t, verified.VerifiedAt)
	assert.Equal(t, int64(15), verified.PointsEarned)

	_, err = f.svc.VerifyRecord(context.Background(), ids[0], domain.VerificationStatusRejected)
	assert.ErrorIs(t, err, domain.ErrRecordNotPending)
	_, err = f.svc.VerifyRecord(context.Background(), ids[1], domain.VerificationStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.VerifyRecord(context.Background(), f.node.Generate(), domain.VerificationStatusVerified)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	assert.Equal(t, int64(45), f.account(t, 42).AvailablePoints)
}

func TestRecordActivityLocksAccountBeforeReadingCatalog(t *testing.T) {
	f := newFixture(t, config.DefaultGamificationConfig())
	exercise := f.activity(t, "Daily Exercise", 15, catalogdomain.FrequencyDaily, true)

	var reads []string
	capture := func(tx *gorm.DB) { reads = append(reads, tx.Statement.SQL.String()) }
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:capture_query", capture))
	require.NoError(t, f.db.Callback().Row().After("gorm:row").Register("test:capture_row", capture))

	_, err := f.record(42, exercise.ID)
	require.NoError(t, err)

	firstRead := func(fragment string) int {
		for i, sql := range reads {
			if strings.Contains(sql, fragment) {
				return i
			}
		}
		return -1
	}
	accountRead := firstRead("FROM points_accounts")
	catalogRead := firstRead("FROM activities")
	require.GreaterOrEqual(t, accountRead, 0)
	require.GreaterOrEqual(t, catalogRead, 0)
	assert.Less(t, accountRead, catalogRead)
}
