package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/catalog/repository"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn := dbtest.Open(t, &domain.Activity{}, &domain.Achievement{}, &domain.Reward{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}).(*Service)
}

func boolPtr(v bool) *bool    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestListActivitiesOrdersByPointsAndFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Daily Exercise", Category: "physical", PointsValue: 15, Frequency: "daily"})
	require.NoError(t, err)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Meditation", Category: "mental", PointsValue: 10, Frequency: "daily"})
	require.NoError(t, err)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Annual Checkup", Category: "appointment", PointsValue: 100, Frequency: "once"})
	require.NoError(t, err)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Retired", Category: "physical", PointsValue: 500, Frequency: "daily", Active: boolPtr(false)})
	require.NoError(t, err)

	items, err := svc.ListActivities(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Annual Checkup", items[0].Name)
	assert.Equal(t, "Daily Exercise", items[1].Name)
	assert.Equal(t, "Meditation", items[2].Name)

	physical, err := svc.ListActivities(ctx, " Physical ")
	require.NoError(t, err)
	require.Len(t, physical, 1)
	assert.Equal(t, domain.ActivityCategoryPhysical, physical[0].Category)

	_, err = svc.ListActivities(ctx, "yoga")
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestCreateActivityValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: " ", Category: "physical", PointsValue: 1, Frequency: "daily"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Walk", Category: "physical", PointsValue: 0, Frequency: "daily"})
	assert.ErrorIs(t, err, domain.ErrInvalidPoints)
	_, err = svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Walk", Category: "physical", PointsValue: 5, Frequency: "hourly"})
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}

func TestUpdateActivityInvalidatesListing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateActivity(ctx, domain.CreateActivityRequest{Name: "Walk", Category: "physical", PointsValue: 5, Frequency: "daily"})
	require.NoError(t, err)

	items, err := svc.ListActivities(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.UpdateActivity(ctx, created.ID, domain.UpdateActivityRequest{Active: boolPtr(false)})
	require.NoError(t, err)

	items, err = svc.ListActivities(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := svc.GetActivity(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = svc.GetActivity(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestListAchievementsOrdering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAchievement(ctx, domain.CreateAchievementRequest{Name: "Wellness Champion", Level: 3, PointsRequired: 5000})
	require.NoError(t, err)
	_, err = svc.CreateAchievement(ctx, domain.CreateAchievementRequest{Name: "Health Explorer", Level: 1, PointsRequired: 100})
	require.NoError(t, err)
	_, err = svc.CreateAchievement(ctx, domain.CreateAchievementRequest{Name: "Bad", Level: 4, PointsRequired: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)

	items, err := svc.ListAchievements(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Health Explorer", items[0].Name)
	assert.Equal(t, domain.AchievementCategoryGeneral, items[0].Category)
}

func TestRewardsCreateUpdateAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	card, err := svc.CreateReward(ctx, domain.CreateRewardRequest{Name: "Wellness Gift Card", Category: "gift_card", PointsCost: 2500, Inventory: int64Ptr(50)})
	require.NoError(t, err)
	_, err = svc.CreateReward(ctx, domain.CreateRewardRequest{Name: "Guided Video", Category: "content", PointsCost: 200})
	require.NoError(t, err)
	_, err = svc.CreateReward(ctx, domain.CreateRewardRequest{Name: "Broken", Category: "content", PointsCost: 10, Inventory: int64Ptr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInventory)

	items, err := svc.ListRewards(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Guided Video", items[0].Name)
	assert.Nil(t, items[0].Inventory)
	require.NotNil(t, items[1].Inventory)
	assert.Equal(t, int64(50), *items[1].Inventory)

	updated, err := svc.UpdateReward(ctx, card.ID, domain.UpdateRewardRequest{Unlimited: true, PointsCost: int64Ptr(2000)})
	require.NoError(t, err)
	assert.Nil(t, updated.Inventory)
	assert.Equal(t, int64(2000), updated.PointsCost)

	_, err = svc.UpdateReward(ctx, card.ID, domain.UpdateRewardRequest{Unlimited: true, Inventory: int64Ptr(3)})
	assert.ErrorIs(t, err, domain.ErrInvalidInventory)

	giftCards, err := svc.ListRewards(ctx, "gift_card")
	require.NoError(t, err)
	require.Len(t, giftCards, 1)
	assert.Nil(t, giftCards[0].Inventory)
}

func TestRewardCategoryValidity(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, domain.RewardCategoryDiscount.RedemptionValidity())
	assert.Equal(t, 30*24*time.Hour, domain.RewardCategoryGiftCard.RedemptionValidity())
	assert.Zero(t, domain.RewardCategoryMerchandise.RedemptionValidity())
	assert.Zero(t, domain.RewardCategoryDonation.RedemptionValidity())
}
