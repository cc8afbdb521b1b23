package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/cache"
	"github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listingTTL = time.Minute

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	auditSvc auditdomain.Service

	activities   cache.Cache[string, []domain.Activity]
	achievements cache.Cache[string, []domain.Achievement]
	rewards      cache.Cache[string, []domain.Reward]
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("catalog.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		clock:        p.Clock,
		auditSvc:     p.AuditSvc,
		activities:   cache.NewTTLCache[string, []domain.Activity](),
		achievements: cache.NewTTLCache[string, []domain.Achievement](),
		rewards:      cache.NewTTLCache[string, []domain.Reward](),
	}
}

func (s *Service) ListActivities(ctx context.Context, category string) ([]domain.Activity, error) {
	var filter *domain.ActivityCategory
	if category = normalizeKey(category); category != "" {
		c := domain.ActivityCategory(category)
		if !c.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		filter = &c
	}

	if items, ok := s.activities.Get(category); ok {
		return items, nil
	}
	items, err := s.repo.ListActivities(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Activity{}
	}
	s.activities.Set(category, items, listingTTL)
	return items, nil
}

func (s *Service) GetActivity(ctx context.Context, id snowflake.ID) (*domain.Activity, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindActivityByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrActivityNotFound
	}
	return item, nil
}

func (s *Service) CreateActivity(ctx context.Context, req domain.CreateActivityRequest) (*domain.Activity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	category := domain.ActivityCategory(normalizeKey(req.Category))
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	frequency := domain.Frequency(normalizeKey(req.Frequency))
	if !frequency.Valid() {
		return nil, domain.ErrInvalidFrequency
	}
	if req.PointsValue <= 0 {
		return nil, domain.ErrInvalidPoints
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	item := &domain.Activity{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: trimmedPtr(req.Description),
		Category:    category,
		PointsValue: req.PointsValue,
		Frequency:   frequency,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertActivity(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.activities.Purge()
	s.audit(ctx, "catalog.activity_created", "activity", item.ID, map[string]any{
		"points_value": item.PointsValue,
		"frequency":    string(item.Frequency),
	})
	return item, nil
}

func (s *Service) UpdateActivity(ctx context.Context, id snowflake.ID, req domain.UpdateActivityRequest) (*domain.Activity, error) {
	item, err := s.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}
	if req.PointsValue != nil {
		if *req.PointsValue <= 0 {
			return nil, domain.ErrInvalidPoints
		}
		item.PointsValue = *req.PointsValue
	}
	if req.Frequency != nil {
		frequency := domain.Frequency(normalizeKey(*req.Frequency))
		if !frequency.Valid() {
			return nil, domain.ErrInvalidFrequency
		}
		item.Frequency = frequency
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateActivity(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.activities.Purge()
	s.audit(ctx, "catalog.activity_updated", "activity", item.ID, map[string]any{
		"points_value": item.PointsValue,
		"active":       item.Active,
	})
	return item, nil
}

func (s *Service) ListAchievements(ctx context.Context, category string) ([]domain.Achievement, error) {
	var filter *domain.AchievementCategory
	if category = normalizeKey(category); category != "" {
		c := domain.AchievementCategory(category)
		if !c.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		filter = &c
	}

	if items, ok := s.achievements.Get(category); ok {
		return items, nil
	}
	items, err := s.repo.ListAchievements(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Achievement{}
	}
	s.achievements.Set(category, items, listingTTL)
	return items, nil
}

func (s *Service) CreateAchievement(ctx context.Context, req domain.CreateAchievementRequest) (*domain.Achievement, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Level < domain.MinAchievementLevel || req.Level > domain.MaxAchievementLevel {
		return nil, domain.ErrInvalidLevel
	}
	if req.PointsRequired < 0 {
		return nil, domain.ErrInvalidPoints
	}
	category := domain.AchievementCategory(normalizeKey(req.Category))
	if category == "" {
		category = domain.AchievementCategoryGeneral
	}
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	item := &domain.Achievement{
		ID:             s.genID.Generate(),
		Name:           name,
		Description:    trimmedPtr(req.Description),
		Level:          req.Level,
		PointsRequired: req.PointsRequired,
		Category:       category,
		Active:         active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertAchievement(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.achievements.Purge()
	s.audit(ctx, "catalog.achievement_created", "achievement", item.ID, map[string]any{
		"level":           item.Level,
		"points_required": item.PointsRequired,
	})
	return item, nil
}

func (s *Service) ListRewards(ctx context.Context, category string) ([]domain.Reward, error) {
	var filter *domain.RewardCategory
	if category = normalizeKey(category); category != "" {
		c := domain.RewardCategory(category)
		if !c.Valid() {
			return nil, domain.ErrInvalidCategory
		}
		filter = &c
	}

	if items, ok := s.rewards.Get(category); ok {
		return items, nil
	}
	items, err := s.repo.ListRewards(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Reward{}
	}
	// Inventory moves with every redemption, so listings stay fresh for a short window only.
	s.rewards.Set(category, items, listingTTL/6)
	return items, nil
}

func (s *Service) GetReward(ctx context.Context, id snowflake.ID) (*domain.Reward, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindRewardByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrRewardNotFound
	}
	return item, nil
}

func (s *Service) CreateReward(ctx context.Context, req domain.CreateRewardRequest) (*domain.Reward, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	category := domain.RewardCategory(normalizeKey(req.Category))
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if req.PointsCost <= 0 {
		return nil, domain.ErrInvalidPoints
	}
	if req.Inventory != nil && *req.Inventory < 0 {
		return nil, domain.ErrInvalidInventory
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	item := &domain.Reward{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: trimmedPtr(req.Description),
		Category:    category,
		PointsCost:  req.PointsCost,
		Inventory:   req.Inventory,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertReward(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.invalidateRewards()
	s.audit(ctx, "catalog.reward_created", "reward", item.ID, map[string]any{
		"points_cost": item.PointsCost,
		"category":    string(item.Category),
	})
	return item, nil
}

func (s *Service) UpdateReward(ctx context.Context, id snowflake.ID, req domain.UpdateRewardRequest) (*domain.Reward, error) {
	item, err := s.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}
	if req.PointsCost != nil {
		if *req.PointsCost <= 0 {
			return nil, domain.ErrInvalidPoints
		}
		item.PointsCost = *req.PointsCost
	}
	switch {
	case req.Unlimited && req.Inventory != nil:
		return nil, domain.ErrInvalidInventory
	case req.Unlimited:
		item.Inventory = nil
	case req.Inventory != nil:
		if *req.Inventory < 0 {
			return nil, domain.ErrInvalidInventory
		}
		inventory := *req.Inventory
		item.Inventory = &inventory
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateReward(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.invalidateRewards()
	s.audit(ctx, "catalog.reward_updated", "reward", item.ID, map[string]any{
		"points_cost": item.PointsCost,
		"active":      item.Active,
	})
	return item, nil
}

// invalidateRewards drops cached reward listings after catalog edits.
func (s *Service) invalidateRewards() {
	s.rewards.Purge()
}

func (s *Service) audit(ctx context.Context, action, targetType string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, targetType, &targetID, metadata); err != nil {
		s.log.Warn("failed to write catalog audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
