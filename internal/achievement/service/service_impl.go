package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/achievement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("achievement.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListUserAchievements(ctx context.Context, userID snowflake.ID) ([]domain.UnlockedAchievement, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	items, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.UnlockedAchievement{}
	}
	return items, nil
}
