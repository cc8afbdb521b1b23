package activity

import (
	"github.com/smallbiznis/carepoints/internal/activity/domain"
	"github.com/smallbiznis/carepoints/internal/activity/repository"
	"github.com/smallbiznis/carepoints/internal/activity/service"
	"github.com/smallbiznis/carepoints/internal/streak"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(repo domain.Repository) streak.RecordFinder { return repo }),
	fx.Provide(service.New),
)
