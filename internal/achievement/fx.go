package achievement

import (
	"github.com/smallbiznis/carepoints/internal/achievement/repository"
	"github.com/smallbiznis/carepoints/internal/achievement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("achievement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewEvaluator),
	fx.Provide(service.New),
)
