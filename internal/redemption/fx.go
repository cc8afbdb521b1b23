package redemption

import (
	"github.com/smallbiznis/carepoints/internal/redemption/repository"
	"github.com/smallbiznis/carepoints/internal/redemption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("redemption.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
