package points

import (
	"github.com/smallbiznis/carepoints/internal/points/repository"
	"github.com/smallbiznis/carepoints/internal/points/service"
	"go.uber.org/fx"
)

var Module = fx.Module("points.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewLedger),
	fx.Provide(service.New),
)
