package streak

import "go.uber.org/fx"

var Module = fx.Module("streak.calculator",
	fx.Provide(New),
)
