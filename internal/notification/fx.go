package notification

import (
	"github.com/smallbiznis/carepoints/internal/liveevents"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(liveevents.NewHub),
	fx.Provide(
		fx.Annotate(NewLiveSink, fx.As(new(Sink)), fx.ResultTags(`group:"notification.sinks"`)),
		fx.Annotate(NewAuditSink, fx.As(new(Sink)), fx.ResultTags(`group:"notification.sinks"`)),
	),
	fx.Provide(NewDispatcher),
	fx.Provide(func(d *Dispatcher) Publisher { return d }),
)
