package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/audit"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/notification"
	"github.com/smallbiznis/carepoints/internal/observability"
	"github.com/smallbiznis/carepoints/internal/points"
	"github.com/smallbiznis/carepoints/internal/ratelimit"
	"github.com/smallbiznis/carepoints/internal/redemption"
	"github.com/smallbiznis/carepoints/internal/scheduler"
	"github.com/smallbiznis/carepoints/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the expiry sweep
		audit.Module,
		notification.Module,
		points.Module,
		redemption.Module,

		// Redis lock shared with API instances running the sweep
		ratelimit.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
