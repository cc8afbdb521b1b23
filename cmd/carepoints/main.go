package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/migration"
	"github.com/smallbiznis/carepoints/internal/observability"
	"github.com/smallbiznis/carepoints/internal/scheduler"
	"github.com/smallbiznis/carepoints/internal/server"
	"github.com/smallbiznis/carepoints/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domain services behind it
		server.Module,

		// Reward expiry sweeper; SCHEDULER_ENABLED=false when a dedicated
		// carepoints-scheduler process runs it instead.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
