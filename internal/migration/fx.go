package migration

import (
	"context"

	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.Bootstrap.RunMigrations {
			if err := Migrate(conn); err != nil {
				return err
			}
		}
		if !cfg.Bootstrap.SeedCatalog {
			return nil
		}
		counts, err := seed.EnsureCatalog(context.Background(), conn, cfg.Bootstrap.CatalogPath)
		if err != nil {
			return err
		}
		log.Named("migrations").Info("catalog seeded",
			zap.Int("activities", counts.Activities),
			zap.Int("achievements", counts.Achievements),
			zap.Int("rewards", counts.Rewards),
		)
		return nil
	}),
)
