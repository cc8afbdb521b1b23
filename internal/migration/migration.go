package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	activitydomain "github.com/smallbiznis/carepoints/internal/activity/domain"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.Activity{},
		&catalogdomain.Achievement{},
		&catalogdomain.Reward{},
		&pointsdomain.PointsAccount{},
		&pointsdomain.PointsTransaction{},
		&activitydomain.ActivityRecord{},
		&achievementdomain.UserAchievement{},
		&redemptiondomain.UserReward{},
		&auditdomain.AuditLog{},
	}
}

// Migrate applies the versioned SQL migrations on postgres. Other dialects
// (sqlite for local runs, mysql) fall back to gorm's AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
