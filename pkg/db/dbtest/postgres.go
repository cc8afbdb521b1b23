package dbtest

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv names a key=value Postgres DSN for integration tests.
const PostgresDSNEnv = "CAREPOINTS_TEST_POSTGRES_DSN"

// OpenPostgres migrates models into a fresh schema on the database named by
// PostgresDSNEnv and drops it when the test ends. Unlike Open it uses a real
// connection pool, so row locks and conflicting writers are exercised. The
// test is skipped when the variable is unset.
func OpenPostgres(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	schema := strings.ToLower(fmt.Sprintf("t_%s_%d", unsafeDSN.ReplaceAllString(t.Name(), "_"), seq.Add(1)))
	if len(schema) > 63 {
		schema = schema[len(schema)-63:]
	}
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	admin, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := admin.Exec(`CREATE SCHEMA "` + schema + `"`).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	conn, err := gorm.Open(postgres.Open(dsn+" search_path="+schema), cfg)
	if err != nil {
		t.Fatalf("open postgres schema: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)

	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec(`DROP SCHEMA "` + schema + `" CASCADE`).Error
		if adminDB, err := admin.DB(); err == nil {
			_ = adminDB.Close()
		}
	})

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return conn
}
