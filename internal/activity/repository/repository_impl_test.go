package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/carepoints/internal/activity/domain"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// openMySQLDryRun builds statements for MySQL without a server and records
// the SQL of every query.
func openMySQLDryRun(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	conn, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "carepoints:secret@tcp(127.0.0.1:3306)/carepoints?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, conn.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))
	return conn, &statements
}

func TestWindowChecksAreLockingReadsOnMySQL(t *testing.T) {
	conn, statements := openMySQLDryRun(t)
	repo := Provide()
	ctx := context.Background()
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	_, err := repo.ExistsInWindow(ctx, conn, 42, 7, &from, &to)
	require.NoError(t, err)
	_, err = repo.HasRecordBetween(ctx, conn, 42, from, to, 99)
	require.NoError(t, err)

	require.Len(t, *statements, 2)
	for _, sql := range *statements {
		assert.Contains(t, sql, "activity_records")
		assert.Contains(t, sql, "LIMIT 1")
		assert.Contains(t, sql, "FOR SHARE")
	}
}

func TestExistsInWindow(t *testing.T) {
	conn := dbtest.Open(t, &domain.ActivityRecord{})
	repo := Provide()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, conn, &domain.ActivityRecord{
		ID:                 1,
		UserID:             42,
		ActivityID:         7,
		CompletedAt:        at,
		PointsEarned:       15,
		VerificationStatus: domain.VerificationStatusPending,
	}))

	dayStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	found, err := repo.ExistsInWindow(ctx, conn, 42, 7, &dayStart, &dayEnd)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsInWindow(ctx, conn, 42, 8, &dayStart, &dayEnd)
	require.NoError(t, err)
	assert.False(t, found)

	nextDay := dayEnd.AddDate(0, 0, 1)
	found, err = repo.ExistsInWindow(ctx, conn, 42, 7, &dayEnd, &nextDay)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsInWindow(ctx, conn, 42, 7, nil, nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestHasRecordBetweenExcludesCurrentRecord(t *testing.T) {
	conn := dbtest.Open(t, &domain.ActivityRecord{})
	repo := Provide()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, conn, &domain.ActivityRecord{
		ID:                 5,
		UserID:             42,
		ActivityID:         7,
		CompletedAt:        now,
		PointsEarned:       15,
		VerificationStatus: domain.VerificationStatusPending,
	}))

	found, err := repo.HasRecordBetween(ctx, conn, 42, now.Add(-24*time.Hour), now, 5)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Insert(ctx, conn, &domain.ActivityRecord{
		ID:                 6,
		UserID:             42,
		ActivityID:         9,
		CompletedAt:        now.Add(-20 * time.Hour),
		PointsEarned:       10,
		VerificationStatus: domain.VerificationStatusPending,
	}))

	found, err = repo.HasRecordBetween(ctx, conn, 42, now.Add(-24*time.Hour), now, 5)
	require.NoError(t, err)
	assert.True(t, found)
}
