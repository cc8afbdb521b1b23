package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/carepoints/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedQueryLogger(level gormlogger.LogLevel) (*QueryLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewQueryLogger(zap.New(core), QueryLogConfig{Level: level, SlowThreshold: 100 * time.Millisecond}), logs
}

func statement(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestTraceLogsFailureWithMemberAndTable(t *testing.T) {
	l, logs := newObservedQueryLogger(gormlogger.Warn)
	ctx := usercontext.WithUserID(context.Background(), 42)

	l.Trace(ctx, time.Now(), statement(`UPDATE "points_accounts" SET "available_points"=$1 WHERE user_id = $2`), errors.New("connection reset"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "gorm", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "42", fields["actor_id"])
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, "points_accounts", fields["table"])
}

func TestTraceTreatsMissingRowsAndDuplicatesAsExpected(t *testing.T) {
	l, logs := newObservedQueryLogger(gormlogger.Warn)

	l.Trace(context.Background(), time.Now(), statement("SELECT * FROM activities WHERE id = ?"), gorm.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), statement("INSERT INTO points_accounts (user_id) VALUES (?)"), fmt.Errorf("create account: %w", gorm.ErrDuplicatedKey))

	assert.Zero(t, logs.Len())
}

func TestTraceReportsSlowStatements(t *testing.T) {
	l, logs := newObservedQueryLogger(gormlogger.Warn)

	l.Trace(context.Background(), time.Now().Add(-time.Second), statement("INSERT INTO `points_transactions` (`id`) VALUES (?)"), nil)
	l.Trace(context.Background(), time.Now(), statement("SELECT 1"), nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "points_transactions", entry.ContextMap()["table"])
}

func TestLogModeSilencesTrace(t *testing.T) {
	l, logs := newObservedQueryLogger(gormlogger.Warn)

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), statement("SELECT 1"), errors.New("boom"))
	l.Warn(context.Background(), "slow migration")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slow migration", logs.All()[0].Message)
}

func TestDescribeSQL(t *testing.T) {
	cases := map[string][2]string{
		`SELECT count(*) FROM "activity_records" WHERE user_id = $1`: {"SELECT", "activity_records"},
		"INSERT INTO user_rewards (id) VALUES (?)":                   {"INSERT", "user_rewards"},
		"DELETE FROM public.user_achievements":                       {"DELETE", "user_achievements"},
		"":                                                           {"UNKNOWN", ""},
	}
	for sql, want := range cases {
		op, table := describeSQL(sql)
		assert.Equal(t, want[0], op, sql)
		assert.Equal(t, want[1], table, sql)
	}
}
