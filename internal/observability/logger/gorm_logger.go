package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type QueryLogConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// QueryLogger routes gorm output through zap with the caller's request and
// user fields, so a slow ledger write can be traced back to the member.
type QueryLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewQueryLogger(base *zap.Logger, cfg QueryLogConfig) *QueryLogger {
	if base == nil {
		base = zap.L()
	}
	return &QueryLogger{
		base:  base.Named("gorm"),
		level: cfg.Level,
		slow:  cfg.SlowThreshold,
	}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	if ce := WithContext(ctx, l.base).Check(level, msg); ce != nil {
		ce.Write(zap.Any("data", data))
	}
}

// Trace reports failed and slow statements. Missing rows and unique
// violations are normal outcomes here (unknown activity, duplicate seed,
// concurrent account creation) and callers map them to API errors, so they
// are only logged at debug.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !expectedQueryError(err) && l.level >= gormlogger.Error:
		l.statement(ctx, zapcore.ErrorLevel, fc, elapsed, err)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		l.statement(ctx, zapcore.WarnLevel, fc, elapsed, err)
	case l.level >= gormlogger.Info:
		l.statement(ctx, zapcore.DebugLevel, fc, elapsed, err)
	}
}

// ParamsFilter drops bound values. They carry member notes, proof links and
// redemption codes.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) statement(ctx context.Context, level zapcore.Level, fc func() (string, int64), elapsed time.Duration, err error) {
	ce := WithContext(ctx, l.base).Check(level, "gorm.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	op, table := describeSQL(sql)
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", op),
		zap.String("table", table),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func expectedQueryError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// describeSQL returns the statement verb and the first table it names.
func describeSQL(sql string) (string, string) {
	tokens := strings.Fields(sql)
	op, table := "UNKNOWN", ""
	for i, token := range tokens {
		upper := strings.ToUpper(strings.Trim(token, "();"))
		switch upper {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if op == "UNKNOWN" {
				op = upper
			}
			if upper == "UPDATE" && table == "" && i+1 < len(tokens) {
				table = tableName(tokens[i+1])
			}
		case "FROM", "INTO":
			if table == "" && i+1 < len(tokens) {
				table = tableName(tokens[i+1])
			}
		}
	}
	return op, table
}

func tableName(token string) string {
	token = strings.Trim(token, "`\"'();")
	if idx := strings.LastIndex(token, "."); idx >= 0 {
		token = token[idx+1:]
	}
	return strings.Trim(token, "`\"")
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
