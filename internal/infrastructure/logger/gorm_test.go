package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func batchQuery() (string, int64) {
	return `SELECT * FROM "billing_batches" WHERE status = 'processing'`, 3
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog, _ := observedGormLogger(gormlogger.Info)

	clone := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	cloned, ok := clone.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, cloned.logLevel)
}

func TestGormLogger_Levels(t *testing.T) {
	t.Run("messages pass at or above the configured level", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn)

		gormLog.Warn(context.Background(), "connection pool at %d", 95)
		gormLog.Error(context.Background(), "statement failed")

		require.Len(t, recorded.All(), 2)
		assert.Contains(t, recorded.All()[0].Message, "connection pool at 95")
	})

	t.Run("info is suppressed below the info level", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn)

		gormLog.Info(context.Background(), "migration step applied")

		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("failed statements are logged as errors", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), batchQuery, errors.New("deadlock detected"))

		entries := recorded.FilterMessage("SQL Error").All()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].ContextMap()["sql"], "billing_batches")
	})

	t.Run("record not found is never logged", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Error)

		gormLog.Trace(context.Background(), time.Now(), batchQuery, gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("slow statements are logged as warnings", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn)

		begin := time.Now().Add(-time.Second)
		gormLog.Trace(context.Background(), begin, batchQuery, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Message, "SLOW SQL")
	})

	t.Run("ordinary statements are logged at debug in info mode", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Info)

		gormLog.Trace(context.Background(), time.Now(), batchQuery, nil)

		entries := recorded.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	})

	t.Run("silent mode logs nothing", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Silent)

		gormLog.Trace(context.Background(), time.Now(), batchQuery, nil)

		assert.Empty(t, recorded.All())
	})

	t.Run("the request id travels from context into the entry", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-77")

		gormLog.Trace(ctx, time.Now(), batchQuery, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-77", entries[0].ContextMap()["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	gormLog, _ := observedGormLogger(gormlogger.Info)
	var _ gormlogger.Interface = gormLog
}
