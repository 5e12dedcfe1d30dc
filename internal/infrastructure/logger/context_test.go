package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	ctx := WithContext(context.Background(), log)

	FromContext(ctx).Info("batch populated")
	assert.Len(t, recorded.All(), 1)
}

func TestFromContext(t *testing.T) {
	t.Run("missing logger yields a no-op", func(t *testing.T) {
		log := FromContext(context.Background())

		assert.NotNil(t, log)
		assert.NotPanics(t, func() {
			log.Info("dropped")
		})
	})

	t.Run("wrong value type yields a no-op", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")

		assert.NotPanics(t, func() {
			FromContext(ctx).Info("dropped")
		})
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), log, "req-batch-9")

	assert.Equal(t, "req-batch-9", GetRequestID(ctx))

	// The enriched logger is the one stored on the context and it carries
	// the request id on every entry.
	FromContext(ctx).Info("transaction created")
	enriched.Info("invoice updated")

	entries := recorded.All()
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "req-batch-9", entry.ContextMap()["request_id"])
	}
}

func TestWithRequestID_LatestWins(t *testing.T) {
	log := zap.NewNop()

	ctx, _ := WithRequestID(context.Background(), log, "first")
	ctx, _ = WithRequestID(ctx, log, "second")

	assert.Equal(t, "second", GetRequestID(ctx))
}

func TestGetRequestID_Absent(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
