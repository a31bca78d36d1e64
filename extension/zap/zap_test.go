package zap_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hellofresh/goengine-core"
	zapExtension "github.com/hellofresh/goengine-core/extension/zap"
)

func TestWrap_LogEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zapExtension.Wrap(zap.New(core))

	logger.Error("error", func(e goengine.LoggerEntry) {
		e.String("test", "a value")
		e.Int("normal_int", 99)
		e.Int64("int_64", 2)
		e.Error(errors.New("some error"))
	})
	logger.Warn("warn", nil)
	logger.Info("info", nil)
	logger.Debug("debug", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, map[string]interface{}{
		"test":       "a value",
		"normal_int": int64(99),
		"int_64":     int64(2),
		"error":      "some error",
	}, entries[0].ContextMap())

	levels := []zapcore.Level{zapcore.WarnLevel, zapcore.InfoLevel, zapcore.DebugLevel}
	for i, level := range levels {
		assert.Equal(t, level, entries[i+1].Level)
		assert.Empty(t, entries[i+1].Context)
	}
}

func TestWrap_DisabledLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zapExtension.Wrap(zap.New(core))

	logger.Debug("should not be logged", func(e goengine.LoggerEntry) {
		t.Error("fields should not be called")
	})

	assert.Equal(t, 0, logs.Len())
}

func TestWrapper_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zapExtension.Wrap(zap.New(core))

	loggerWithFields := logger.WithFields(func(e goengine.LoggerEntry) {
		e.String("with field", "check")
	})
	loggerWithFields.Info("test", func(e goengine.LoggerEntry) {
		e.Any("obj", "any value")
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "check", entries[0].ContextMap()["with field"])
	assert.Equal(t, "any value", entries[0].ContextMap()["obj"])

	assert.Equal(t, logger, logger.WithFields(nil))
}

func BenchmarkStandardLoggerEntry(b *testing.B) {
	b.ReportAllocs()

	logger := zapExtension.Wrap(zap.NewNop())

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		logger.Debug("test", func(e goengine.LoggerEntry) {
			e.Int("i", n)
		})
	}
}
