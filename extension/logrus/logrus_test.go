package logrus_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellofresh/goengine-core"
	logrusExtension "github.com/hellofresh/goengine-core/extension/logrus"
)

type commandPayload struct {
	Sku      string
	Quantity int
}

func TestWrap(t *testing.T) {
	logrusLogger, hook := test.NewNullLogger()
	logrusLogger.SetLevel(logrus.DebugLevel)
	logger := logrusExtension.Wrap(logrusLogger)

	testCases := []struct {
		title         string
		log           func(msg string, fields func(goengine.LoggerEntry))
		expectedLevel logrus.Level
	}{
		{"error", logger.Error, logrus.ErrorLevel},
		{"warn", logger.Warn, logrus.WarnLevel},
		{"info", logger.Info, logrus.InfoLevel},
		{"debug", logger.Debug, logrus.DebugLevel},
	}

	for _, testCase := range testCases {
		t.Run(testCase.title, func(t *testing.T) {
			defer hook.Reset()

			dispatchErr := errors.New("subscriber unavailable")
			testCase.log("event stream dispatched", func(e goengine.LoggerEntry) {
				e.String("aggregate_id", "order-1")
				e.Int("attempt", 3)
				e.Int64("version", 42)
				e.Error(dispatchErr)
				e.Any("payload", commandPayload{Sku: "box-1", Quantity: 2})
			})

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, testCase.expectedLevel, entry.Level)
			assert.Equal(t, "event stream dispatched", entry.Message)
			assert.Equal(t, logrus.Fields{
				"aggregate_id":  "order-1",
				"attempt":       3,
				"version":       int64(42),
				logrus.ErrorKey: dispatchErr,
				"payload":       commandPayload{Sku: "box-1", Quantity: 2},
			}, entry.Data)
		})
	}

	t.Run("nil fields", func(t *testing.T) {
		defer hook.Reset()

		logger.Info("mailbox created", nil)

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, "mailbox created", entry.Message)
		assert.Empty(t, entry.Data)
	})

	t.Run("disabled levels do not collect fields", func(t *testing.T) {
		defer hook.Reset()
		logrusLogger.SetLevel(logrus.WarnLevel)
		defer logrusLogger.SetLevel(logrus.DebugLevel)

		logger.Debug("removed inactive mailbox", func(e goengine.LoggerEntry) {
			t.Error("fields of a disabled level should not be collected")
		})
		logger.Info("created mailbox", func(e goengine.LoggerEntry) {
			t.Error("fields of a disabled level should not be collected")
		})

		assert.Empty(t, hook.AllEntries())
	})
}

func TestWrapper_WithFields(t *testing.T) {
	logrusLogger, hook := test.NewNullLogger()
	logrusLogger.SetLevel(logrus.DebugLevel)
	logger := logrusExtension.Wrap(logrusLogger)

	t.Run("fields are inherited and can be overridden", func(t *testing.T) {
		defer hook.Reset()

		subscriberLogger := logger.WithFields(func(e goengine.LoggerEntry) {
			e.String("subscriber", "projector")
			e.Int64("checkpoint", 7)
		})
		mailboxLogger := subscriberLogger.WithFields(func(e goengine.LoggerEntry) {
			e.String("aggregate_id", "order-1")
		})

		mailboxLogger.Warn("waiting list stalled", func(e goengine.LoggerEntry) {
			e.Int64("checkpoint", 9)
		})
		subscriberLogger.Info("subscriber started", nil)

		entries := hook.AllEntries()
		require.Len(t, entries, 2)
		assert.Equal(t, logrus.Fields{
			"subscriber":   "projector",
			"aggregate_id": "order-1",
			"checkpoint":   int64(9),
		}, entries[0].Data)
		assert.Equal(t, logrus.Fields{
			"subscriber": "projector",
			"checkpoint": int64(7),
		}, entries[1].Data)
	})

	t.Run("nil fields return the same logger", func(t *testing.T) {
		assert.Same(t, logger, logger.WithFields(nil))
	})
}

func TestWrapEntry(t *testing.T) {
	logrusLogger, hook := test.NewNullLogger()
	logger := logrusExtension.WrapEntry(logrusLogger.WithField("component", "command-processor"))

	logger.Error("command handler failed", func(e goengine.LoggerEntry) {
		e.String("command_id", "cmd-1")
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, logrus.Fields{
		"component":  "command-processor",
		"command_id": "cmd-1",
	}, entry.Data)
}
