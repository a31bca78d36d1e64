package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/internal/test"
	"github.com/hellofresh/goengine-core/retry"
)

func TestNewRetrier(t *testing.T) {
	t.Run("invalid arguments", func(t *testing.T) {
		testCases := []struct {
			title         string
			backoff       retry.Backoff
			expectedError error
		}{
			{
				"negative min",
				retry.Backoff{Min: -time.Second, Max: time.Second},
				goengine.InvalidArgumentError("backoff.Min"),
			},
			{
				"max below min",
				retry.Backoff{Min: time.Second, Max: time.Millisecond},
				goengine.InvalidArgumentError("backoff.Max"),
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.title, func(t *testing.T) {
				retrier, err := retry.NewRetrier(testCase.backoff, nil, nil)

				assert.Equal(t, testCase.expectedError, err)
				assert.Nil(t, retrier)
			})
		}
	})

	t.Run("zero backoff uses the default", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{}, nil, nil)

		require.NoError(t, err)
		assert.NotNil(t, retrier)
	})
}

type retryMetrics struct {
	goengine.Metrics
	operations []string
}

func (m *retryMetrics) RetryAttempted(operation string) {
	m.operations = append(m.operations, operation)
}

func TestRetrier_Do(t *testing.T) {
	t.Run("retries until the action succeeds", func(t *testing.T) {
		logger, loggerHook := test.NewLogger()
		metrics := &retryMetrics{Metrics: goengine.NopMetrics}
		retrier, err := retry.NewRetrier(retry.Backoff{Min: time.Second, Max: 4 * time.Second}, logger, metrics)
		require.NoError(t, err)

		var delays []time.Duration
		retrier.WithWaitFn(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		})

		var attempts int
		err = retrier.Do(context.Background(), "dispatch", func(ctx context.Context) error {
			attempts++
			if attempts < 5 {
				return errors.New("unavailable")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 5, attempts)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, delays)
		assert.Equal(t, []string{"dispatch", "dispatch", "dispatch", "dispatch"}, metrics.operations)

		entries := loggerHook.AllEntries()
		require.Len(t, entries, 4)
		assert.Equal(t, "operation failed, retrying", entries[0].Message)
		assert.Equal(t, "dispatch", entries[0].Data["operation"])
		assert.Equal(t, 1, entries[0].Data["attempt"])
	})

	t.Run("a permanent error stops the retries", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{}, nil, nil)
		require.NoError(t, err)

		expectedErr := errors.New("gap")
		var attempts int
		err = retrier.Do(context.Background(), "advance", func(ctx context.Context) error {
			attempts++
			return retry.Permanent(expectedErr)
		})

		assert.Equal(t, expectedErr, err)
		assert.Equal(t, 1, attempts)
		assert.Nil(t, retry.Permanent(nil))
	})

	t.Run("a done context stops the retries", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{Min: time.Millisecond, Max: time.Millisecond}, nil, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		var attempts int
		err = retrier.Do(ctx, "dispatch", func(ctx context.Context) error {
			attempts++
			if attempts == 3 {
				cancel()
			}
			return errors.New("unavailable")
		})

		assert.Equal(t, context.Canceled, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("a failed wait stops the retries", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{Min: time.Second, Max: time.Second}, nil, nil)
		require.NoError(t, err)

		expectedErr := errors.New("wait aborted")
		retrier.WithWaitFn(func(ctx context.Context, d time.Duration) error {
			return expectedErr
		})

		var attempts int
		err = retrier.Do(context.Background(), "dispatch", func(ctx context.Context) error {
			attempts++
			return errors.New("unavailable")
		})

		assert.Equal(t, expectedErr, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("a done context is not attempted", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{}, nil, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = retrier.Do(ctx, "dispatch", func(ctx context.Context) error {
			t.Error("action should not be called")
			return nil
		})

		assert.Equal(t, context.Canceled, err)
	})

	t.Run("a cancelled wait stops the retries", func(t *testing.T) {
		retrier, err := retry.NewRetrier(retry.Backoff{Min: time.Hour, Max: time.Hour}, nil, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err = retrier.Do(ctx, "dispatch", func(ctx context.Context) error {
			return errors.New("unavailable")
		})

		assert.Equal(t, context.DeadlineExceeded, err)
	})
}
