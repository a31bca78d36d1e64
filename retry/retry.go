package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hellofresh/goengine-core"
)

// DefaultBackoff is used when a zero Backoff is provided
var DefaultBackoff = Backoff{Min: 100 * time.Millisecond, Max: 10 * time.Second}

type (
	// Backoff describes the exponential delay between two attempts
	Backoff struct {
		Min time.Duration
		Max time.Duration
	}

	// Action is an operation that is retried until it returns nil
	Action func(ctx context.Context) error

	// Retrier executes actions until they succeed, the error is permanent or the context is done
	Retrier struct {
		backoff Backoff
		logger  goengine.Logger
		metrics goengine.Metrics
		waitFn  func(ctx context.Context, d time.Duration) error
	}

	permanentError struct {
		error
	}

	// waitTimer adapts a wait function to backoff.Timer
	waitTimer struct {
		ctx    context.Context
		waitFn func(ctx context.Context, d time.Duration) error
		c      chan time.Time
		errs   chan error
		cancel context.CancelFunc
	}
)

// NewRetrier returns a new Retrier
func NewRetrier(backoff Backoff, logger goengine.Logger, metrics goengine.Metrics) (*Retrier, error) {
	if backoff == (Backoff{}) {
		backoff = DefaultBackoff
	}

	switch {
	case backoff.Min <= 0:
		return nil, goengine.InvalidArgumentError("backoff.Min")
	case backoff.Max < backoff.Min:
		return nil, goengine.InvalidArgumentError("backoff.Max")
	}

	if logger == nil {
		logger = goengine.NopLogger
	}
	if metrics == nil {
		metrics = goengine.NopMetrics
	}

	return &Retrier{
		backoff: backoff,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// WithWaitFn replaces the default timer used to wait between attempts
func (r *Retrier) WithWaitFn(fn func(ctx context.Context, d time.Duration) error) {
	r.waitFn = fn
}

// Do calls the action until it succeeds.
// There is no limit on the number of attempts, Do only returns early when the context is done
// or when the action returned an error wrapped by Permanent.
func (r *Retrier) Do(ctx context.Context, operation string, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var attempt int
	op := func() error {
		attempt++
		err := action(ctx)

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return backoff.Permanent(permanent.error)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		r.logger.Warn("operation failed, retrying", func(e goengine.LoggerEntry) {
			e.Error(err)
			e.String("operation", operation)
			e.Int("attempt", attempt)
			e.String("retry_in", delay.String())
		})
		r.metrics.RetryAttempted(operation)
	}

	var (
		timer   backoff.Timer
		waiting *waitTimer
	)
	if r.waitFn != nil {
		waiting = &waitTimer{
			ctx:    ctx,
			waitFn: r.waitFn,
			c:      make(chan time.Time),
			errs:   make(chan error, 1),
			cancel: cancel,
		}
		timer = waiting
	}

	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(r.backoff.exponential(), ctx), notify, timer)
	if waiting != nil {
		select {
		case waitErr := <-waiting.errs:
			return waitErr
		default:
		}
	}

	return err
}

func (b Backoff) exponential() *backoff.ExponentialBackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     b.Min,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         b.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	return exp
}

// Permanent wraps an error so that Retrier.Do stops and returns it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

func (p *permanentError) Unwrap() error {
	return p.error
}

func (t *waitTimer) Start(d time.Duration) {
	go func() {
		if err := t.waitFn(t.ctx, d); err != nil {
			select {
			case t.errs <- err:
			default:
			}
			t.cancel()
			return
		}

		select {
		case t.c <- time.Now():
		case <-t.ctx.Done():
		}
	}()
}

func (t *waitTimer) Stop() {}

func (t *waitTimer) C() <-chan time.Time {
	return t.c
}
