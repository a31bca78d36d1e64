package eventing

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/checkpoint"
	"github.com/hellofresh/goengine-core/internal/registry"
	"github.com/hellofresh/goengine-core/retry"
)

const (
	// DefaultBatchSize is the maximum number of events handled by a single mailbox run
	DefaultBatchSize = 1000
	// DefaultIdleTimeout is the inactivity after which a mailbox is removed
	DefaultIdleTimeout = time.Hour
	// DefaultScanInterval is the interval of the mailbox sweep
	DefaultScanInterval = time.Minute
	// DefaultWaitingRefreshAfter is the inactivity after which the checkpoint of a mailbox with waiting events is reloaded
	DefaultWaitingRefreshAfter = 30 * time.Second
)

const (
	operationGetCheckpoint     = "get_checkpoint"
	operationDispatch          = "dispatch"
	operationAdvanceCheckpoint = "advance_checkpoint"
)

// Options configure a Processor and it's mailboxes
type Options struct {
	BatchSize           int
	IdleTimeout         time.Duration
	ScanInterval        time.Duration
	WaitingRefreshAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.ScanInterval <= 0 {
		o.ScanInterval = DefaultScanInterval
	}
	if o.WaitingRefreshAfter <= 0 {
		o.WaitingRefreshAfter = DefaultWaitingRefreshAfter
	}
	return o
}

// Processor routes event streams to the Mailbox of their aggregate, dispatches them in version order and advances
// the checkpoint of the subscriber once the dispatch succeeded.
// Dispatch and checkpoint failures are retried until they succeed or the processor is stopped.
type Processor struct {
	name       string
	dispatcher Dispatcher
	store      checkpoint.Store
	observer   CheckpointObserver
	retrier    *retry.Retrier
	options    Options
	logger     goengine.Logger
	metrics    goengine.Metrics

	mailboxes *registry.Registry[*Mailbox]
	bootstrap singleflight.Group

	// ctx is used for the handling of events and is cancelled when the processor is stopped
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
}

// NewProcessor returns a new Processor for the named subscriber
func NewProcessor(
	name string,
	dispatcher Dispatcher,
	store checkpoint.Store,
	retrier *retry.Retrier,
	options Options,
	logger goengine.Logger,
	metrics goengine.Metrics,
) (*Processor, error) {
	switch {
	case name == "":
		return nil, goengine.InvalidArgumentError("name")
	case dispatcher == nil:
		return nil, goengine.InvalidArgumentError("dispatcher")
	case store == nil:
		return nil, goengine.InvalidArgumentError("store")
	}
	if logger == nil {
		logger = goengine.NopLogger
	}
	if metrics == nil {
		metrics = goengine.NopMetrics
	}
	logger = logger.WithFields(func(e goengine.LoggerEntry) {
		e.String("processor", name)
	})

	if retrier == nil {
		var err error
		if retrier, err = retry.NewRetrier(retry.DefaultBackoff, logger, metrics); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		name:       name,
		dispatcher: dispatcher,
		store:      store,
		retrier:    retrier,
		options:    options.withDefaults(),
		logger:     logger,
		metrics:    metrics,
		mailboxes:  registry.New[*Mailbox](),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// WithCheckpointObserver sets the observer that is notified after each advanced checkpoint
func (p *Processor) WithCheckpointObserver(observer CheckpointObserver) {
	p.observer = observer
}

// Name returns the subscriber name the checkpoints are stored under
func (p *Processor) Name() string {
	return p.name
}

// Process routes the event to the mailbox of it's aggregate.
// The mailbox of an aggregate seen for the first time expects the version following the stored checkpoint.
// A Stale event is completed before Process returns.
func (p *Processor) Process(ctx context.Context, evt *ProcessingEvent) (EnqueueResult, error) {
	switch {
	case evt == nil:
		return 0, goengine.InvalidArgumentError("evt")
	case evt.message == nil:
		return 0, goengine.InvalidArgumentError("evt.message")
	case evt.message.AggregateID == "":
		return 0, goengine.InvalidArgumentError("evt.message.AggregateID")
	case evt.message.Version < 1:
		return 0, goengine.InvalidArgumentError("evt.message.Version")
	}

	evt.withContext(p.ctx)
	stream := evt.message

	for {
		mailbox, created, err := p.loadOrCreate(ctx, stream)
		if err != nil {
			return 0, err
		}

		result, err := mailbox.Enqueue(evt)
		if err == ErrMailboxRemoved {
			if created {
				p.logger.Error("enqueue into a newly created mailbox failed", func(e goengine.LoggerEntry) {
					e.String("aggregate_id", string(stream.AggregateID))
				})
			} else {
				p.logger.Debug("mailbox was removed while routing, retrying", func(e goengine.LoggerEntry) {
					e.String("aggregate_id", string(stream.AggregateID))
				})
			}
			continue
		}
		if err != nil {
			return 0, err
		}

		if result == Stale {
			p.logger.Debug("completing stale event stream", func(e goengine.LoggerEntry) {
				e.String("aggregate_id", string(stream.AggregateID))
				e.Int64("version", stream.Version)
			})
			evt.Complete()
		}

		return result, nil
	}
}

// BumpExpectingVersion raises the expected version of the aggregate's mailbox.
// It returns false when the aggregate has no mailbox or the version is not higher than the expected version.
func (p *Processor) BumpExpectingVersion(aggregateID aggregate.ID, version int64) bool {
	mailbox, found := p.mailboxes.Get(aggregateID)
	if !found {
		return false
	}

	return mailbox.BumpExpectingVersion(version)
}

// Mailbox returns the mailbox of the aggregate if it exists
func (p *Processor) Mailbox(id aggregate.ID) (*Mailbox, bool) {
	return p.mailboxes.Get(id)
}

// Len returns the number of live mailboxes
func (p *Processor) Len() int {
	return p.mailboxes.Len()
}

// RemoveInactive removes the mailboxes that have been idle for longer than the IdleTimeout and have nothing queued
func (p *Processor) RemoveInactive() int {
	removed := p.mailboxes.RemoveInactive(p.options.IdleTimeout)
	for _, id := range removed {
		p.metrics.MailboxRemoved(goengine.EventMailbox)
		p.logger.Debug("removed inactive mailbox", func(e goengine.LoggerEntry) {
			e.String("aggregate_id", string(id))
		})
	}

	return len(removed)
}

// RefreshWaiting reloads the checkpoint of the mailboxes that have waiting events but made no progress
// for WaitingRefreshAfter and bumps their expected version when the checkpoint moved on.
func (p *Processor) RefreshWaiting(ctx context.Context) int {
	var bumped int
	p.mailboxes.Range(func(id aggregate.ID, mailbox *Mailbox) bool {
		if ctx.Err() != nil {
			return false
		}
		if !mailbox.IsWaitingStalled(p.options.WaitingRefreshAfter) {
			return true
		}

		key := p.checkpointKey(mailbox.AggregateType(), id)
		version, err := p.store.GetCheckpoint(ctx, key)
		if err != nil {
			p.logger.Warn("failed to reload checkpoint of a stalled mailbox", func(e goengine.LoggerEntry) {
				e.Error(err)
				e.String("aggregate_id", string(id))
			})
			return true
		}

		if mailbox.BumpExpectingVersion(version + 1) {
			bumped++
		}
		return true
	})

	return bumped
}

// Start runs the mailbox sweep in the background and returns a function to stop the processor.
// Stopping cancels any dispatch or checkpoint retry that is in progress.
func (p *Processor) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	p.startOnce.Do(func() {
		g.Go(func() error {
			registry.RunEvery(gctx, p.options.ScanInterval, func() {
				p.RemoveInactive()
				p.RefreshWaiting(gctx)
			})
			return nil
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		p.cancel()
		return nil
	})

	return func() {
		cancel()
		if err := g.Wait(); err != nil {
			p.logger.Error("stopping event processor failed", func(e goengine.LoggerEntry) {
				e.Error(err)
			})
		}
	}
}

func (p *Processor) checkpointKey(aggregateType string, id aggregate.ID) checkpoint.Key {
	return checkpoint.Key{
		Subscriber:    p.name,
		AggregateType: aggregateType,
		AggregateID:   id,
	}
}

type bootstrapResult struct {
	mailbox *Mailbox
	created bool
}

func (p *Processor) loadOrCreate(ctx context.Context, stream *EventStream) (*Mailbox, bool, error) {
	if mailbox, found := p.mailboxes.Get(stream.AggregateID); found {
		return mailbox, false, nil
	}

	// The checkpoint load runs on the processor context so that a caller giving up does not fail the
	// other callers waiting on the same aggregate.
	bootstrap := p.bootstrap.DoChan(string(stream.AggregateID), func() (interface{}, error) {
		if mailbox, found := p.mailboxes.Get(stream.AggregateID); found {
			return bootstrapResult{mailbox: mailbox}, nil
		}

		key := p.checkpointKey(stream.AggregateType, stream.AggregateID)

		var version int64
		err := p.retrier.Do(p.ctx, operationGetCheckpoint, func(ctx context.Context) error {
			var err error
			version, err = p.store.GetCheckpoint(ctx, key)
			return err
		})
		if err != nil {
			return nil, err
		}

		mailbox, err := NewMailbox(
			stream.AggregateID,
			stream.AggregateType,
			version+1,
			p.handle,
			p.options.BatchSize,
			p.logger,
			p.metrics,
		)
		if err != nil {
			return nil, err
		}

		existing, loaded := p.mailboxes.LoadOrStore(stream.AggregateID, mailbox)
		if loaded {
			return bootstrapResult{mailbox: existing}, nil
		}

		p.metrics.MailboxCreated(goengine.EventMailbox)
		p.logger.Debug("created mailbox", func(e goengine.LoggerEntry) {
			e.String("aggregate_id", string(stream.AggregateID))
			e.Int64("checkpoint", version)
		})
		return bootstrapResult{mailbox: mailbox, created: true}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-bootstrap:
		if res.Err != nil {
			return nil, false, res.Err
		}

		result := res.Val.(bootstrapResult)
		return result.mailbox, result.created && !res.Shared, nil
	}
}

// handle dispatches the event stream and advances the checkpoint, retrying both until they succeed
func (p *Processor) handle(ctx context.Context, evt *ProcessingEvent) error {
	stream := evt.Message()

	err := p.retrier.Do(ctx, operationDispatch, func(ctx context.Context) error {
		return p.dispatcher.Dispatch(ctx, stream)
	})
	if err != nil {
		return err
	}

	key := p.checkpointKey(stream.AggregateType, stream.AggregateID)
	err = p.retrier.Do(ctx, operationAdvanceCheckpoint, func(ctx context.Context) error {
		err := p.store.AdvanceCheckpoint(ctx, key, stream.Version)
		if errors.Is(err, checkpoint.ErrVersionGap) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case errors.Is(err, checkpoint.ErrVersionGap):
		p.logger.Error("checkpoint cannot be advanced without skipping a version", func(e goengine.LoggerEntry) {
			e.Error(err)
			e.String("aggregate_id", string(stream.AggregateID))
			e.Int64("version", stream.Version)
		})
	case err != nil:
		return err
	case p.observer != nil:
		if err := p.observer.CheckpointAdvanced(ctx, key, stream.Version); err != nil {
			p.logger.Error("checkpoint observer failed", func(e goengine.LoggerEntry) {
				e.Error(err)
				e.String("aggregate_id", string(stream.AggregateID))
				e.Int64("version", stream.Version)
			})
		}
	}

	evt.Complete()
	return nil
}
