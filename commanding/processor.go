package commanding

import (
	"context"
	"sync"
	"time"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/internal/registry"
)

const (
	// DefaultBatchSize is the maximum number of commands handled by a single mailbox run
	DefaultBatchSize = 1000
	// DefaultIdleTimeout is the inactivity after which a mailbox is removed
	DefaultIdleTimeout = time.Hour
	// DefaultScanInterval is the interval of the inactive mailbox sweep
	DefaultScanInterval = time.Minute
	// DefaultPausePollInterval is the interval at which Pause checks if the active run has finished
	DefaultPausePollInterval = 10 * time.Millisecond
	// DefaultDuplicateCacheSize is the number of command ids a mailbox remembers for duplicate detection
	DefaultDuplicateCacheSize = 10000
)

// Options configure a Processor and it's mailboxes
type Options struct {
	BatchSize          int
	IdleTimeout        time.Duration
	ScanInterval       time.Duration
	PausePollInterval  time.Duration
	DuplicateCacheSize int
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
	if o.PausePollInterval <= 0 {
		o.PausePollInterval = DefaultPausePollInterval
	}
	if o.DuplicateCacheSize <= 0 {
		o.DuplicateCacheSize = DefaultDuplicateCacheSize
	}
	return o
}

// Processor routes commands to the Mailbox of their aggregate.
// Commands of the same aggregate are handled sequentially while different aggregates are handled concurrently.
type Processor struct {
	handler Handler
	options Options
	logger  goengine.Logger
	metrics goengine.Metrics

	mailboxes *registry.Registry[*Mailbox]

	startOnce sync.Once
}

// NewProcessor returns a new Processor
func NewProcessor(handler Handler, options Options, logger goengine.Logger, metrics goengine.Metrics) (*Processor, error) {
	if handler == nil {
		return nil, goengine.InvalidArgumentError("handler")
	}
	if logger == nil {
		logger = goengine.NopLogger
	}
	if metrics == nil {
		metrics = goengine.NopMetrics
	}

	return &Processor{
		handler: handler,
		options: options.withDefaults(),
		logger: logger.WithFields(func(e goengine.LoggerEntry) {
			e.String("processor", "command")
		}),
		metrics:   metrics,
		mailboxes: registry.New[*Mailbox](),
	}, nil
}

// Process enqueues the command in the mailbox of it's aggregate, creating the mailbox when needed.
// The command is handled with a context that carries the values of ctx but is never cancelled.
func (p *Processor) Process(ctx context.Context, cmd *ProcessingCommand) error {
	switch {
	case cmd == nil:
		return goengine.InvalidArgumentError("cmd")
	case cmd.message == nil:
		return goengine.InvalidArgumentError("cmd.message")
	case cmd.message.AggregateID() == "":
		return goengine.InvalidArgumentError("cmd.message.AggregateID")
	}

	cmd.ctx = context.WithoutCancel(ctx)
	aggregateID := cmd.message.AggregateID()

	for {
		mailbox, created, err := p.loadOrCreate(aggregateID)
		if err != nil {
			return err
		}

		err = mailbox.Enqueue(cmd)
		if err == nil {
			return nil
		}
		if err != ErrMailboxRemoved {
			return err
		}

		if created {
			p.logger.Error("enqueue into a newly created mailbox failed", func(e goengine.LoggerEntry) {
				e.String("aggregate_id", string(aggregateID))
			})
		} else {
			p.logger.Debug("mailbox was removed while routing, retrying", func(e goengine.LoggerEntry) {
				e.String("aggregate_id", string(aggregateID))
			})
		}
	}
}

// Mailbox returns the mailbox of the aggregate if it exists
func (p *Processor) Mailbox(id aggregate.ID) (*Mailbox, bool) {
	return p.mailboxes.Get(id)
}

// Len returns the number of live mailboxes
func (p *Processor) Len() int {
	return p.mailboxes.Len()
}

// RemoveInactive removes the mailboxes that have been idle for longer than the IdleTimeout
func (p *Processor) RemoveInactive() int {
	removed := p.mailboxes.RemoveInactive(p.options.IdleTimeout)
	for _, id := range removed {
		p.metrics.MailboxRemoved(goengine.CommandMailbox)
		p.logger.Debug("removed inactive mailbox", func(e goengine.LoggerEntry) {
			e.String("aggregate_id", string(id))
		})
	}

	return len(removed)
}

// Start runs the inactive mailbox sweep in the background and returns a function to stop it.
// The returned function waits for the sweep to finish.
func (p *Processor) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})
	started := false
	p.startOnce.Do(func() {
		started = true
		go func() {
			defer close(done)
			registry.RunEvery(ctx, p.options.ScanInterval, func() {
				p.RemoveInactive()
			})
		}()
	})
	if !started {
		close(done)
	}

	return func() {
		cancel()
		<-done
	}
}

func (p *Processor) loadOrCreate(id aggregate.ID) (*Mailbox, bool, error) {
	if mailbox, found := p.mailboxes.Get(id); found {
		return mailbox, false, nil
	}

	mailbox, err := NewMailbox(id, p.handler, p.options, p.logger, p.metrics)
	if err != nil {
		return nil, false, err
	}

	existing, loaded := p.mailboxes.LoadOrStore(id, mailbox)
	if loaded {
		return existing, false, nil
	}

	p.metrics.MailboxCreated(goengine.CommandMailbox)
	return mailbox, true, nil
}
