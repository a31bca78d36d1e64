package commanding

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
)

// Mailbox executes the commands of a single aggregate one at a time and in the order they were enqueued.
//
// A mailbox does not own a goroutine. When work is enqueued a run is started that handles at most batchSize commands,
// after which the run continues only if there is a backlog left.
type Mailbox struct {
	aggregateID aggregate.ID
	handler     Handler
	options     Options

	logger  goengine.Logger
	metrics goengine.Metrics

	mu                sync.Mutex
	pending           map[int64]*ProcessingCommand
	nextSequence      int64
	consumingSequence int64
	lastActive        time.Time

	running        bool
	paused         bool
	pauseRequested bool
	removed        bool

	duplicates *duplicateTracker
}

// NewMailbox returns a new Mailbox for the aggregate
func NewMailbox(
	aggregateID aggregate.ID,
	handler Handler,
	options Options,
	logger goengine.Logger,
	metrics goengine.Metrics,
) (*Mailbox, error) {
	switch {
	case aggregateID == "":
		return nil, goengine.InvalidArgumentError("aggregateID")
	case handler == nil:
		return nil, goengine.InvalidArgumentError("handler")
	}
	if logger == nil {
		logger = goengine.NopLogger
	}
	if metrics == nil {
		metrics = goengine.NopMetrics
	}
	options = options.withDefaults()

	return &Mailbox{
		aggregateID: aggregateID,
		handler:     wrapHandlerToTrapError(handler),
		options:     options,
		logger: logger.WithFields(func(e goengine.LoggerEntry) {
			e.String("aggregate_id", string(aggregateID))
		}),
		metrics:    metrics,
		pending:    make(map[int64]*ProcessingCommand),
		lastActive: time.Now(),
		duplicates: newDuplicateTracker(options.DuplicateCacheSize),
	}, nil
}

// AggregateID returns the id of the aggregate this mailbox serializes
func (m *Mailbox) AggregateID() aggregate.ID {
	return m.aggregateID
}

// Enqueue assigns the next sequence to the command and starts a run if none is active
func (m *Mailbox) Enqueue(cmd *ProcessingCommand) error {
	m.mu.Lock()
	if m.removed {
		m.mu.Unlock()
		return ErrMailboxRemoved
	}

	cmd.sequence = m.nextSequence
	cmd.mailbox = m
	m.pending[cmd.sequence] = cmd
	m.nextSequence++
	m.lastActive = time.Now()
	m.mu.Unlock()

	m.metrics.MessageQueued(goengine.CommandMailbox)
	m.logger.Debug("enqueued command", func(e goengine.LoggerEntry) {
		e.String("command_id", cmd.message.CommandID())
		e.Int64("sequence", cmd.sequence)
	})

	m.TryActivate()
	return nil
}

// TryActivate starts a run unless one is already active or the mailbox is paused
func (m *Mailbox) TryActivate() {
	m.mu.Lock()
	if m.running || m.paused || m.pauseRequested || m.removed {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.run()
}

// MarkDuplicate records the command id as already processed.
// A command with this id that is handled afterwards will report IsDuplicate.
func (m *Mailbox) MarkDuplicate(commandID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.duplicates.mark(commandID)
}

// Pause waits for the active run to finish and stops new runs from starting until Resume is called.
// Commands can still be enqueued while the mailbox is paused.
func (m *Mailbox) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return nil
	}
	m.pauseRequested = true
	m.mu.Unlock()

	m.logger.Debug("pausing mailbox", nil)
	for {
		m.mu.Lock()
		if !m.running {
			m.paused = true
			m.pauseRequested = false
			m.mu.Unlock()

			m.logger.Debug("paused mailbox", nil)
			return nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.pauseRequested = false
			m.mu.Unlock()

			m.TryActivate()
			return ctx.Err()
		case <-time.After(m.options.PausePollInterval):
		}
	}
}

// Resume allows runs to start again and starts a run if there is a backlog
func (m *Mailbox) Resume() {
	m.mu.Lock()
	m.paused = false
	m.pauseRequested = false
	m.lastActive = time.Now()
	m.mu.Unlock()

	m.logger.Debug("resumed mailbox", nil)
	m.TryActivate()
}

// IsRunning returns true while a run is active
func (m *Mailbox) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// IsPaused returns true when the mailbox is paused
func (m *Mailbox) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.paused
}

// NextSequence returns the sequence that will be assigned to the next enqueued command
func (m *Mailbox) NextSequence() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nextSequence
}

// ConsumingSequence returns the sequence of the next command that will be handled
func (m *Mailbox) ConsumingSequence() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.consumingSequence
}

// UnconsumedCount returns the number of commands that were not yet handled
func (m *Mailbox) UnconsumedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nextSequence - m.consumingSequence
}

// PendingCount returns the number of commands that were not yet completed
func (m *Mailbox) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending)
}

// LastActiveTime returns the last time a command was enqueued, completed or a run finished
func (m *Mailbox) LastActiveTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastActive
}

// TryRemove flags the mailbox as removed when it's idle and has no pending commands
func (m *Mailbox) TryRemove(idle time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || len(m.pending) > 0 || m.consumingSequence < m.nextSequence {
		return false
	}
	if m.paused || m.pauseRequested {
		return false
	}
	if time.Since(m.lastActive) < idle {
		return false
	}

	m.removed = true
	return true
}

func (m *Mailbox) run() {
	for {
		m.processBatch()

		m.mu.Lock()
		if m.consumingSequence < m.nextSequence && !m.pauseRequested {
			m.mu.Unlock()

			// Yield so other mailboxes get a chance to run
			runtime.Gosched()
			continue
		}

		m.running = false
		m.lastActive = time.Now()
		m.mu.Unlock()
		return
	}
}

func (m *Mailbox) processBatch() {
	for processed := 0; processed < m.options.BatchSize; processed++ {
		m.mu.Lock()
		if m.pauseRequested || m.consumingSequence >= m.nextSequence {
			m.mu.Unlock()
			return
		}

		sequence := m.consumingSequence
		cmd, found := m.pending[sequence]
		m.consumingSequence++

		var (
			action         duplicateAction
			previousResult Result
		)
		if found {
			action, previousResult = m.duplicates.resolve(cmd)
		}
		m.mu.Unlock()

		switch {
		case !found:
			m.logger.Error("no command found for the consuming sequence", func(e goengine.LoggerEntry) {
				e.Int64("sequence", sequence)
			})
		case action == duplicateCompleted:
			m.logger.Debug("duplicate command completed with previous result", func(e goengine.LoggerEntry) {
				e.String("command_id", cmd.message.CommandID())
			})
			cmd.Complete(previousResult)
		case action == duplicateParked:
			m.logger.Debug("duplicate command waits for the original", func(e goengine.LoggerEntry) {
				e.String("command_id", cmd.message.CommandID())
			})
		default:
			m.execute(cmd)
		}
	}
}

func (m *Mailbox) execute(cmd *ProcessingCommand) {
	start := time.Now()

	err := m.handler(cmd.ctx, cmd)
	if err != nil {
		m.logger.Error("command handler failed", func(e goengine.LoggerEntry) {
			e.Error(err)
			e.String("command_id", cmd.message.CommandID())
			e.Int64("sequence", cmd.sequence)
		})

		cmd.Complete(Result{
			Status:  StatusFailed,
			Message: err.Error(),
		})
	}

	m.metrics.MessageProcessed(goengine.CommandMailbox, time.Since(start), err == nil)
}

func (m *Mailbox) completeCommand(cmd *ProcessingCommand, result Result) {
	m.mu.Lock()
	delete(m.pending, cmd.sequence)
	m.lastActive = time.Now()
	parked := m.duplicates.complete(cmd.message.CommandID(), result)
	m.mu.Unlock()

	for _, duplicate := range parked {
		duplicate.Complete(result)
	}
}
