package eventing

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
)

// Mailbox delivers the event streams of a single aggregate in strict version order.
// Streams that arrive ahead of the expected version are kept in a waiting list until the missing versions arrive.
type Mailbox struct {
	aggregateID   aggregate.ID
	aggregateType string
	handler       Handler
	batchSize     int

	logger  goengine.Logger
	metrics goengine.Metrics

	mu                   sync.Mutex
	queue                []*ProcessingEvent
	waiting              map[int64]*ProcessingEvent
	nextExpectingVersion int64
	lastActive           time.Time
	running              bool
	removed              bool
}

// NewMailbox returns a new Mailbox that accepts nextExpectingVersion as it's first version
func NewMailbox(
	aggregateID aggregate.ID,
	aggregateType string,
	nextExpectingVersion int64,
	handler Handler,
	batchSize int,
	logger goengine.Logger,
	metrics goengine.Metrics,
) (*Mailbox, error) {
	switch {
	case aggregateID == "":
		return nil, goengine.InvalidArgumentError("aggregateID")
	case nextExpectingVersion < 1:
		return nil, goengine.InvalidArgumentError("nextExpectingVersion")
	case handler == nil:
		return nil, goengine.InvalidArgumentError("handler")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = goengine.NopLogger
	}
	if metrics == nil {
		metrics = goengine.NopMetrics
	}

	return &Mailbox{
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		handler:       handler,
		batchSize:     batchSize,
		logger: logger.WithFields(func(e goengine.LoggerEntry) {
			e.String("aggregate_id", string(aggregateID))
			e.String("aggregate_type", aggregateType)
		}),
		metrics:              metrics,
		waiting:              make(map[int64]*ProcessingEvent),
		nextExpectingVersion: nextExpectingVersion,
		lastActive:           time.Now(),
	}, nil
}

// AggregateID returns the id of the aggregate this mailbox delivers events for
func (m *Mailbox) AggregateID() aggregate.ID {
	return m.aggregateID
}

// AggregateType returns the type of the aggregate this mailbox delivers events for
func (m *Mailbox) AggregateType() string {
	return m.aggregateType
}

// Enqueue adds the event to the dispatch queue when it is the expected version, buffers it when it arrived early
// or reports it as Stale when the version was already delivered.
func (m *Mailbox) Enqueue(evt *ProcessingEvent) (EnqueueResult, error) {
	version := evt.Version()

	m.mu.Lock()
	if m.removed {
		m.mu.Unlock()
		return 0, ErrMailboxRemoved
	}
	m.lastActive = time.Now()

	var result EnqueueResult
	switch {
	case version < m.nextExpectingVersion:
		result = Stale
	case version > m.nextExpectingVersion:
		if _, buffered := m.waiting[version]; buffered {
			result = Stale
			break
		}
		evt.mailbox = m
		m.waiting[version] = evt
		result = Buffered
	default:
		evt.mailbox = m
		m.queue = append(m.queue, evt)
		m.nextExpectingVersion = version + 1
		m.drainWaiting()
		result = Accepted
	}
	expecting := m.nextExpectingVersion
	m.mu.Unlock()

	m.logger.Debug("enqueued event stream", func(e goengine.LoggerEntry) {
		e.Int64("version", version)
		e.Int64("next_expecting_version", expecting)
		e.String("result", result.String())
	})

	if result == Stale {
		return result, nil
	}

	m.metrics.MessageQueued(goengine.EventMailbox)
	if result == Accepted {
		m.TryActivate()
	}
	return result, nil
}

// BumpExpectingVersion raises the expected version and moves the waiting events that became contiguous to the queue.
// Waiting events below the new version are completed as stale. A version that is not higher than the currently
// expected version is ignored.
func (m *Mailbox) BumpExpectingVersion(version int64) bool {
	m.mu.Lock()
	if version <= m.nextExpectingVersion {
		m.mu.Unlock()
		return false
	}

	var superseded []*ProcessingEvent
	for waitingVersion, evt := range m.waiting {
		if waitingVersion < version {
			superseded = append(superseded, evt)
			delete(m.waiting, waitingVersion)
		}
	}

	previous := m.nextExpectingVersion
	m.nextExpectingVersion = version
	m.drainWaiting()
	m.lastActive = time.Now()
	m.mu.Unlock()

	m.logger.Info("bumped expecting version", func(e goengine.LoggerEntry) {
		e.Int64("previous_version", previous)
		e.Int64("version", version)
		e.Int("superseded", len(superseded))
	})

	for _, evt := range superseded {
		evt.Complete()
	}

	m.TryActivate()
	return true
}

// TryActivate starts a run unless one is already active or the queue is empty
func (m *Mailbox) TryActivate() {
	m.mu.Lock()
	if m.running || m.removed || len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.run()
}

// NextExpectingVersion returns the version the mailbox accepts next
func (m *Mailbox) NextExpectingVersion() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nextExpectingVersion
}

// QueueLen returns the number of events ready for dispatch
func (m *Mailbox) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}

// WaitingVersions returns the buffered versions in ascending order
func (m *Mailbox) WaitingVersions() []int64 {
	m.mu.Lock()
	versions := make([]int64, 0, len(m.waiting))
	for version := range m.waiting {
		versions = append(versions, version)
	}
	m.mu.Unlock()

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// IsRunning returns true while a run is active
func (m *Mailbox) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

// LastActiveTime returns the last time an event was enqueued, completed or a run finished
func (m *Mailbox) LastActiveTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastActive
}

// IsWaitingStalled returns true when events are buffered but nothing happened for the provided duration
func (m *Mailbox) IsWaitingStalled(after time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.waiting) > 0 && len(m.queue) == 0 && !m.running && time.Since(m.lastActive) >= after
}

// TryRemove flags the mailbox as removed when it's idle with an empty queue and waiting list
func (m *Mailbox) TryRemove(idle time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || len(m.queue) > 0 || len(m.waiting) > 0 {
		return false
	}
	if time.Since(m.lastActive) < idle {
		return false
	}

	m.removed = true
	return true
}

// drainWaiting moves the waiting events that follow the queue to the queue, the lock must be held
func (m *Mailbox) drainWaiting() {
	for {
		evt, found := m.waiting[m.nextExpectingVersion]
		if !found {
			return
		}

		delete(m.waiting, m.nextExpectingVersion)
		m.queue = append(m.queue, evt)
		m.nextExpectingVersion++
	}
}

func (m *Mailbox) run() {
	for {
		if !m.processBatch() {
			return
		}

		m.mu.Lock()
		if len(m.queue) > 0 {
			m.mu.Unlock()

			runtime.Gosched()
			continue
		}

		m.running = false
		m.lastActive = time.Now()
		m.mu.Unlock()
		return
	}
}

// processBatch handles up to batchSize events, it returns false when the run was stopped by a handler error
func (m *Mailbox) processBatch() bool {
	for processed := 0; processed < m.batchSize; processed++ {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return true
		}
		evt := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		start := time.Now()
		err := m.handler(evt.ctx, evt)
		m.metrics.MessageProcessed(goengine.EventMailbox, time.Since(start), err == nil)
		if err == nil {
			continue
		}

		m.logger.Error("event handler failed, stopping mailbox run", func(e goengine.LoggerEntry) {
			e.Error(err)
			e.Int64("version", evt.Version())
		})

		m.mu.Lock()
		m.queue = append([]*ProcessingEvent{evt}, m.queue...)
		m.running = false
		m.lastActive = time.Now()
		m.mu.Unlock()
		return false
	}

	return true
}

func (m *Mailbox) completeEvent() {
	m.mu.Lock()
	m.lastActive = time.Now()
	m.mu.Unlock()
}
