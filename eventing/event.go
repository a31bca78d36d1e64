package eventing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/checkpoint"
)

const (
	// Accepted indicates that the event was the expected version and is queued for dispatch
	Accepted EnqueueResult = iota + 1
	// Buffered indicates that the event arrived ahead of the expected version and waits for the missing versions
	Buffered
	// Stale indicates that the event version was already delivered, the event must be acknowledged without dispatch
	Stale
)

// ErrMailboxRemoved occurs when an event is enqueued in a mailbox that was removed from the processor
var ErrMailboxRemoved = errors.New("goengine: event mailbox was removed")

type (
	// EnqueueResult is the outcome of enqueueing an event in a Mailbox
	EnqueueResult int

	// Event is a single domain event of an EventStream
	Event struct {
		ID      goengine.UUID
		Name    string
		Payload []byte
	}

	// EventStream is the versioned batch of events produced by a single command
	EventStream struct {
		AggregateID   aggregate.ID
		AggregateType string
		Version       int64
		Events        []Event
		CommandID     string
		Items         map[string]string
	}

	// Dispatcher delivers an EventStream to the subscribers
	Dispatcher interface {
		Dispatch(ctx context.Context, stream *EventStream) error
	}

	// DispatcherFunc is a func that implements Dispatcher
	DispatcherFunc func(ctx context.Context, stream *EventStream) error

	// CheckpointObserver is notified after a checkpoint was advanced, for example to take a snapshot of the aggregate
	CheckpointObserver interface {
		CheckpointAdvanced(ctx context.Context, key checkpoint.Key, version int64) error
	}

	// CompletionFunc is called exactly once when the event is fully processed
	CompletionFunc func()

	// Handler processes an event taken from the queue of a Mailbox.
	// When an error is returned the event is put back at the head of the queue and the run stops.
	Handler func(ctx context.Context, evt *ProcessingEvent) error

	// ProcessingEvent is the unit of work of an event Mailbox
	ProcessingEvent struct {
		ctx      context.Context
		message  *EventStream
		complete CompletionFunc
		mailbox  *Mailbox

		completeOnce sync.Once
	}
)

// Ensure DispatcherFunc implements Dispatcher
var _ Dispatcher = DispatcherFunc(nil)

// Dispatch calls f(ctx, stream)
func (f DispatcherFunc) Dispatch(ctx context.Context, stream *EventStream) error {
	return f(ctx, stream)
}

// String returns the name of the result
func (r EnqueueResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Buffered:
		return "buffered"
	case Stale:
		return "stale"
	}
	return fmt.Sprintf("EnqueueResult(%d)", int(r))
}

// NewProcessingEvent returns a new ProcessingEvent
func NewProcessingEvent(message *EventStream, complete CompletionFunc) *ProcessingEvent {
	return &ProcessingEvent{
		ctx:      context.Background(),
		message:  message,
		complete: complete,
	}
}

// Message returns the event stream
func (e *ProcessingEvent) Message() *EventStream {
	return e.message
}

// Version returns the version of the event stream
func (e *ProcessingEvent) Version() int64 {
	return e.message.Version
}

// Mailbox returns the mailbox the event was enqueued in
func (e *ProcessingEvent) Mailbox() *Mailbox {
	return e.mailbox
}

func (e *ProcessingEvent) withContext(ctx context.Context) *ProcessingEvent {
	e.ctx = ctx
	return e
}

// Complete notifies the submitter that the event was processed.
// Only the first call has any effect.
func (e *ProcessingEvent) Complete() {
	e.completeOnce.Do(func() {
		if e.complete != nil {
			e.complete()
		}
		if e.mailbox != nil {
			e.mailbox.completeEvent()
		}
	})
}
