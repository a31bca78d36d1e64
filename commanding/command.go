package commanding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hellofresh/goengine-core/aggregate"
)

const (
	// StatusSuccess indicates that the command was executed and changed the aggregate
	StatusSuccess Status = iota + 1
	// StatusFailed indicates that the command handler returned an error or panicked
	StatusFailed
	// StatusNothingChanged indicates that the command was executed but the aggregate was not changed
	StatusNothingChanged
)

// ErrMailboxRemoved occurs when a command is enqueued in a mailbox that was removed from the processor
var ErrMailboxRemoved = errors.New("goengine: command mailbox was removed")

type (
	// Command is a message that mutates a single aggregate
	Command interface {
		// CommandID returns the identifier of the command, a command that is send twice has the same identifier
		CommandID() string

		// AggregateID returns the identifier of the aggregate this command mutates
		AggregateID() aggregate.ID
	}

	// Status is the outcome of a command
	Status int

	// Result is reported to the submitter of a command once it's processing is finished
	Result struct {
		Status      Status
		CommandID   string
		AggregateID aggregate.ID
		// Message contains the handler result or the failure reason
		Message string
	}

	// CompletionFunc is called exactly once with the Result of a command
	CompletionFunc func(result Result)

	// Handler executes a command against it's aggregate.
	// The handler is responsible for calling ProcessingCommand.Complete, when an error is returned the command is
	// completed as failed.
	Handler func(ctx context.Context, cmd *ProcessingCommand) error

	// ProcessingCommand is the unit of work of a command Mailbox
	ProcessingCommand struct {
		ctx      context.Context
		message  Command
		items    map[string]string
		complete CompletionFunc

		sequence  int64
		mailbox   *Mailbox
		duplicate bool
		tracked   map[aggregate.ID]interface{}

		completeOnce sync.Once
	}
)

// String returns the name of the status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusNothingChanged:
		return "nothing_changed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// NewProcessingCommand returns a new ProcessingCommand
func NewProcessingCommand(message Command, items map[string]string, complete CompletionFunc) *ProcessingCommand {
	if items == nil {
		items = map[string]string{}
	}

	return &ProcessingCommand{
		ctx:      context.Background(),
		message:  message,
		items:    items,
		complete: complete,
		tracked:  map[aggregate.ID]interface{}{},
	}
}

// Message returns the command
func (c *ProcessingCommand) Message() Command {
	return c.message
}

// Items returns the metadata of the command
func (c *ProcessingCommand) Items() map[string]string {
	return c.items
}

// Sequence returns the sequence assigned by the mailbox
func (c *ProcessingCommand) Sequence() int64 {
	return c.sequence
}

// Mailbox returns the mailbox the command was enqueued in
func (c *ProcessingCommand) Mailbox() *Mailbox {
	return c.mailbox
}

// IsDuplicate returns true when the command id was marked as duplicate before the command was handled.
// A handler should not mutate the aggregate again but complete the command with the known outcome.
func (c *ProcessingCommand) IsDuplicate() bool {
	return c.duplicate
}

// Track adds an aggregate to the command execution
func (c *ProcessingCommand) Track(id aggregate.ID, root interface{}) {
	c.tracked[id] = root
}

// Tracked returns an aggregate that was added by Track
func (c *ProcessingCommand) Tracked(id aggregate.ID) (interface{}, bool) {
	root, found := c.tracked[id]
	return root, found
}

// TrackedAggregates returns all aggregates added by Track
func (c *ProcessingCommand) TrackedAggregates() map[aggregate.ID]interface{} {
	return c.tracked
}

// Complete reports the result to the submitter and removes the command from it's mailbox.
// Only the first call has any effect.
func (c *ProcessingCommand) Complete(result Result) {
	c.completeOnce.Do(func() {
		if result.CommandID == "" {
			result.CommandID = c.message.CommandID()
		}
		if result.AggregateID == "" {
			result.AggregateID = c.message.AggregateID()
		}

		if c.complete != nil {
			c.complete(result)
		}
		if c.mailbox != nil {
			c.mailbox.completeCommand(c, result)
		}
	})
}
