package commanding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hellofresh/goengine-core/aggregate"
)

type stubCommand string

func (c stubCommand) CommandID() string         { return string(c) }
func (c stubCommand) AggregateID() aggregate.ID { return "agg" }

func TestDuplicateTracker(t *testing.T) {
	t.Run("first sight is handled", func(t *testing.T) {
		tracker := newDuplicateTracker(10)
		cmd := NewProcessingCommand(stubCommand("a"), nil, nil)

		action, _ := tracker.resolve(cmd)

		assert.Equal(t, duplicateNone, action)
		assert.False(t, cmd.IsDuplicate())
	})

	t.Run("marked id is handled as duplicate", func(t *testing.T) {
		tracker := newDuplicateTracker(10)
		tracker.mark("a")
		cmd := NewProcessingCommand(stubCommand("a"), nil, nil)

		action, _ := tracker.resolve(cmd)

		assert.Equal(t, duplicateNone, action)
		assert.True(t, cmd.IsDuplicate())
	})

	t.Run("in flight id is parked until completion", func(t *testing.T) {
		tracker := newDuplicateTracker(10)
		original := NewProcessingCommand(stubCommand("a"), nil, nil)
		duplicate := NewProcessingCommand(stubCommand("a"), nil, nil)

		tracker.resolve(original)
		action, _ := tracker.resolve(duplicate)
		assert.Equal(t, duplicateParked, action)

		result := Result{Status: StatusSuccess, Message: "done"}
		parked := tracker.complete("a", result)
		assert.Equal(t, []*ProcessingCommand{duplicate}, parked)

		again := NewProcessingCommand(stubCommand("a"), nil, nil)
		action, previous := tracker.resolve(again)
		assert.Equal(t, duplicateCompleted, action)
		assert.Equal(t, result, previous)
	})

	t.Run("empty ids are never tracked", func(t *testing.T) {
		tracker := newDuplicateTracker(10)
		tracker.mark("")
		tracker.complete("", Result{Status: StatusSuccess})

		action, _ := tracker.resolve(NewProcessingCommand(stubCommand(""), nil, nil))
		assert.Equal(t, duplicateNone, action)
		assert.Equal(t, 0, tracker.size())
	})

	t.Run("oldest ids are evicted", func(t *testing.T) {
		tracker := newDuplicateTracker(2)
		tracker.mark("a")
		tracker.complete("b", Result{Status: StatusSuccess})
		tracker.mark("c")

		assert.Equal(t, 2, tracker.size())

		cmd := NewProcessingCommand(stubCommand("a"), nil, nil)
		action, _ := tracker.resolve(cmd)
		assert.Equal(t, duplicateNone, action)
		assert.False(t, cmd.IsDuplicate())

		action, _ = tracker.resolve(NewProcessingCommand(stubCommand("b"), nil, nil))
		assert.Equal(t, duplicateCompleted, action)
	})

	t.Run("marking a completed id keeps its result", func(t *testing.T) {
		tracker := newDuplicateTracker(2)
		result := Result{Status: StatusSuccess, Message: "done"}

		tracker.resolve(NewProcessingCommand(stubCommand("a"), nil, nil))
		tracker.complete("a", result)
		tracker.mark("a")
		tracker.mark("b")

		assert.Equal(t, 2, tracker.size())

		action, previous := tracker.resolve(NewProcessingCommand(stubCommand("a"), nil, nil))
		assert.Equal(t, duplicateCompleted, action)
		assert.Equal(t, result, previous)
	})
}
