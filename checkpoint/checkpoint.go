package checkpoint

import (
	"context"
	"errors"

	"github.com/hellofresh/goengine-core/aggregate"
)

// ErrVersionGap occurs when a checkpoint is advanced by more than one version at once
var ErrVersionGap = errors.New("goengine: checkpoint cannot skip a version")

type (
	// Key identifies a checkpoint
	Key struct {
		Subscriber    string
		AggregateType string
		AggregateID   aggregate.ID
	}

	// Store persists the highest event stream version that was fully delivered to a subscriber.
	//
	// Implementations must guarantee that:
	//  - advancing to a version that is lower or equal to the stored version is a no-op
	//  - the first write of a key succeeds exactly once, even under concurrent attempts
	//  - any other write only succeeds when the stored version is the preceding version
	Store interface {
		// GetCheckpoint returns the stored version or 0 when the key is unknown
		GetCheckpoint(ctx context.Context, key Key) (int64, error)

		// AdvanceCheckpoint moves the checkpoint of the key to the provided version
		AdvanceCheckpoint(ctx context.Context, key Key, version int64) error
	}
)

// Validate checks the advance of a checkpoint from the current to the next version.
// It returns false when the advance is a no-op.
func Validate(current, next int64) (bool, error) {
	switch {
	case next <= current:
		return false, nil
	case next != current+1:
		return false, ErrVersionGap
	}
	return true, nil
}
