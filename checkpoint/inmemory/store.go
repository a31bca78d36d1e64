package inmemory

import (
	"context"
	"sync"

	"github.com/hellofresh/goengine-core/checkpoint"
)

// Ensure Store implements checkpoint.Store
var _ checkpoint.Store = &Store{}

// Store an in memory checkpoint.Store
type Store struct {
	mu       sync.RWMutex
	versions map[checkpoint.Key]int64
}

// NewStore returns a new empty Store
func NewStore() *Store {
	return &Store{
		versions: make(map[checkpoint.Key]int64),
	}
}

// GetCheckpoint returns the stored version or 0 when the key is unknown
func (s *Store) GetCheckpoint(_ context.Context, key checkpoint.Key) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.versions[key], nil
}

// AdvanceCheckpoint moves the checkpoint of the key to the provided version
func (s *Store) AdvanceCheckpoint(ctx context.Context, key checkpoint.Key, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	apply, err := checkpoint.Validate(s.versions[key], version)
	if !apply || err != nil {
		return err
	}

	s.versions[key] = version
	return nil
}
