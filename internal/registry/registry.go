package registry

import (
	"context"
	"sync"
	"time"

	"github.com/hellofresh/goengine-core/aggregate"
)

type (
	// Mailbox is the behaviour a Registry needs from its entries
	Mailbox interface {
		// TryRemove flags the mailbox as removed and returns true when it was inactive for at least the
		// provided duration and has no pending work. A removed mailbox must reject any new work.
		TryRemove(idle time.Duration) bool
	}

	// Registry is a concurrent aggregate.ID to Mailbox map.
	// The lock is only held for the duration of a single map operation.
	Registry[M Mailbox] struct {
		mu        sync.RWMutex
		mailboxes map[aggregate.ID]M
	}
)

// New returns an empty Registry
func New[M Mailbox]() *Registry[M] {
	return &Registry[M]{
		mailboxes: make(map[aggregate.ID]M),
	}
}

// Get returns the mailbox of the aggregate
func (r *Registry[M]) Get(id aggregate.ID) (M, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, found := r.mailboxes[id]
	return m, found
}

// LoadOrStore returns the existing mailbox for the aggregate if present.
// Otherwise, it stores and returns the given mailbox. The loaded result is true if the mailbox was loaded.
func (r *Registry[M]) LoadOrStore(id aggregate.ID, m M) (M, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, found := r.mailboxes[id]; found {
		return existing, true
	}

	r.mailboxes[id] = m
	return m, false
}

// Len returns the number of mailboxes
func (r *Registry[M]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.mailboxes)
}

// Range calls fn for a snapshot of the registered mailboxes, the lock is not held while fn is called.
// If fn returns false, range stops the iteration.
func (r *Registry[M]) Range(fn func(id aggregate.ID, m M) bool) {
	r.mu.RLock()
	ids := make([]aggregate.ID, 0, len(r.mailboxes))
	mailboxes := make([]M, 0, len(r.mailboxes))
	for id, m := range r.mailboxes {
		ids = append(ids, id)
		mailboxes = append(mailboxes, m)
	}
	r.mu.RUnlock()

	for i, id := range ids {
		if !fn(id, mailboxes[i]) {
			return
		}
	}
}

// RemoveInactive removes the mailboxes that agree to be removed and returns their ids
func (r *Registry[M]) RemoveInactive(idle time.Duration) []aggregate.ID {
	var removed []aggregate.ID
	r.Range(func(id aggregate.ID, m M) bool {
		if !m.TryRemove(idle) {
			return true
		}

		r.mu.Lock()
		if existing, found := r.mailboxes[id]; found && Mailbox(existing) == Mailbox(m) {
			delete(r.mailboxes, id)
			removed = append(removed, id)
		}
		r.mu.Unlock()

		return true
	})

	return removed
}

// RunEvery calls fn every interval until the context is done
func RunEvery(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
