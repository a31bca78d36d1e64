package registry_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellofresh/goengine-core/aggregate"
	"github.com/hellofresh/goengine-core/internal/registry"
)

type stubMailbox struct {
	removable bool
	removed   bool
}

func (m *stubMailbox) TryRemove(time.Duration) bool {
	if m.removable {
		m.removed = true
	}
	return m.removable
}

func TestRegistry_LoadOrStore(t *testing.T) {
	r := registry.New[*stubMailbox]()

	first := &stubMailbox{}
	stored, loaded := r.LoadOrStore("order-1", first)
	assert.Same(t, first, stored)
	assert.False(t, loaded)

	stored, loaded = r.LoadOrStore("order-1", &stubMailbox{})
	assert.Same(t, first, stored)
	assert.True(t, loaded)

	found, ok := r.Get("order-1")
	assert.True(t, ok)
	assert.Same(t, first, found)

	_, ok = r.Get("order-2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LoadOrStore_Concurrent(t *testing.T) {
	r := registry.New[*stubMailbox]()

	var (
		wg      sync.WaitGroup
		created int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, loaded := r.LoadOrStore("order-1", &stubMailbox{}); !loaded {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveInactive(t *testing.T) {
	r := registry.New[*stubMailbox]()
	idle := &stubMailbox{removable: true}
	busy := &stubMailbox{}
	r.LoadOrStore("idle", idle)
	r.LoadOrStore("busy", busy)

	removed := r.RemoveInactive(time.Minute)

	assert.Equal(t, []aggregate.ID{"idle"}, removed)
	assert.True(t, idle.removed)
	assert.False(t, busy.removed)
	assert.Equal(t, 1, r.Len())

	var ids []aggregate.ID
	r.Range(func(id aggregate.ID, _ *stubMailbox) bool {
		ids = append(ids, id)
		return true
	})
	assert.Equal(t, []aggregate.ID{"busy"}, ids)
}

func TestRegistry_Range(t *testing.T) {
	r := registry.New[*stubMailbox]()
	r.LoadOrStore("order-1", &stubMailbox{})
	r.LoadOrStore("order-2", &stubMailbox{})

	t.Run("the registry can be modified while ranging", func(t *testing.T) {
		var calls int
		r.Range(func(id aggregate.ID, _ *stubMailbox) bool {
			calls++
			r.LoadOrStore(id+"-copy", &stubMailbox{})
			return true
		})

		assert.Equal(t, 2, calls)
		assert.Equal(t, 4, r.Len())
	})

	t.Run("ranging stops when false is returned", func(t *testing.T) {
		var calls int
		r.Range(func(aggregate.ID, *stubMailbox) bool {
			calls++
			return false
		})

		assert.Equal(t, 1, calls)
	})
}

func TestRunEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int32
	done := make(chan struct{})
	go func() {
		registry.RunEvery(ctx, time.Millisecond, func() {
			atomic.AddInt32(&calls, 1)
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "RunEvery did not return after the context was cancelled")
	}
}
