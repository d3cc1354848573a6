// Package async moves hook delivery off the store's read and write paths.
// Events are queued to a fixed worker pool and dropped when the queue is full.
package async

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/rendercache"
)

type Hooks struct {
	inner   rendercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against sends racing close(q)
	closed bool
}

var _ rendercache.Hooks = (*Hooks)(nil)

func New(inner rendercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close are
// counted as dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded because the queue was full or
// h was closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) SelfHeal(k, r string)             { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)     { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) TagBumpError(t string, err error) { h.try(func() { h.inner.TagBumpError(t, err) }) }
func (h *Hooks) StaleWriteSkipped(k string)       { h.try(func() { h.inner.StaleWriteSkipped(k) }) }
func (h *Hooks) TagSnapshotError(n int, err error) {
	h.try(func() { h.inner.TagSnapshotError(n, err) })
}
