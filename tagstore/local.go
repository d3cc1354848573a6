package tagstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	Version   uint64
	UpdatedAt time.Time
}

// Local keeps tag counters in-process.
//
// Pruning a counter resets it to 0, which re-validates entries written before the
// first bump of that tag. Only enable retention when it exceeds the longest max-age
// in use and no permanent entries carry the pruned tags.
type Local struct {
	mu     sync.RWMutex
	tags   map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ TagStore = (*Local)(nil)

// NewLocal returns an in-process tag store. A background sweep runs only when both
// cleanupInterval and retention are positive.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{tags: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Snapshot(_ context.Context, tag string) (uint64, error) {
	s.mu.RLock()
	e := s.tags[tag]
	s.mu.RUnlock()
	return e.Version, nil
}

// SnapshotMany reads every tag under one read lock.
func (s *Local) SnapshotMany(_ context.Context, tags []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(tags))
	s.mu.RLock()
	for _, t := range tags {
		out[t] = s.tags[t].Version
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, tag string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.tags[tag]
	e.Version++
	e.UpdatedAt = now
	s.tags[tag] = e
	s.mu.Unlock()
	return e.Version, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for t, e := range s.tags {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.tags, t)
		}
	}
	s.mu.Unlock()
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
