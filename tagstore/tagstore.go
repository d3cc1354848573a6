// Package tagstore keeps one invalidation counter per cache tag.
//
// Invalidating a tag is a single counter bump. Entries record the counters of their
// tags when written and are rejected on read once any counter moved, so no scan over
// stored entries is ever needed.
package tagstore

import (
	"context"
	"time"
)

// TagStore abstracts where tag counters live.
// Use Local for a single process, Redis to share invalidations across processes.
type TagStore interface {
	// Snapshot returns the current counter of tag; never-invalidated tags are 0.
	Snapshot(ctx context.Context, tag string) (uint64, error)
	// SnapshotMany returns counters for all tags; never-invalidated tags map to 0.
	SnapshotMany(ctx context.Context, tags []string) (map[string]uint64, error)
	// Bump atomically increments the counter of tag and returns the new value.
	Bump(ctx context.Context, tag string) (uint64, error)
	// Cleanup prunes counters not bumped within retention (no-op where not applicable).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
