package rendercache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/rendercache/codec"
	pr "github.com/unkn0wn-root/rendercache/provider"
	ts "github.com/unkn0wn-root/rendercache/tagstore"
)

type SetCostFunc func(storageKey string, raw []byte) int64

// TagVersions maps a tag to the invalidation counter observed for it.
type TagVersions map[string]uint64

// Entry is a stored value and the metadata it was stored with.
// Entries returned by Get are copies; mutating them never affects the store.
type Entry[V any] struct {
	Key       string
	Value     V
	Metadata  Metadata
	CreatedAt time.Time
}

// Store is the cache of computed values. V is the caller's value type; serialization
// is handled by a Codec[V]. Safe for concurrent use.
type Store[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the entry for key when it exists, has not outlived its max-age and
	// none of its tags were invalidated since it was written. A miss is (zero, false, nil).
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	// Set stores value unconditionally. Metadata with max-age 0 removes any entry
	// under key instead, so the next Get misses.
	Set(ctx context.Context, key string, value V, md Metadata) error
	Delete(ctx context.Context, key string) error

	// InvalidateTags makes every entry carrying any of tags stale. Repeating a call is harmless.
	InvalidateTags(ctx context.Context, tags ...string) error

	// SnapshotTags and SetWithVersions form a compare-and-set pair: snapshot before an
	// expensive computation, then write only if no tag moved in the meantime.
	SnapshotTags(ctx context.Context, tags []string) (TagVersions, error)
	SetWithVersions(ctx context.Context, key string, value V, md Metadata, observed TagVersions) error
}

// Options configure a Store. Namespace, Provider and Codec are required.
type Options[V any] struct {
	Namespace string // isolates keys of stores sharing a provider, e.g. "render", "page"
	Provider  pr.Provider
	Codec     c.Codec[V]

	Logger         Logger           // nil => NopLogger
	Hooks          Hooks            // nil => NopHooks
	TagStore       ts.TagStore      // nil => tagstore.Local owned by the store
	Clock          func() time.Time // nil => time.Now
	ComputeSetCost SetCostFunc      // nil => 1 per entry
	Disabled       bool             // every Get misses, writes are dropped

	// Only used for the default local tag store. Retention 0 keeps counters forever.
	CleanupInterval time.Duration // 0 => 1h
	TagRetention    time.Duration
}

func New[V any](opts Options[V]) (Store[V], error) {
	return newStore[V](opts)
}
