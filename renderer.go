package rendercache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Result is the outcome of rendering a node.
type Result[V any] struct {
	Value V
	// Metadata is the node's effective metadata; on a hit, the metadata it was stored with.
	Metadata Metadata
	// Key is the cache id used for a keyed node, empty otherwise.
	Key string
	// Hit is true when Value came from the store.
	Hit bool
}

// Cacheable reports whether the rendered value may be cached by downstream layers
// (page caches, HTTP caches). False when its effective max-age is 0.
func (r Result[V]) Cacheable() bool { return r.Metadata.Cacheable() }

type RendererOptions struct {
	Logger Logger // nil => NopLogger
	// Coalesce runs at most one computation per cache id at a time; concurrent renders
	// of the same id wait for and share its result. Off by default, which allows
	// duplicate computation when several requests miss together.
	Coalesce bool
}

// Renderer renders node trees through a Store. Keyed, cacheable nodes are served from
// the store when possible and written back on a miss; everything else is computed.
type Renderer[V any] struct {
	store    Store[V]
	log      Logger
	coalesce bool
	group    singleflight.Group
}

// NewRenderer binds a renderer to store. A nil store renders without caching.
func NewRenderer[V any](store Store[V], opts RendererOptions) *Renderer[V] {
	return &Renderer[V]{
		store:    store,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		coalesce: opts.Coalesce,
	}
}

// Render produces the value of n. Children render first, in order; a failing child or
// computation aborts the render, its error is returned unchanged, and nothing is
// written for the failing node or its ancestors. Store failures surface as errors
// matching ErrStoreUnavailable.
func (r *Renderer[V]) Render(ctx context.Context, n *Node[V], cr ContextResolver) (Result[V], error) {
	if n == nil {
		return Result[V]{}, fmt.Errorf("rendercache: nil node")
	}
	return r.render(ctx, n, cr)
}

func (r *Renderer[V]) render(ctx context.Context, n *Node[V], cr ContextResolver) (Result[V], error) {
	if n.err != nil {
		return Result[V]{}, n.err
	}
	md := n.EffectiveMetadata()
	if r.store == nil || !n.Keyed() || !md.Cacheable() {
		return r.build(ctx, n, cr, md)
	}

	key := CacheID(n.keys, md, cr)
	if !r.coalesce {
		return r.cached(ctx, key, n, cr, md)
	}
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.cached(ctx, key, n, cr, md)
	})
	if err != nil {
		return Result[V]{}, err
	}
	if shared {
		r.log.Debug("render coalesced", Fields{"key": key, "node": n.name})
	}
	return v.(Result[V]), nil
}

func (r *Renderer[V]) cached(ctx context.Context, key string, n *Node[V], cr ContextResolver, md Metadata) (Result[V], error) {
	e, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return Result[V]{}, err
	}
	if ok {
		return Result[V]{Value: e.Value, Metadata: e.Metadata, Key: key, Hit: true}, nil
	}

	obs, err := r.store.SnapshotTags(ctx, md.tags)
	if err != nil {
		return Result[V]{}, err
	}
	res, err := r.build(ctx, n, cr, md)
	if err != nil {
		return Result[V]{}, err
	}
	if err := r.store.SetWithVersions(ctx, key, res.Value, md, obs); err != nil {
		return Result[V]{}, err
	}
	r.log.Debug("rendered and stored", Fields{"key": key, "node": n.name, "max_age": md.MaxAge().String()})
	res.Key = key
	return res, nil
}

func (r *Renderer[V]) build(ctx context.Context, n *Node[V], cr ContextResolver, md Metadata) (Result[V], error) {
	values := make([]V, 0, len(n.children))
	for _, child := range n.children {
		cres, err := r.render(ctx, child, cr)
		if err != nil {
			return Result[V]{}, err
		}
		values = append(values, cres.Value)
	}

	var v V
	if n.compute != nil {
		var err error
		if v, err = n.compute(ctx, values); err != nil {
			return Result[V]{}, err
		}
	}
	return Result[V]{Value: v, Metadata: md}, nil
}
