package rendercache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counted returns a computation that joins its children around label and counts calls.
func counted(label string, calls *atomic.Int32) Computation[string] {
	return func(_ context.Context, children []string) (string, error) {
		calls.Add(1)
		return label + "(" + strings.Join(children, ",") + ")", nil
	}
}

func newTestRenderer(t *testing.T, coalesce bool) (*Renderer[string], Store[string], *memProvider) {
	t.Helper()
	mp := newMemProvider()
	s := newTestStore(t, mp, nil)
	return NewRenderer[string](s, RendererOptions{Coalesce: coalesce}), s, mp
}

func TestRenderMissThenHit(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRenderer(t, false)

	var calls atomic.Int32
	build := func() *Node[string] {
		return NewNode("block", MustMetadata(Permanent, []string{"node:1"}, nil), counted("block", &calls)).
			WithKeys("block", "1").
			AddChild(NewNode("a", MustMetadata(10, nil, nil), counted("a", &calls)))
	}

	res, err := r.Render(ctx, build(), nil)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, "block(a())", res.Value)
	assert.Equal(t, "block:1", res.Key)
	assert.Equal(t, MaxAge(10), res.Metadata.MaxAge())
	assert.Equal(t, int32(2), calls.Load())

	res, err = r.Render(ctx, build(), nil)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, "block(a())", res.Value)
	assert.Equal(t, []string{"node:1"}, res.Metadata.Tags())
	assert.Equal(t, int32(2), calls.Load(), "hit must not recompute the subtree")
}

func TestRenderInvalidationRecomputes(t *testing.T) {
	ctx := context.Background()
	r, s, _ := newTestRenderer(t, false)

	var calls atomic.Int32
	n := NewNode("block", MustMetadata(Permanent, []string{"node:1"}, nil), counted("b", &calls)).WithKeys("b")

	_, err := r.Render(ctx, n, nil)
	require.NoError(t, err)
	require.NoError(t, s.InvalidateTags(ctx, "node:1"))

	res, err := r.Render(ctx, n, nil)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRenderUncacheableSubtreeIsNeverStored(t *testing.T) {
	ctx := context.Background()
	r, _, mp := newTestRenderer(t, false)

	var calls atomic.Int32
	n := NewNode("block", MustMetadata(Permanent, nil, nil), counted("b", &calls)).
		WithKeys("b").
		AddChild(NewNode("form", MustMetadata(Uncacheable, nil, nil), counted("form", &calls)))

	for i := 0; i < 2; i++ {
		res, err := r.Render(ctx, n, nil)
		require.NoError(t, err)
		assert.False(t, res.Hit)
		assert.False(t, res.Cacheable())
	}
	assert.Equal(t, int32(4), calls.Load())
	assert.False(t, mp.has("entry:render:b"))
}

func TestRenderUnkeyedNodeIsNotStored(t *testing.T) {
	ctx := context.Background()
	r, _, mp := newTestRenderer(t, false)

	var calls atomic.Int32
	n := NewNode("page", MustMetadata(Permanent, nil, nil), counted("p", &calls))
	_, err := r.Render(ctx, n, nil)
	require.NoError(t, err)
	_, err = r.Render(ctx, n, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, mp.m)
}

func TestRenderKeyedChildCachedIndependently(t *testing.T) {
	ctx := context.Background()
	r, _, mp := newTestRenderer(t, false)

	var calls atomic.Int32
	child := NewNode("user", MustMetadata(60, []string{"user:7"}, nil), counted("u", &calls)).WithKeys("user", "7")
	page := NewNode("page", MustMetadata(Permanent, nil, nil), counted("p", &calls)).AddChild(child)

	res, err := r.Render(ctx, page, nil)
	require.NoError(t, err)
	assert.Equal(t, "p(u())", res.Value)
	// the keyed child's max-age does not bubble into the page
	assert.Equal(t, Permanent, res.Metadata.MaxAge())
	assert.True(t, mp.has("entry:render:user:7"))

	_, err = r.Render(ctx, page, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "page recomputes, child is served from the store")
}

func TestRenderComputationErrorIsReturnedUnchanged(t *testing.T) {
	ctx := context.Background()
	r, _, mp := newTestRenderer(t, false)

	boom := errors.New("upstream failed")
	var calls atomic.Int32
	n := NewNode("block", MustMetadata(Permanent, nil, nil), counted("b", &calls)).
		WithKeys("b").
		AddChild(NewNode[string]("broken", Metadata{}, func(context.Context, []string) (string, error) {
			return "", boom
		}))

	_, err := r.Render(ctx, n, nil)
	require.Error(t, err)
	assert.Same(t, boom, err)
	assert.Equal(t, int32(0), calls.Load(), "parent must not compute after a child failed")
	assert.False(t, mp.has("entry:render:b"))
}

func TestRenderEmptyKeyIsValidationError(t *testing.T) {
	ctx := context.Background()
	r, _, mp := newTestRenderer(t, false)

	var calls atomic.Int32
	bad := NewNode("user", MustMetadata(60, nil, nil), counted("u", &calls)).WithKeys("user", "")
	_, err := r.Render(ctx, bad, nil)
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	page := NewNode("page", MustMetadata(Permanent, nil, nil), counted("p", &calls)).AddChild(bad)
	_, err = r.Render(ctx, page, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, mp.m)
}

func TestRenderContextsVaryCacheID(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRenderer(t, false)

	var calls atomic.Int32
	n := NewNode("list", MustMetadata(Permanent, nil, []string{"url.query_args"}), counted("l", &calls)).WithKeys("list")

	a, err := r.Render(ctx, n, Contexts{"url.query_args": "page=1"})
	require.NoError(t, err)
	b, err := r.Render(ctx, n, Contexts{"url.query_args": "page=2"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, "list:[url.query_args]=page=1", a.Key)
	assert.Equal(t, int32(2), calls.Load())

	again, err := r.Render(ctx, n, Contexts{"url.query_args": "page=1"})
	require.NoError(t, err)
	assert.True(t, again.Hit)
}

func TestRenderKeysWithColonsDoNotShareEntry(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRenderer(t, false)

	var calls atomic.Int32
	joined := NewNode("x", MustMetadata(Permanent, nil, nil), counted("joined", &calls)).WithKeys("a:b")
	split := NewNode("x", MustMetadata(Permanent, nil, nil), counted("split", &calls)).WithKeys("a", "b")

	first, err := r.Render(ctx, joined, nil)
	require.NoError(t, err)
	second, err := r.Render(ctx, split, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.False(t, second.Hit)
	assert.Equal(t, "split()", second.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRenderStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.failGet = errors.New("down")
	r := NewRenderer[string](newTestStore(t, mp, nil), RendererOptions{})

	n := NewNode[string]("b", Metadata{}, nil).WithKeys("b")
	_, err := r.Render(ctx, n, nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRenderWithoutStore(t *testing.T) {
	r := NewRenderer[string](nil, RendererOptions{})
	var calls atomic.Int32
	n := NewNode("b", Metadata{}, counted("b", &calls)).WithKeys("b")
	res, err := r.Render(context.Background(), n, nil)
	require.NoError(t, err)
	assert.Equal(t, "b()", res.Value)
	assert.False(t, res.Hit)

	_, err = r.Render(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRenderCoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRenderer(t, true)

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	n := NewNode[string]("slow", MustMetadata(Permanent, nil, nil), func(context.Context, []string) (string, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "done", nil
	}).WithKeys("slow")

	const workers = 8
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Render(ctx, n, nil)
			results[i], errs[i] = res.Value, err
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "done", results[i])
	}
	// every worker either joined the in-flight computation or hit the stored result
	assert.Equal(t, int32(1), calls.Load())
}
