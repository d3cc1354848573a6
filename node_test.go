package rendercache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(name string, md Metadata) *Node[string] {
	return NewNode[string](name, md, nil)
}

func TestBubblingTakesStricterMaxAge(t *testing.T) {
	tests := []struct {
		name     string
		parent   MaxAge
		children []MaxAge
		want     MaxAge
	}{
		{"uncacheable child poisons permanent parent", Permanent, []MaxAge{Uncacheable}, Uncacheable},
		{"bounded sibling wins over permanent", Permanent, []MaxAge{Permanent, 10}, 10},
		{"bounded parent keeps its limit", 30, []MaxAge{Permanent}, 30},
		{"no children", 20, nil, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := leaf("parent", MustMetadata(tt.parent, nil, nil))
			for _, a := range tt.children {
				p.AddChild(leaf("child", MustMetadata(a, nil, nil)))
			}
			assert.Equal(t, tt.want, p.EffectiveMetadata().MaxAge())
		})
	}
}

func TestBubblingUnionsTagsAndContextsThroughLevels(t *testing.T) {
	grandchild := leaf("gc", MustMetadata(60, []string{"user:7"}, []string{"user"}))
	child := leaf("c", MustMetadata(Permanent, []string{"node:1"}, nil)).AddChild(grandchild)
	root := leaf("root", MustMetadata(Permanent, []string{"config:site"}, []string{"url.query_args"})).AddChild(child)

	md := root.EffectiveMetadata()
	assert.Equal(t, MaxAge(60), md.MaxAge())
	assert.Equal(t, []string{"config:site", "node:1", "user:7"}, md.Tags())
	assert.Equal(t, []string{"url.query_args", "user"}, md.Contexts())

	// own metadata is not changed by bubbling
	assert.Equal(t, Permanent, root.Metadata().MaxAge())
}

func TestKeyedChildIsIsolated(t *testing.T) {
	keyed := leaf("block", MustMetadata(Uncacheable, []string{"block:1"}, []string{"user"})).WithKeys("block", "1")
	root := leaf("root", MustMetadata(Permanent, []string{"page"}, nil)).AddChild(keyed)

	md := root.EffectiveMetadata()
	assert.Equal(t, Permanent, md.MaxAge())
	assert.Equal(t, []string{"page"}, md.Tags())
	assert.Empty(t, md.Contexts())

	// the keyed child still reports its own effective metadata
	assert.False(t, keyed.EffectiveMetadata().Cacheable())
}

func TestWithKeys(t *testing.T) {
	n := leaf("n", Metadata{})
	assert.False(t, n.Keyed())

	n.WithKeys("a", "b")
	require.True(t, n.Keyed())
	require.NoError(t, n.Err())
	assert.Equal(t, []string{"a", "b"}, n.Keys())

	keys := n.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, n.Keys())

	n.WithKeys()
	assert.False(t, n.Keyed())
}

func TestWithKeysRejectsEmptyKey(t *testing.T) {
	n := leaf("n", Metadata{}).WithKeys("a", "", "b")
	assert.True(t, n.Keyed(), "an invalid node must not silently fall back to a different cache id")

	err := n.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
	assert.ErrorIs(t, err, ErrInvalidKey)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "key", ve.Field)

	n.WithKeys("a", "b")
	assert.NoError(t, n.Err(), "setting valid keys clears the error")
}

func TestChildrenKeepOrder(t *testing.T) {
	root := leaf("root", Metadata{})
	root.AddChild(leaf("a", Metadata{})).AddChild(leaf("b", Metadata{}))
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Name())
	assert.Equal(t, "b", children[1].Name())
}
