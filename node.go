package rendercache

import (
	"context"
	"strconv"
)

// Computation produces a node's value from the rendered values of its children,
// in child order. It is the expensive work the cache exists to avoid.
type Computation[V any] func(ctx context.Context, children []V) (V, error)

// Node is one unit of a render tree: its own metadata, an optional computation,
// ordered children and optional explicit keys.
//
// Children without keys bubble their metadata into the node. A child with keys is
// cached under its own id and is an isolation boundary: nothing below it bubbles up.
// Nodes are built per request and are not safe for concurrent mutation.
type Node[V any] struct {
	name     string
	md       Metadata
	keys     []string
	children []*Node[V]
	compute  Computation[V]
	err      error
}

// NewNode creates a node. A nil compute yields the zero value of V.
func NewNode[V any](name string, md Metadata, compute Computation[V]) *Node[V] {
	return &Node[V]{name: name, md: md, compute: compute}
}

func (n *Node[V]) Name() string { return n.name }

// Metadata returns the node's own metadata, without bubbling.
func (n *Node[V]) Metadata() Metadata { return n.md }

// AddChild appends child and returns n for chaining.
func (n *Node[V]) AddChild(child *Node[V]) *Node[V] {
	n.children = append(n.children, child)
	return n
}

func (n *Node[V]) Children() []*Node[V] {
	out := make([]*Node[V], len(n.children))
	copy(out, n.children)
	return out
}

// WithKeys sets the node's explicit keys and returns n; passing no keys clears them.
// An empty key is recorded as a validation error that Err and Render report.
func (n *Node[V]) WithKeys(keys ...string) *Node[V] {
	n.keys = clone(keys)
	n.err = nil
	for i, k := range keys {
		if k == "" {
			n.err = &ValidationError{Field: "key", Reason: "empty key at index " + strconv.Itoa(i)}
			break
		}
	}
	return n
}

// Err reports a construction error recorded by WithKeys.
func (n *Node[V]) Err() error { return n.err }

func (n *Node[V]) Keys() []string { return clone(n.keys) }

func (n *Node[V]) Keyed() bool { return len(n.keys) > 0 }

// EffectiveMetadata is the node's own metadata merged with the effective metadata of
// every child that has no explicit keys.
func (n *Node[V]) EffectiveMetadata() Metadata {
	md := n.md
	for _, c := range n.children {
		if c.Keyed() {
			continue
		}
		md = md.Merge(c.EffectiveMetadata())
	}
	return md
}
