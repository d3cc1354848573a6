package demo

import (
	"net/http"

	"github.com/unkn0wn-root/rendercache"
)

func md(maxAge rendercache.MaxAge, tags, contexts []string) rendercache.Metadata {
	return rendercache.MustMetadata(maxAge, tags, contexts)
}

// realTimeBlock is never cached.
func (s *Server) realTimeBlock(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("block", md(rendercache.Uncacheable, nil, nil), s.stamp("Real time:")).
		WithKeys("demo", "block")
}

func (s *Server) maxAge(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("max-age", md(10, nil, nil), s.slow("Max Age 10 seconds.")).
		WithKeys("demo", "max-age")
}

func (s *Server) permanent(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("permanent", md(rendercache.Permanent, nil, nil), s.slow("Cache permanent")).
		WithKeys("demo", "permanent")
}

// noCache is keyed but uncacheable: it is computed on every request and the response
// carries Cache-Control: no-store.
func (s *Server) noCache(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("no-cache", md(rendercache.Uncacheable, nil, nil), s.slow("Internal Page Cache (Kill)")).
		WithKeys("demo", "no-cache")
}

func (s *Server) contextsURL(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("contexts-url", md(rendercache.Permanent, nil, []string{CtxQueryArgs}), s.slow("Context query_args")).
		WithKeys("demo", "contexts-url")
}

func (s *Server) contextsURLParam(*http.Request) *rendercache.Node[string] {
	cx := []string{CtxQueryArgs + ":var"}
	return rendercache.NewNode("contexts-url-param", md(30, nil, cx), s.slow("Context query_args if variable var in query")).
		WithKeys("demo", "contexts-url-param")
}

func (s *Server) tagsNode(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode("tags-node", md(rendercache.Permanent, []string{"node:1"}, nil), s.slow("Cache tags Node 1")).
		WithKeys("demo", "tags-node")
}

// tagsUser varies by user and is invalidated by the user's tag.
func (s *Server) tagsUser(r *http.Request) *rendercache.Node[string] {
	id := userID(r)
	tag := "user:" + id
	greeting := "Cache tags for current user. Hello user " + id + ", your tag: " + tag + "."
	return rendercache.NewNode("tags-user", md(rendercache.Permanent, []string{tag}, []string{CtxUser}), s.slow(greeting)).
		WithKeys("demo", "tags-user")
}

// tree: a permanent keyed parent over a keyed max-age 10 child. The child is a cache
// boundary, so the parent stays permanent and keeps serving the child it was built with.
func (s *Server) tree(*http.Request) *rendercache.Node[string] {
	child := rendercache.NewNode("child", md(10, nil, nil), s.stamp("CHILD:")).
		WithKeys("demo", "tree-child")
	return rendercache.NewNode("parent", md(rendercache.Permanent, nil, nil), s.stamp("PARENT:")).
		WithKeys("demo", "tree-parent").
		AddChild(child)
}

// noKeys: unkeyed siblings bubble into the keyed parent, so the whole page takes the
// strictest max-age (10) and varies by the query string.
func (s *Server) noKeys(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode[string]("no-keys", md(rendercache.Permanent, nil, nil), join).
		WithKeys("demo", "no-keys").
		AddChild(rendercache.NewNode("permanent", md(rendercache.Permanent, nil, nil), s.stamp("PERMANENT:"))).
		AddChild(rendercache.NewNode("max-age", md(10, nil, nil), s.stamp("MAX-AGE 10:"))).
		AddChild(rendercache.NewNode("context-url", md(rendercache.Permanent, nil, []string{CtxQueryArgs}), s.stamp("CONTEXT URL:")))
}

// keys: the same siblings with keys of their own are cached independently under an
// unkeyed page.
func (s *Server) keys(*http.Request) *rendercache.Node[string] {
	return rendercache.NewNode[string]("keys", md(rendercache.Permanent, nil, nil), join).
		AddChild(rendercache.NewNode("permanent", md(rendercache.Permanent, nil, nil), s.stamp("PERMANENT:")).
			WithKeys("demo", "keys-permanent")).
		AddChild(rendercache.NewNode("max-age", md(10, nil, nil), s.stamp("MAX-AGE 10:")).
			WithKeys("demo", "keys-max-age")).
		AddChild(rendercache.NewNode("context-url", md(rendercache.Permanent, nil, []string{CtxQueryArgs}), s.stamp("CONTEXT URL:")).
			WithKeys("demo", "keys-contexts"))
}
