package rendercache

import "github.com/unkn0wn-root/rendercache/internal/util"

// ContextResolver supplies the value of a cache context for the current request,
// e.g. "url.query_args" -> "a=1&b=2" or "user" -> "7".
type ContextResolver interface {
	ContextValue(name string) string
}

// Contexts is a fixed set of context values. Unknown contexts resolve to "".
type Contexts map[string]string

func (c Contexts) ContextValue(name string) string { return c[name] }

// ResolverFunc adapts a function to ContextResolver.
type ResolverFunc func(name string) string

func (f ResolverFunc) ContextValue(name string) string { return f(name) }

// CacheID derives the cache key of a keyed node: keys joined by ":" followed by
// ":[context]=value" for every context in md, in sorted order. Separators inside
// keys, contexts and values are backslash-escaped. A nil resolver resolves every
// context to "".
func CacheID(keys []string, md Metadata, r ContextResolver) string {
	var vars []util.Variation
	if len(md.contexts) > 0 {
		vars = make([]util.Variation, len(md.contexts))
		for i, cx := range md.contexts {
			vars[i] = util.Variation{Context: cx}
			if r != nil {
				vars[i].Value = r.ContextValue(cx)
			}
		}
	}
	return util.CacheID(keys, vars)
}
