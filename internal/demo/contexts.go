package demo

import (
	"net/http"
	"strings"

	"github.com/unkn0wn-root/rendercache"
)

// Cache contexts understood by the demo host.
const (
	CtxQueryArgs = "url.query_args"
	CtxUser      = "user"
)

// requestContexts resolves cache contexts against one request:
//
//	url.query_args      canonical (sorted) query string
//	url.query_args:var  value of query argument var
//	user                current user id
type requestContexts struct {
	r    *http.Request
	user string
}

var _ rendercache.ContextResolver = requestContexts{}

func (c requestContexts) ContextValue(name string) string {
	switch {
	case name == CtxQueryArgs:
		return c.r.URL.Query().Encode()
	case strings.HasPrefix(name, CtxQueryArgs+":"):
		return c.r.URL.Query().Get(strings.TrimPrefix(name, CtxQueryArgs+":"))
	case name == CtxUser:
		return c.user
	default:
		return ""
	}
}

// userID is taken from the "user" query argument, then the X-User header.
// Requests without either are anonymous ("0").
func userID(r *http.Request) string {
	if u := r.URL.Query().Get("user"); u != "" {
		return u
	}
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return "0"
}
