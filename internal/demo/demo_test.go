package demo

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/rendercache"
	"github.com/unkn0wn-root/rendercache/codec"
	"github.com/unkn0wn-root/rendercache/provider/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestServer(t *testing.T) (http.Handler, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store, err := rendercache.New[string](rendercache.Options[string]{
		Namespace: "render",
		Provider:  memory.NewWithClock(clk.Now),
		Codec:     codec.String{},
		Clock:     clk.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(t.Context()) })

	s := New(Options{Store: store, Logger: zerolog.Nop(), Clock: clk.Now})
	return s.Router(), clk
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := do(t, h, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec
}

func TestMaxAgePage(t *testing.T) {
	h, clk := newTestServer(t)

	first := get(t, h, "/cache/max-age")
	assert.Equal(t, "MISS", first.Header().Get(HeaderCache))
	assert.Equal(t, "10", first.Header().Get(HeaderMaxAge))
	assert.Equal(t, "public, max-age=10", first.Header().Get("Cache-Control"))
	assert.Contains(t, first.Body.String(), "Max Age 10 seconds. 12:00:00")

	clk.Advance(5 * time.Second)
	second := get(t, h, "/cache/max-age")
	assert.Equal(t, "HIT", second.Header().Get(HeaderCache))
	assert.Equal(t, first.Body.String(), second.Body.String())

	clk.Advance(5 * time.Second)
	third := get(t, h, "/cache/max-age")
	assert.Equal(t, "MISS", third.Header().Get(HeaderCache))
	assert.Contains(t, third.Body.String(), "12:00:10")
}

func TestPermanentPage(t *testing.T) {
	h, clk := newTestServer(t)
	get(t, h, "/cache/permanent")
	clk.Advance(24 * time.Hour)
	rec := get(t, h, "/cache/permanent")
	assert.Equal(t, "HIT", rec.Header().Get(HeaderCache))
	assert.Equal(t, "permanent", rec.Header().Get(HeaderMaxAge))
	assert.Equal(t, "public", rec.Header().Get("Cache-Control"))
}

func TestUncacheablePages(t *testing.T) {
	h, _ := newTestServer(t)
	for _, path := range []string{"/cache/no-cache", "/block"} {
		for i := 0; i < 2; i++ {
			rec := get(t, h, path)
			assert.Equal(t, "UNCACHEABLE", rec.Header().Get(HeaderCache), path)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), path)
		}
	}
}

func TestContextsVaryEntries(t *testing.T) {
	h, _ := newTestServer(t)

	assert.Equal(t, "MISS", get(t, h, "/cache/contexts/url?a=1").Header().Get(HeaderCache))
	assert.Equal(t, "HIT", get(t, h, "/cache/contexts/url?a=1").Header().Get(HeaderCache))
	assert.Equal(t, "MISS", get(t, h, "/cache/contexts/url?a=2").Header().Get(HeaderCache))

	rec := get(t, h, "/cache/contexts/url-param?var=x&other=1")
	assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
	assert.Equal(t, "url.query_args:var", rec.Header().Get(HeaderContexts))
	// only var matters
	assert.Equal(t, "HIT", get(t, h, "/cache/contexts/url-param?var=x&other=2").Header().Get(HeaderCache))
	assert.Equal(t, "MISS", get(t, h, "/cache/contexts/url-param?var=y").Header().Get(HeaderCache))
}

func TestTagInvalidation(t *testing.T) {
	h, _ := newTestServer(t)

	get(t, h, "/cache/tags/node")
	rec := get(t, h, "/cache/tags/node")
	assert.Equal(t, "HIT", rec.Header().Get(HeaderCache))
	assert.Equal(t, "node:1", rec.Header().Get(HeaderTags))

	inv := do(t, h, http.MethodPost, "/cache/invalidate?tag=node:1")
	require.Equal(t, http.StatusNoContent, inv.Code)

	assert.Equal(t, "MISS", get(t, h, "/cache/tags/node").Header().Get(HeaderCache))

	bad := do(t, h, http.MethodPost, "/cache/invalidate")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestUserTags(t *testing.T) {
	h, _ := newTestServer(t)

	rec := get(t, h, "/cache/tags/user?user=7")
	assert.Equal(t, "MISS", rec.Header().Get(HeaderCache))
	assert.Equal(t, "user:7", rec.Header().Get(HeaderTags))
	assert.Contains(t, rec.Body.String(), "user 7")

	assert.Equal(t, "MISS", get(t, h, "/cache/tags/user?user=8").Header().Get(HeaderCache))

	req := httptest.NewRequest(http.MethodGet, "/cache/tags/user", nil)
	req.Header.Set("X-User", "7")
	hdr := httptest.NewRecorder()
	h.ServeHTTP(hdr, req)
	assert.Equal(t, "HIT", hdr.Header().Get(HeaderCache), "header and query identify the same user")

	do(t, h, http.MethodPost, "/cache/invalidate?tag=user:7")
	assert.Equal(t, "MISS", get(t, h, "/cache/tags/user?user=7").Header().Get(HeaderCache))
	assert.Equal(t, "HIT", get(t, h, "/cache/tags/user?user=8").Header().Get(HeaderCache))
}

func TestNoKeysBubbleIntoPage(t *testing.T) {
	h, _ := newTestServer(t)
	rec := get(t, h, "/cache/no-keys?page=2")
	assert.Equal(t, "10", rec.Header().Get(HeaderMaxAge))
	assert.Equal(t, CtxQueryArgs, rec.Header().Get(HeaderContexts))
	assert.Contains(t, rec.Body.String(), "PERMANENT:")
	assert.Contains(t, rec.Body.String(), "CONTEXT URL:")
}

func TestKeyedSiblingsCachedIndependently(t *testing.T) {
	h, clk := newTestServer(t)

	first := get(t, h, "/cache/keys")
	assert.Equal(t, "permanent", first.Header().Get(HeaderMaxAge), "keyed children do not bubble")

	clk.Advance(time.Second)
	assert.Equal(t, first.Body.String(), get(t, h, "/cache/keys").Body.String())

	clk.Advance(10 * time.Second)
	body := get(t, h, "/cache/keys").Body.String()
	assert.Contains(t, body, "PERMANENT: 12:00:00")
	assert.Contains(t, body, "MAX-AGE 10: 12:00:11")
}

func TestTreeParentIsPermanent(t *testing.T) {
	h, clk := newTestServer(t)
	first := get(t, h, "/cache/tree")
	assert.Equal(t, "permanent", first.Header().Get(HeaderMaxAge))

	clk.Advance(time.Minute)
	second := get(t, h, "/cache/tree")
	assert.Equal(t, "HIT", second.Header().Get(HeaderCache))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestCacheCode(t *testing.T) {
	h, _ := newTestServer(t)

	first := get(t, h, "/cache/code")
	assert.Contains(t, first.Body.String(), "Not in cache")
	assert.Equal(t, "no-store", first.Header().Get("Cache-Control"))

	second := get(t, h, "/cache/code")
	assert.Contains(t, second.Body.String(), "In cache")
	assert.Equal(t, "demo:my-tag", second.Header().Get(HeaderTags))

	do(t, h, http.MethodPost, "/cache/invalidate?tag=demo:my-tag")
	assert.Contains(t, get(t, h, "/cache/code").Body.String(), "Not in cache")
}
