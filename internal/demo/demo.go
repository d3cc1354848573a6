// Package demo serves pages whose fragments are cached through rendercache, one page
// per caching behavior: max-age, permanent, contexts, tags, bubbling and keys.
package demo

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/rendercache"
	"github.com/unkn0wn-root/rendercache/log/zerologlog"
)

// Response headers describing how a page was produced.
const (
	HeaderCache    = "X-Render-Cache" // HIT, MISS or UNCACHEABLE
	HeaderMaxAge   = "X-Render-Cache-Max-Age"
	HeaderTags     = "X-Render-Cache-Tags"
	HeaderContexts = "X-Render-Cache-Contexts"
)

const codeKey = "demo:code"

type Options struct {
	Store    rendercache.Store[string]
	Logger   zerolog.Logger
	Work     time.Duration    // simulated cost of every slow computation
	Clock    func() time.Time // nil => time.Now
	Coalesce bool
}

type Server struct {
	store    rendercache.Store[string]
	renderer *rendercache.Renderer[string]
	log      zerolog.Logger
	work     time.Duration
	now      func() time.Time
}

func New(opts Options) *Server {
	s := &Server{
		store: opts.Store,
		log:   opts.Logger,
		work:  opts.Work,
		now:   opts.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.renderer = rendercache.NewRenderer[string](opts.Store, rendercache.RendererOptions{
		Logger:   zerologlog.New(opts.Logger),
		Coalesce: opts.Coalesce,
	})
	return s
}

// Router returns the demo routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/block", s.page(s.realTimeBlock))
	r.Route("/cache", func(r chi.Router) {
		r.Get("/code", s.cacheCode)
		r.Get("/max-age", s.page(s.maxAge))
		r.Get("/permanent", s.page(s.permanent))
		r.Get("/no-cache", s.page(s.noCache))
		r.Get("/contexts/url", s.page(s.contextsURL))
		r.Get("/contexts/url-param", s.page(s.contextsURLParam))
		r.Get("/tags/node", s.page(s.tagsNode))
		r.Get("/tags/user", s.page(s.tagsUser))
		r.Get("/tree", s.page(s.tree))
		r.Get("/no-keys", s.page(s.noKeys))
		r.Get("/keys", s.page(s.keys))
		r.Post("/invalidate", s.invalidate)
	})
	return r
}

// slow simulates an expensive computation: it waits, then stamps label with the time.
func (s *Server) slow(label string) rendercache.Computation[string] {
	return func(ctx context.Context, _ []string) (string, error) {
		if s.work > 0 {
			t := time.NewTimer(s.work)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return fmt.Sprintf("%s %s", label, s.now().Format("15:04:05")), nil
	}
}

// stamp is a cheap computation: label and the time, followed by the rendered children.
func (s *Server) stamp(label string) rendercache.Computation[string] {
	return func(_ context.Context, children []string) (string, error) {
		out := fmt.Sprintf("%s %s<br />", label, s.now().Format("15:04:05"))
		return out + strings.Join(children, ""), nil
	}
}

func join(_ context.Context, children []string) (string, error) {
	return strings.Join(children, ""), nil
}

type builder func(r *http.Request) *rendercache.Node[string]

// page renders the tree built for the request and writes it with cache headers.
func (s *Server) page(build builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.renderer.Render(r.Context(), build(r), requestContexts{r: r, user: userID(r)})
		if err != nil {
			s.log.Error().Err(err).Str("path", r.URL.Path).Msg("render failed")
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		status := "MISS"
		switch {
		case !res.Cacheable():
			status = "UNCACHEABLE"
		case res.Hit:
			status = "HIT"
		}
		writePage(w, status, res.Metadata, res.Value)
	}
}

func writePage(w http.ResponseWriter, status string, md rendercache.Metadata, body string) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set(HeaderCache, status)
	h.Set(HeaderMaxAge, md.MaxAge().String())
	if tags := md.Tags(); len(tags) > 0 {
		h.Set(HeaderTags, strings.Join(tags, " "))
	}
	if cx := md.Contexts(); len(cx) > 0 {
		h.Set(HeaderContexts, strings.Join(cx, " "))
	}
	switch age := md.MaxAge(); {
	case !age.Cacheable():
		h.Set("Cache-Control", "no-store")
	case age.IsPermanent():
		h.Set("Cache-Control", "public")
	default:
		h.Set("Cache-Control", "public, max-age="+strconv.FormatInt(int64(age), 10))
	}
	_, _ = fmt.Fprint(w, body)
}

// cacheCode uses the store directly: a permanent entry tagged demo:my-tag. The page
// itself is never cached so the hit/miss message stays accurate.
func (s *Server) cacheCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	md := rendercache.MustMetadata(rendercache.Permanent, []string{"demo:my-tag"}, nil)

	e, ok, err := s.store.Get(ctx, codeKey)
	if err != nil {
		s.log.Error().Err(err).Msg("store get failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	status, msg, data := "HIT", "In cache", e.Value
	if !ok {
		status, msg = "MISS", "Not in cache"
		obs, err := s.store.SnapshotTags(ctx, md.Tags())
		if err == nil {
			data, err = s.slow("Time 10 seconds.")(ctx, nil)
		}
		if err == nil {
			err = s.store.SetWithVersions(ctx, codeKey, data, md, obs)
		}
		if err != nil {
			s.log.Error().Err(err).Msg("cache code failed")
			http.Error(w, "cache code failed", http.StatusInternalServerError)
			return
		}
	}
	page, _ := md.WithMaxAge(rendercache.Uncacheable)
	writePage(w, status, page, fmt.Sprintf("<p>%s</p>%s", msg, data))
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tag"]
	if len(tags) == 0 {
		http.Error(w, "missing tag", http.StatusBadRequest)
		return
	}
	if err := s.store.InvalidateTags(r.Context(), tags...); err != nil {
		s.log.Error().Err(err).Strs("tags", tags).Msg("invalidate failed")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info().Strs("tags", tags).Msg("tags invalidated")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", ww.Status()).
			Str("cache", ww.Header().Get(HeaderCache)).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
