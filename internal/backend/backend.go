// Package backend assembles a rendercache Store and its collaborators from config.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/rendercache"
	"github.com/unkn0wn-root/rendercache/codec"
	"github.com/unkn0wn-root/rendercache/internal/config"
	"github.com/unkn0wn-root/rendercache/log/zerologlog"
	pr "github.com/unkn0wn-root/rendercache/provider"
	bcp "github.com/unkn0wn-root/rendercache/provider/bigcache"
	"github.com/unkn0wn-root/rendercache/provider/memory"
	rdp "github.com/unkn0wn-root/rendercache/provider/redis"
	rtp "github.com/unkn0wn-root/rendercache/provider/ristretto"
	"github.com/unkn0wn-root/rendercache/provider/sqlite"
	"github.com/unkn0wn-root/rendercache/tagstore"
)

// Backend owns everything built from a Config and closes it in reverse order.
type Backend struct {
	Store rendercache.Store[string]
	Tags  tagstore.TagStore
	Log   zerolog.Logger

	rdb redis.UniversalClient
}

// NewLogger builds the host logger. Console format writes human readable lines to w.
func NewLogger(cfg config.Log, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// New builds the store described by cfg, logging through l.
func New(cfg config.Config, l zerolog.Logger) (*Backend, error) {
	b := &Backend{Log: l}

	if cfg.Provider.Kind == "redis" || cfg.Tags.Kind == "redis" {
		b.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	p, err := b.provider(cfg)
	if err != nil {
		b.closeClient()
		return nil, err
	}
	b.Tags = b.tagStore(cfg)

	c, err := Codec(cfg.Codec)
	if err != nil {
		b.abort(p)
		return nil, err
	}

	b.Store, err = rendercache.New[string](rendercache.Options[string]{
		Namespace: cfg.Namespace,
		Provider:  p,
		Codec:     c,
		Logger:    zerologlog.New(l),
		TagStore:  b.Tags,
	})
	if err != nil {
		b.abort(p)
		return nil, err
	}
	l.Info().
		Str("provider", cfg.Provider.Kind).
		Str("tags", cfg.Tags.Kind).
		Str("codec", cfg.Codec.Kind).
		Str("namespace", cfg.Namespace).
		Msg("store ready")
	return b, nil
}

func (b *Backend) provider(cfg config.Config) (pr.Provider, error) {
	switch cfg.Provider.Kind {
	case "memory":
		return memory.New(), nil
	case "ristretto":
		r := cfg.Provider.Ristretto
		return rtp.New(rtp.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			Metrics:     r.Metrics,
			Sync:        true,
		})
	case "bigcache":
		c := cfg.Provider.Bigcache
		return bcp.New(bcp.Config{
			LifeWindow:         c.LifeWindow,
			CleanWindow:        c.CleanWindow,
			MaxEntriesInWindow: c.MaxEntriesInWindow,
			MaxEntrySize:       c.MaxEntrySize,
			HardMaxCacheSizeMB: c.HardMaxCacheSizeMB,
		})
	case "redis":
		// the tag store or Close owns the client
		return rdp.New(rdp.Config{Client: b.rdb})
	case "sqlite":
		return sqlite.New(sqlite.Config{Path: cfg.Provider.SQLite.Path})
	default:
		return nil, fmt.Errorf("backend: unknown provider %q", cfg.Provider.Kind)
	}
}

func (b *Backend) tagStore(cfg config.Config) tagstore.TagStore {
	if cfg.Tags.Kind == "redis" {
		return tagstore.NewRedisWithTTL(b.rdb, cfg.Namespace, cfg.Tags.TTL)
	}
	return tagstore.NewLocal(cfg.Tags.CleanupInterval, cfg.Tags.Retention)
}

// Codec returns the string codec named by cfg, size-limited when MaxDecode is set.
func Codec(cfg config.Codec) (codec.Codec[string], error) {
	var c codec.Codec[string]
	switch cfg.Kind {
	case "string":
		c = codec.String{}
	case "json":
		c = codec.JSON[string]{}
	case "msgpack":
		c = codec.Msgpack[string]{}
	case "cbor":
		cb, err := codec.NewCBOR[string](false)
		if err != nil {
			return nil, err
		}
		c = cb
	default:
		return nil, fmt.Errorf("backend: unknown codec %q", cfg.Kind)
	}
	if cfg.MaxDecode > 0 {
		c = codec.Limit[string]{Inner: c, MaxDecode: cfg.MaxDecode}
	}
	return c, nil
}

// Close closes the store, then the tag store. The redis tag store closes the shared
// client; otherwise it is closed here.
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	if b.Store != nil {
		errs = append(errs, b.Store.Close(ctx))
	}
	if b.Tags != nil {
		if _, ok := b.Tags.(*tagstore.Redis); ok {
			b.rdb = nil
		}
		errs = append(errs, b.Tags.Close(ctx))
	}
	errs = append(errs, b.closeClient())
	return errors.Join(errs...)
}

func (b *Backend) abort(p pr.Provider) {
	ctx := context.Background()
	_ = p.Close(ctx)
	_ = b.Close(ctx)
}

func (b *Backend) closeClient() error {
	if b.rdb == nil {
		return nil
	}
	err := b.rdb.Close()
	b.rdb = nil
	return err
}
