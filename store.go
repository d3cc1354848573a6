package rendercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/rendercache/codec"
	"github.com/unkn0wn-root/rendercache/internal/wire"
	pr "github.com/unkn0wn-root/rendercache/provider"
	ts "github.com/unkn0wn-root/rendercache/tagstore"
)

const defaultSweep = time.Hour

type store[V any] struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[V]
	log      Logger
	hooks    Hooks
	tags     ts.TagStore
	ownsTags bool
	now      func() time.Time
	enabled  bool

	computeSetCost SetCostFunc
}

func newStore[V any](opts Options[V]) (*store[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("rendercache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("rendercache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("rendercache: namespace is required")
	}

	s := &store[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
	}

	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.Clock != nil {
		s.now = opts.Clock
	} else {
		s.now = time.Now
	}
	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if opts.TagStore != nil {
		s.tags = opts.TagStore
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		s.tags = ts.NewLocal(sweep, opts.TagRetention)
		s.ownsTags = true
	}
	return s, nil
}

func (s *store[V]) Enabled() bool { return s.enabled }

// Close closes the provider, and the tag store when the store created it.
// A caller-supplied TagStore may be shared and is left open.
func (s *store[V]) Close(ctx context.Context) error {
	if s.ownsTags {
		_ = s.tags.Close(ctx)
	}
	return s.provider.Close(ctx)
}

func (s *store[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	var miss Entry[V]
	if key == "" {
		return miss, false, ErrInvalidKey
	}
	if !s.enabled {
		return miss, false, nil
	}
	k := s.storageKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		return miss, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return miss, false, nil
	}

	rec, err := wire.DecodeEntry(raw)
	if err != nil {
		s.selfHeal(ctx, k, ReasonCorrupt)
		return miss, false, nil
	}
	createdAt := time.Unix(0, rec.CreatedAt)
	maxAge := MaxAge(rec.MaxAge)
	if expired(createdAt, maxAge, s.now()) {
		s.selfHeal(ctx, k, ReasonExpired)
		return miss, false, nil
	}

	tags := make([]string, len(rec.Tags))
	for i, t := range rec.Tags {
		tags[i] = t.Tag
	}
	if len(tags) > 0 {
		cur, err := s.tags.SnapshotMany(ctx, tags)
		if err != nil {
			s.hooks.TagSnapshotError(len(tags), err)
			return miss, false, &StoreError{Op: "snapshot", Key: key, Err: err}
		}
		for _, t := range rec.Tags {
			if cur[t.Tag] != t.Version {
				s.selfHeal(ctx, k, ReasonInvalidated)
				return miss, false, nil
			}
		}
	}

	v, err := s.codec.Decode(rec.Payload)
	if err != nil {
		s.selfHeal(ctx, k, ReasonValueDecode)
		return miss, false, nil
	}
	md, err := NewMetadata(maxAge, tags, rec.Contexts)
	if err != nil {
		// a well-framed entry with metadata we would never write
		s.selfHeal(ctx, k, ReasonCorrupt)
		return miss, false, nil
	}
	return Entry[V]{Key: key, Value: v, Metadata: md, CreatedAt: createdAt}, true, nil
}

func (s *store[V]) Set(ctx context.Context, key string, value V, md Metadata) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !s.enabled {
		return nil
	}
	if !md.Cacheable() {
		return s.dropUncacheable(ctx, key)
	}
	obs, err := s.SnapshotTags(ctx, md.tags)
	if err != nil {
		return err
	}
	return s.write(ctx, key, value, md, obs)
}

func (s *store[V]) SetWithVersions(ctx context.Context, key string, value V, md Metadata, observed TagVersions) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !s.enabled {
		return nil
	}
	if !md.Cacheable() {
		return s.dropUncacheable(ctx, key)
	}
	if len(md.tags) > 0 {
		cur, err := s.SnapshotTags(ctx, md.tags)
		if err != nil {
			return err
		}
		for _, t := range md.tags {
			obs, ok := observed[t]
			if !ok || cur[t] != obs {
				// a tag moved while the value was being computed; skip the stale write
				s.log.Debug("SetWithVersions skipped (tag invalidated)", Fields{"key": key, "tag": t})
				s.hooks.StaleWriteSkipped(s.storageKey(key))
				return nil
			}
		}
	}
	return s.write(ctx, key, value, md, observed)
}

func (s *store[V]) write(ctx context.Context, key string, value V, md Metadata, versions TagVersions) error {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	rec := wire.Record{
		CreatedAt: s.now().UnixNano(),
		MaxAge:    int64(md.MaxAge()),
		Contexts:  md.contexts,
		Payload:   payload,
	}
	if len(md.tags) > 0 {
		rec.Tags = make([]wire.TagVersion, len(md.tags))
		for i, t := range md.tags {
			rec.Tags[i] = wire.TagVersion{Tag: t, Version: versions[t]}
		}
	}
	b, err := wire.EncodeEntry(rec)
	if err != nil {
		return err
	}

	k := s.storageKey(key)
	ok, err := s.provider.Set(ctx, k, b, s.computeSetCost(k, b), md.MaxAge().Duration())
	if err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	if !ok {
		s.log.Debug("Set rejected by provider (pressure)", Fields{"key": key})
		s.hooks.ProviderSetRejected(k)
	}
	return nil
}

func (s *store[V]) dropUncacheable(ctx context.Context, key string) error {
	s.log.Debug("Set with max-age 0; entry dropped", Fields{"key": key})
	if err := s.provider.Del(ctx, s.storageKey(key)); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *store[V]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !s.enabled {
		return nil
	}
	if err := s.provider.Del(ctx, s.storageKey(key)); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *store[V]) InvalidateTags(ctx context.Context, tags ...string) error {
	if !s.enabled || len(tags) == 0 {
		return nil
	}
	var failed map[string]error
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		v, err := s.tags.Bump(ctx, t)
		if err != nil {
			s.log.Error("tag bump error", Fields{"tag": t, "err": err})
			s.hooks.TagBumpError(t, err)
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[t] = err
			continue
		}
		s.log.Debug("invalidated tag", Fields{"tag": t, "version": v})
	}
	if failed != nil {
		return &InvalidateError{Failed: failed}
	}
	return nil
}

func (s *store[V]) SnapshotTags(ctx context.Context, tags []string) (TagVersions, error) {
	if len(tags) == 0 {
		return TagVersions{}, nil
	}
	m, err := s.tags.SnapshotMany(ctx, tags)
	if err != nil {
		s.log.Warn("tag snapshot error", Fields{"count": len(tags), "err": err})
		s.hooks.TagSnapshotError(len(tags), err)
		return nil, &StoreError{Op: "snapshot", Err: err}
	}
	return TagVersions(m), nil
}

func (s *store[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	if err := s.provider.Del(ctx, storageKey); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("self-heal delete failed", Fields{"key": storageKey, "reason": reason, "err": err})
	}
	s.hooks.SelfHeal(storageKey, reason)
}

func (s *store[V]) storageKey(userKey string) string {
	return "entry:" + s.ns + ":" + userKey
}

// expired reports whether an entry created at createdAt with maxAge is no longer valid at now.
func expired(createdAt time.Time, maxAge MaxAge, now time.Time) bool {
	switch {
	case maxAge.IsPermanent():
		return false
	case !maxAge.Cacheable():
		return true
	default:
		return !now.Before(createdAt.Add(maxAge.Duration()))
	}
}
