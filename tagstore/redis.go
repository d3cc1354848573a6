package tagstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares tag counters across processes and survives restarts.
//
// With a TTL, counters of tags that stay quiet expire and read back as 0. An entry
// recorded before the tag's first bump also carries version 0, so after expiry it
// validates again: invalidated permanent entries come back. Only set a TTL when it
// is longer than the longest max-age in use and no permanent entry carries the
// store's tags.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ TagStore = (*Redis)(nil)

// NewRedis creates a Redis-backed tag store whose counters never expire.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL is NewRedis with counter keys expiring ttl after their last bump.
// ttl <= 0 disables expiry. See Redis for when a TTL is safe.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(tag string) string { return "tag:" + s.ns + ":" + tag }

func (s *Redis) Snapshot(ctx context.Context, tag string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(tag)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis tag counter parse: %w", err)
	}
	return u, nil
}

// SnapshotMany reads all counters with a single MGET.
func (s *Redis) SnapshotMany(ctx context.Context, tags []string) (map[string]uint64, error) {
	if len(tags) == 0 {
		return map[string]uint64{}, nil
	}
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = s.key(t)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint64, len(tags))
	for i, v := range vals {
		var raw string
		switch vv := v.(type) {
		case nil:
			out[tags[i]] = 0
			continue
		case string:
			raw = vv
		case []byte:
			raw = string(vv)
		default:
			raw = fmt.Sprint(vv)
		}
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis tag counter parse at %s: %w", tags[i], err)
		}
		out[tags[i]] = u
	}
	return out, nil
}

// Bump increments the counter. With a TTL, INCR and EXPIRE share one pipeline round-trip.
func (s *Redis) Bump(ctx context.Context, tag string) (uint64, error) {
	k := s.key(tag)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires counters itself when a TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying client.
func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
