package tagstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTags(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisWithTTL(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "ns", ttl)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mr
}

func TestRedisSnapshotManyZeroForUnknownTags(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisTags(t, 0)

	for i := 0; i < 2; i++ {
		if _, err := s.Bump(ctx, "node:1"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SnapshotMany(ctx, []string{"node:1", "node:2", "user:1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got["node:1"] != 2 || got["node:2"] != 0 || got["user:1"] != 0 {
		t.Fatalf("got=%v want node:1=2, node:2=0, user:1=0", got)
	}

	v, err := s.Snapshot(ctx, "node:2")
	if err != nil || v != 0 {
		t.Fatalf("Snapshot(unknown)=%d,%v want 0,nil", v, err)
	}
	empty, err := s.SnapshotMany(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("SnapshotMany(nil)=%v,%v", empty, err)
	}
}

func TestRedisBumpWithoutTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTags(t, 0)

	v, err := s.Bump(ctx, "node:1")
	if err != nil || v != 1 {
		t.Fatalf("Bump=%d,%v want 1,nil", v, err)
	}
	if !mr.Exists("tag:ns:node:1") {
		t.Fatalf("counter key missing, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("tag:ns:node:1"); ttl != 0 {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestRedisBumpWithTTLExpiresCounter(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTags(t, time.Minute)

	for i := 1; i <= 2; i++ {
		v, err := s.Bump(ctx, "node:1")
		if err != nil || v != uint64(i) {
			t.Fatalf("Bump #%d=%d,%v", i, v, err)
		}
	}
	if ttl := mr.TTL("tag:ns:node:1"); ttl != time.Minute {
		t.Fatalf("ttl=%v want %v", ttl, time.Minute)
	}

	mr.FastForward(2 * time.Minute)
	v, err := s.Snapshot(ctx, "node:1")
	if err != nil || v != 0 {
		t.Fatalf("expired counter should read 0, got %d,%v", v, err)
	}
}

func TestRedisNamespacesDoNotShareCounters(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := NewRedis(rdb, "a")
	b := NewRedis(rdb, "b")
	if _, err := a.Bump(ctx, "node:1"); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Snapshot(ctx, "node:1"); v != 0 {
		t.Fatalf("namespace b saw a's bump: %d", v)
	}
}

func TestRedisCorruptCounter(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTags(t, 0)
	if err := mr.Set("tag:ns:bad", "abc"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Snapshot(ctx, "bad"); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("Snapshot: expected parse error, got %v", err)
	}
	if _, err := s.SnapshotMany(ctx, []string{"ok", "bad"}); err == nil || !strings.Contains(err.Error(), "at bad") {
		t.Fatalf("SnapshotMany: expected parse error naming the tag, got %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTags(t, 0)
	mr.Close()

	if _, err := s.Bump(ctx, "node:1"); err == nil {
		t.Fatal("Bump: expected error with redis down")
	}
	if _, err := s.SnapshotMany(ctx, []string{"node:1"}); err == nil {
		t.Fatal("SnapshotMany: expected error with redis down")
	}
}
