// Package sloghooks reports store events through log/slog.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := async.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	store, _ := rendercache.New[string](rendercache.Options[string]{
//	    Namespace: "render",
//	    Provider:  provider,
//	    Codec:     codec.String{},
//	    Hooks:     hooks,
//	})
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/rendercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery   uint64
	StaleWriteEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	staleCtr    atomic.Uint64
}

var _ rendercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("rendercache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) TagSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rendercache.tag_snapshot_error",
		"count", count,
		"err", err)
}

// TagBumpError logs at error level: until the bump succeeds, entries carrying the
// tag keep being served.
func (h *Hooks) TagBumpError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("rendercache.tag_bump_error",
		"tag", tag,
		"err", err)
}

func (h *Hooks) StaleWriteSkipped(storageKey string) {
	if h.l == nil || !sample(h.opts.StaleWriteEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("rendercache.stale_write_skipped",
		"key", h.redact(storageKey))
}
