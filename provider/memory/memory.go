// Package memory is a map-backed provider with lazy TTL expiry.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

type entry struct {
	b   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

func New() *Provider { return NewWithClock(time.Now) }

// NewWithClock is New with an injectable clock for TTL decisions.
func NewWithClock(now func() time.Time) *Provider {
	return &Provider{m: make(map[string]entry), now: now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		p.mu.Lock()
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)
	p.mu.Lock()
	p.m[key] = entry{b: b, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

// Len reports stored keys, expired ones included until they are read.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Provider) Close(_ context.Context) error { return nil }
