// Package sqlite persists frames in a SQLite table so a single host keeps its
// cache across restarts. Uses the pure-Go glebarez/go-sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (key TEXT PRIMARY KEY, expires INTEGER NOT NULL, bytes BLOB NOT NULL);
CREATE INDEX IF NOT EXISTS cache_entries_expires_idx ON cache_entries (expires);`

type Provider struct {
	db  *sql.DB
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// Path of the database file. ":memory:" keeps everything in one connection.
	Path string
	// Now overrides the clock used for TTL decisions (tests).
	Now func() time.Time
}

func New(cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	if cfg.Path == ":memory:" {
		// every new connection would see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{db: db, now: now}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expires int64
	var b []byte
	err := p.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache_entries WHERE key = ?", key).Scan(&expires, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expires > 0 && p.now().UnixNano() >= expires {
		_, _ = p.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ? AND expires = ?", key, expires)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var expires int64 // 0 => no TTL
	if ttl > 0 {
		expires = p.now().Add(ttl).UnixNano()
	}
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO cache_entries (key, expires, bytes) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET expires = excluded.expires, bytes = excluded.bytes",
		key, expires, value)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// Purge deletes every row whose TTL has passed and returns how many were removed.
func (p *Provider) Purge(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE expires > 0 AND expires <= ?", p.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *Provider) Close(_ context.Context) error { return p.db.Close() }
