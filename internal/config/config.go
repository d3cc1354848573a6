// Package config loads the YAML configuration of the rendercache demo host.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogEnv overrides Log.Level when set.
const LogEnv = "RENDERCACHE_LOG"

type Config struct {
	Listen    string        `yaml:"listen"`
	Namespace string        `yaml:"namespace"`
	Log       Log           `yaml:"log"`
	Provider  Provider      `yaml:"provider"`
	Redis     Redis         `yaml:"redis"`
	Tags      Tags          `yaml:"tags"`
	Codec     Codec         `yaml:"codec"`
	Coalesce  bool          `yaml:"coalesce"`
	Work      time.Duration `yaml:"work"` // simulated cost of every demo computation
}

type Log struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

type Provider struct {
	Kind      string    `yaml:"kind"` // memory, ristretto, bigcache, redis, sqlite
	Ristretto Ristretto `yaml:"ristretto"`
	Bigcache  Bigcache  `yaml:"bigcache"`
	SQLite    SQLite    `yaml:"sqlite"`
}

type Ristretto struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type Bigcache struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	CleanWindow        time.Duration `yaml:"clean_window"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window"`
	MaxEntrySize       int           `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

// Redis is shared by the redis provider and the redis tag store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Tags struct {
	Kind            string        `yaml:"kind"` // local or redis
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	TTL             time.Duration `yaml:"ttl"` // redis counters only
}

type Codec struct {
	Kind      string `yaml:"kind"` // string, json, msgpack, cbor
	MaxDecode int    `yaml:"max_decode"`
}

// Default is the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		Listen:    ":8080",
		Namespace: "render",
		Log:       Log{Level: "info", Format: "console"},
		Provider: Provider{
			Kind: "memory",
			Ristretto: Ristretto{
				NumCounters: 1e5,
				MaxCost:     64 << 20,
				BufferItems: 64,
			},
			Bigcache: Bigcache{
				LifeWindow:  time.Hour,
				CleanWindow: 5 * time.Minute,
			},
			SQLite: SQLite{Path: "rendercache.db"},
		},
		Redis: Redis{Addr: "localhost:6379"},
		Tags:  Tags{Kind: "local"},
		Codec: Codec{Kind: "string"},
		Work:  2 * time.Second,
	}
}

// Load reads path over Default, applies the environment and validates the result.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if lvl := os.Getenv(LogEnv); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	errs = appendIfNot(errs, "log.level", c.Log.Level, "trace", "debug", "info", "warn", "error")
	errs = appendIfNot(errs, "log.format", c.Log.Format, "console", "json")
	errs = appendIfNot(errs, "provider.kind", c.Provider.Kind, "memory", "ristretto", "bigcache", "redis", "sqlite")
	errs = appendIfNot(errs, "tags.kind", c.Tags.Kind, "local", "redis")
	errs = appendIfNot(errs, "codec.kind", c.Codec.Kind, "string", "json", "msgpack", "cbor")

	switch c.Provider.Kind {
	case "bigcache":
		if c.Provider.Bigcache.LifeWindow <= 0 {
			errs = append(errs, errors.New("provider.bigcache.life_window must be positive"))
		}
	case "sqlite":
		if c.Provider.SQLite.Path == "" {
			errs = append(errs, errors.New("provider.sqlite.path is required"))
		}
	}
	if (c.Provider.Kind == "redis" || c.Tags.Kind == "redis") && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Tags.Retention < 0 || c.Work < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func appendIfNot(errs []error, field, v string, allowed ...string) []error {
	for _, a := range allowed {
		if v == a {
			return errs
		}
	}
	return append(errs, fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", ")))
}
