// Package config loads graphtriple's TOML configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/visibility"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

// Config is the complete configuration.
type Config struct {
	Import     ImportConfig     `toml:"import"`
	Store      StoreConfig      `toml:"store"`
	Visibility VisibilityConfig `toml:"visibility"`
	Queue      QueueConfig      `toml:"queue"`
	Cache      CacheConfig      `toml:"cache"`
	Server     ServerConfig     `toml:"server"`
}

// ImportConfig holds import defaults.
type ImportConfig struct {
	// TimeZone names the IANA zone for date-times without an offset.
	TimeZone          string `toml:"timezone"`
	DefaultVisibility string `toml:"default_visibility"`
	User              string `toml:"user"`
	FailOnFirstError  bool   `toml:"fail_on_first_error"`
	// Concurrency bounds the files imported at once.
	Concurrency int `toml:"concurrency"`
	// RestrictPaths confines streaming-value files to the importing file's
	// directory.
	RestrictPaths bool   `toml:"restrict_paths"`
	Priority      string `toml:"priority"`
}

// Store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// StoreConfig selects the graph store.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// VisibilityConfig configures label translation.
type VisibilityConfig struct {
	SystemAuthorization string `toml:"system_authorization"`
	// Authorizations are the reader's tokens for export and render.
	Authorizations []string `toml:"authorizations"`
}

// QueueConfig selects the re-index work queue.
type QueueConfig struct {
	Backend     string `toml:"backend"`
	RedisAddr   string `toml:"redis_addr"`
	RedisKey    string `toml:"redis_key"`
	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject"`
}

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// CacheConfig selects the render cache.
type CacheConfig struct {
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	RedisAddr string `toml:"redis_addr"`
}

// ServerConfig configures `graphtriple serve`.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			TimeZone:    "UTC",
			Concurrency: 4,
			Priority:    workqueue.PriorityNormal.String(),
		},
		Store: StoreConfig{
			Backend: StoreBadger,
			Path:    filepath.Join(dataDir(), "graph"),
		},
		Visibility: VisibilityConfig{
			SystemAuthorization: "system",
			Authorizations:      []string{"system"},
		},
		Queue: QueueConfig{
			Backend:     workqueue.BackendNone,
			RedisKey:    workqueue.DefaultRedisKey,
			NATSSubject: workqueue.DefaultNATSSubject,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			Dir:     filepath.Join(cacheDir(), "graphtriple"),
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{5 * time.Minute},
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/graphtriple/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "graphtriple", "config.toml")
}

func dataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "graphtriple")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "graphtriple")
	}
	return "graphtriple-data"
}

func cacheDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return d
	}
	return os.TempDir()
}

// Load reads path over the defaults and validates the result. An empty path
// reads DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	c := Default()
	md, err := toml.DecodeFile(path, c)
	switch {
	case os.IsNotExist(err) && !explicit:
		return c, nil
	case os.IsNotExist(err):
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Import.Concurrency < 1 {
		return invalid("import.concurrency must be at least 1")
	}
	if _, err := workqueue.ParsePriority(c.Import.Priority); err != nil {
		return invalid("import.priority: %v", err)
	}
	if src := c.Import.DefaultVisibility; src != "" {
		if err := visibility.Visibility(strings.TrimPrefix(src, visibility.LiteralPrefix)).Validate(); err != nil {
			return invalid("import.default_visibility: %v", err)
		}
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreBadger:
		if c.Store.Path == "" {
			return invalid("store.path is required for the badger backend")
		}
	default:
		return invalid("store.backend %q is not one of memory, badger", c.Store.Backend)
	}

	switch c.Queue.Backend {
	case workqueue.BackendNone:
	case workqueue.BackendRedis:
		if c.Queue.RedisAddr == "" {
			return invalid("queue.redis_addr is required for the redis backend")
		}
	case workqueue.BackendNATS:
		if c.Queue.NATSURL == "" {
			return invalid("queue.nats_url is required for the nats backend")
		}
	default:
		return invalid("queue.backend %q is not one of none, redis, nats", c.Queue.Backend)
	}

	switch c.Cache.Backend {
	case CacheNone:
	case CacheFile:
		if c.Cache.Dir == "" {
			return invalid("cache.dir is required for the file backend")
		}
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return invalid("cache.redis_addr is required for the redis backend")
		}
	default:
		return invalid("cache.backend %q is not one of none, file, redis", c.Cache.Backend)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	return nil
}

// Location resolves Import.TimeZone.
func (c *Config) Location() (*time.Location, error) {
	if c.Import.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Import.TimeZone)
	if err != nil {
		return nil, invalid("import.timezone: %v", err)
	}
	return loc, nil
}

// QueueOptions converts the queue section for workqueue.Open.
func (c *Config) QueueOptions() workqueue.Options {
	return workqueue.Options{
		Backend:     c.Queue.Backend,
		RedisAddr:   c.Queue.RedisAddr,
		RedisKey:    c.Queue.RedisKey,
		NATSURL:     c.Queue.NATSURL,
		NATSSubject: c.Queue.NATSSubject,
	}
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidConfig, format, args...)
}
