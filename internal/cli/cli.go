package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphtriple/pkg/cache"
	"github.com/matzehuels/graphtriple/pkg/config"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/graph/badger"
	"github.com/matzehuels/graphtriple/pkg/graph/memory"
	gtio "github.com/matzehuels/graphtriple/pkg/io"
	"github.com/matzehuels/graphtriple/pkg/visibility"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

// appName is the application name used for directories and display.
const appName = "graphtriple"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Global flags.
	configPath   string
	storeBackend string
	storePath    string
	auths        []string

	cfg *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the configuration once and applies the global flag
// overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.storeBackend != "" {
		cfg.Store.Backend = c.storeBackend
	}
	if c.storePath != "" {
		cfg.Store.Path = c.storePath
	}
	if len(c.auths) > 0 {
		cfg.Visibility.Authorizations = c.auths
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Workspace - store, queue and importer shared by the graph commands
// =============================================================================

type workspace struct {
	cfg      *config.Config
	store    graph.Store
	queue    workqueue.Queue
	importer *gtio.Importer
	auths    visibility.Authorizations
}

// openWorkspace opens the configured store and work queue. The caller closes
// the workspace.
func (c *CLI) openWorkspace() (*workspace, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	var store graph.Store
	switch cfg.Store.Backend {
	case config.StoreBadger:
		c.Logger.Debug("opening badger store", "path", cfg.Store.Path)
		bs, err := badger.Open(badger.Options{Path: cfg.Store.Path, Logger: c.Logger})
		if err != nil {
			return nil, err
		}
		store = bs
	default:
		c.Logger.Debug("using in-memory store")
		store = memory.New()
	}

	queue, err := workqueue.Open(cfg.QueueOptions())
	if err != nil {
		store.Close()
		return nil, err
	}

	tr := visibility.NewDirectTranslator(cfg.Visibility.SystemAuthorization)
	return &workspace{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		importer: gtio.NewImporter(store, tr, gtio.WithLogger(c.Logger), gtio.WithQueue(queue)),
		auths:    visibility.NewAuthorizations(cfg.Visibility.Authorizations...),
	}, nil
}

func (w *workspace) Close() error {
	return errors.Join(w.queue.Close(), w.store.Close())
}

// newCache returns the configured render cache.
func (c *CLI) newCache(cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheFile:
		fc, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return cache.Instrumented(fc), nil
	case config.CacheRedis:
		return cache.Instrumented(cache.NewRedisCache(cfg.Cache.RedisAddr)), nil
	}
	return cache.NewNullCache(), nil
}

// =============================================================================
// Output
// =============================================================================

// outputWriter creates path, or returns stdout when path is empty. The
// returned func closes the file.
func outputWriter(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
