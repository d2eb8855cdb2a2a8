package render

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphtriple/pkg/cache"
	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// Output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// Formats lists the supported output formats.
var Formats = []string{FormatDOT, FormatSVG}

// Renderer renders graphs through a cache.
type Renderer struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRenderer returns a renderer. Nil arguments select a NullCache and the
// DefaultKeyer.
func NewRenderer(c cache.Cache, keyer cache.Keyer) *Renderer {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Renderer{Cache: c, Keyer: keyer, Logger: log.Default()}
}

// Render returns the diagram of the graph visible to auths in format and
// whether it came from the cache. Cache failures are logged and otherwise
// ignored.
func (r *Renderer) Render(ctx context.Context, store graph.Store, auths visibility.Authorizations, format string, opts Options) ([]byte, bool, error) {
	if format != FormatDOT && format != FormatSVG {
		return nil, false, errors.New(errors.ErrCodeInvalidFormat, "unsupported render format %q", format)
	}
	dot, err := ToDOT(ctx, store, auths, opts)
	if err != nil {
		return nil, false, err
	}
	if format == FormatDOT {
		return []byte(dot), false, nil
	}

	key := r.Keyer.RenderKey(cache.Hash([]byte(dot)), cache.RenderKeyOpts{Format: format, Detailed: opts.Detailed})
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("render cache read failed", "err", err)
	}
	if hit {
		return data, true, nil
	}

	data, err = RenderSVG(ctx, dot)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err != nil {
		r.Logger.Warn("render cache write failed", "err", err)
	}
	return data, false, nil
}
