// Package cli implements the graphtriple command-line interface.
//
// The commands move a labelled property graph in and out of a store as
// triple lines:
//   - import: read triple files, expanding glob patterns such as data/**/*.nt
//   - export: write the whole visible graph, or chosen elements, as triples
//   - render: draw the visible graph as Graphviz DOT or SVG
//   - serve: run the HTTP API with Prometheus metrics
//   - config: show or create the configuration file
//   - cache: manage the render cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging through the
// charmbracelet/log logger held by [CLI].
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with timestamps such as
// "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the elapsed time of one operation. It is not safe for
// concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Imported 42 lines (1.234s)".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))...)
}
