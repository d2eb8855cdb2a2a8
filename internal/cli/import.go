package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphtriple/pkg/config"
	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	gtio "github.com/matzehuels/graphtriple/pkg/io"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

// importOpts holds the command-line flags for the import command. Empty
// values fall back to the [import] section of the config.
type importOpts struct {
	visibility  string   // default label for lines without one
	user        string   // recorded as modifiedBy
	timezone    string   // IANA zone for date-times without an offset
	workDir     string   // base directory for streaming-value paths
	priority    string   // work-queue priority: low, normal, high
	metadata    []string // key=value entries attached to every value
	concurrency int      // files imported at once
	failFast    bool     // stop at the first failing line
	restrict    bool     // keep streaming-value files under the work dir
	progress    bool     // show the live progress view
}

func (c *CLI) importCommand() *cobra.Command {
	var opts importOpts

	cmd := &cobra.Command{
		Use:   "import <file|pattern>...",
		Short: "Import triple files into the graph",
		Long: `Import triple files into the graph store, one mutation per line.

Arguments may be glob patterns, including ** for any number of directories.
Lines that fail are reported and skipped unless --fail-fast is set. Every
imported value records the run id printed at the end.`,
		Example: `  graphtriple import people.nt
  graphtriple import 'data/**/*.nt' --visibility A --user alice
  graphtriple import dump.nt --meta http://example.org#batch=7 --progress`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd.Context(), args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.visibility, "visibility", "", "label for lines without one")
	f.StringVar(&opts.user, "user", "", "user recorded as the modifier")
	f.StringVar(&opts.timezone, "timezone", "", "time zone for date-times without an offset")
	f.StringVar(&opts.workDir, "work-dir", "", "directory for relative streaming-value paths (default: each file's directory)")
	f.StringVar(&opts.priority, "priority", "", "work-queue priority: low, normal or high")
	f.StringArrayVar(&opts.metadata, "meta", nil, "metadata key=value attached to every value (repeatable)")
	f.IntVarP(&opts.concurrency, "concurrency", "j", 0, "files imported at once")
	f.BoolVar(&opts.failFast, "fail-fast", false, "stop at the first failing line")
	f.BoolVar(&opts.restrict, "restrict-paths", false, "refuse streaming-value files outside the work directory")
	f.BoolVar(&opts.progress, "progress", false, "show live per-file progress")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, patterns []string, opts importOpts) error {
	paths, err := expandPatterns(patterns)
	if err != nil {
		return err
	}

	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	iopts, err := importOptions(ws.cfg, opts)
	if err != nil {
		return err
	}
	iopts.Authorizations = ws.auths
	runID := uuid.NewString()
	iopts.Metadata = iopts.Metadata.With(graph.ImportRunMetadata, runID, "")

	concurrency := ws.cfg.Import.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}

	c.Logger.Debug("importing", "files", len(paths), "concurrency", concurrency, "run", runID)
	prog := newProgress(c.Logger)

	var sums []gtio.Summary
	if opts.progress {
		sums, err = runImportView(ctx, ws.importer, paths, iopts, concurrency)
	} else {
		sums, err = ws.importer.ImportFiles(ctx, paths, iopts, concurrency)
	}
	if len(sums) > 0 {
		fmt.Fprintln(statusOut, summaryTable(sums))
	}
	if err != nil {
		return err
	}

	var lines, failed int
	for _, s := range sums {
		lines += s.Lines
		failed += s.Failed
	}
	prog.done("import finished", "files", len(paths), "lines", lines, "failed", failed)
	printKeyValue("Run", runID)
	if failed > 0 {
		printWarning("Failed lines are logged above with their line numbers")
		return errors.New(errors.ErrCodeInvalidInput, "%d of %d lines failed", failed, lines)
	}
	printSuccess("Imported %d files", len(paths))
	printNextStep("Export the graph", appName+" export -o graph.nt")
	return nil
}

// importOptions merges the flags over the [import] config section.
// Authorizations are left to the caller.
func importOptions(cfg *config.Config, opts importOpts) (gtio.ImportOptions, error) {
	loc, err := cfg.Location()
	if err != nil {
		return gtio.ImportOptions{}, err
	}
	if opts.timezone != "" {
		if loc, err = time.LoadLocation(opts.timezone); err != nil {
			return gtio.ImportOptions{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "--timezone")
		}
	}

	priority := cfg.Import.Priority
	if opts.priority != "" {
		priority = opts.priority
	}
	p, err := workqueue.ParsePriority(priority)
	if err != nil {
		return gtio.ImportOptions{}, err
	}

	md, err := parseMetadata(opts.metadata)
	if err != nil {
		return gtio.ImportOptions{}, err
	}

	return gtio.ImportOptions{
		Metadata:          md,
		TimeZone:          loc,
		DefaultVisibility: firstNonEmpty(opts.visibility, cfg.Import.DefaultVisibility),
		WorkingDir:        opts.workDir,
		RestrictPaths:     opts.restrict || cfg.Import.RestrictPaths,
		User:              firstNonEmpty(opts.user, cfg.Import.User),
		Priority:          p,
		FailOnFirstError:  opts.failFast || cfg.Import.FailOnFirstError,
	}, nil
}

// parseMetadata turns key=value flags into string metadata entries.
func parseMetadata(kvs []string) (graph.Metadata, error) {
	var md graph.Metadata
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return md, errors.New(errors.ErrCodeInvalidInput, "--meta %q is not key=value", kv)
		}
		md = md.With(strings.TrimSpace(k), v, "")
	}
	return md, nil
}

// expandPatterns resolves glob arguments to files. Plain paths are kept even
// when missing so that the import reports them.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "bad pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no files match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
