package cli

import (
	"context"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphtriple/pkg/cache"
	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file; stdout when empty
	format   string // dot or svg; inferred from the output extension
	detailed bool   // list property values inside vertices
	noCache  bool   // bypass the render cache
}

func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the visible graph as DOT or SVG",
		Long: `Render draws the vertices and edges visible to --auths.

The format follows the output file extension (.svg, .dot, .gv) unless
--format is given, and defaults to SVG. SVG output is cached by the
content of the graph.`,
		Example: `  graphtriple render -o graph.svg
  graphtriple render --format dot --detailed | dot -Tpng > graph.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	f.StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(render.Formats, ", "))
	f.BoolVar(&opts.detailed, "detailed", false, "show property values")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, stdout io.Writer, opts renderOpts) error {
	format, err := renderFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	rc, err := c.newCache(ws.cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer rc.Close()

	r := render.NewRenderer(rc, cache.NewDefaultKeyer())
	r.Logger = c.Logger
	prog := newProgress(c.Logger)

	data, cached, err := r.Render(ctx, ws.store, ws.auths, format, render.Options{Detailed: opts.detailed})
	if err != nil {
		return err
	}

	w, closeOut, err := outputWriter(stdout, opts.output)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	prog.done("render finished", "format", format, "cached", cached)
	if opts.output != "" {
		printSuccess("Rendered %s", format)
		printFile(opts.output)
		printRenderStats(len(data), cached)
	}
	return nil
}

// renderFormat picks the explicit format, else the one named by the output
// extension, else SVG.
func renderFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".dot", ".gv":
			format = render.FormatDOT
		default:
			format = render.FormatSVG
		}
	}
	format = strings.ToLower(format)
	if !slices.Contains(render.Formats, format) {
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want %s)", format, strings.Join(render.Formats, ", "))
	}
	return format, nil
}
