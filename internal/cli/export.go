package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphtriple/pkg/graph"
	gtio "github.com/matzehuels/graphtriple/pkg/io"
)

type exportOpts struct {
	output string // file to write; stdout when empty
	edges  bool   // arguments are edge ids
}

func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Export the graph or single elements as triples",
		Long: `Export writes elements visible to --auths as triple lines.

Without arguments the whole graph is written: vertices first, then edges,
each in id order. With arguments only the named vertices (or edges with
--edges) are written. Values without a literal form appear as comments.`,
		Example: `  graphtriple export -o graph.nt
  graphtriple export v1 v2
  graphtriple export --edges v1_knows_v2 --auths A,B`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.edges, "edges", false, "treat arguments as edge ids")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, stdout io.Writer, ids []string, opts exportOpts) error {
	ws, err := c.openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	exp := gtio.NewExporter(gtio.WithExportLogger(c.Logger))
	prog := newProgress(c.Logger)

	if len(ids) == 0 && opts.output != "" {
		spinner := newSpinner(ctx, "Exporting graph...")
		spinner.Start()
		stats, err := exp.ExportFile(ctx, ws.store, ws.auths, opts.output)
		if err != nil {
			spinner.StopWithError("Export failed")
			return err
		}
		spinner.StopWithSuccess(fmt.Sprintf("Exported %d elements", stats.Elements))
		printFile(opts.output)
		reportUnsupported(stats)
		prog.done("export finished", "elements", stats.Elements, "lines", stats.Lines)
		return nil
	}

	var els []*graph.Element
	for _, id := range ids {
		ref := graph.VertexRef(id)
		if opts.edges {
			ref = graph.EdgeRef(id)
		}
		el, err := ws.store.Element(ctx, ref, ws.auths)
		if err != nil {
			return err
		}
		els = append(els, el)
	}

	w, closeOut, err := outputWriter(stdout, opts.output)
	if err != nil {
		return err
	}

	var stats gtio.ExportStats
	if len(ids) == 0 {
		stats, err = exp.ExportGraph(ctx, ws.store, ws.auths, w)
	} else {
		stats, err = exp.WriteElements(ctx, w, els)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if opts.output != "" {
		printSuccess("Exported %d elements", stats.Elements)
		printFile(opts.output)
		reportUnsupported(stats)
	}
	prog.done("export finished", "elements", stats.Elements, "lines", stats.Lines)
	return nil
}

func reportUnsupported(stats gtio.ExportStats) {
	if stats.Unsupported > 0 {
		printWarning("%d values had no literal form and were written as comments", stats.Unsupported)
	}
}
