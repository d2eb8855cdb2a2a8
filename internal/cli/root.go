package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphtriple/pkg/buildinfo"
	"github.com/matzehuels/graphtriple/pkg/config"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Move labelled property graphs in and out of a store as triples",
		Long: `graphtriple imports and exports a property graph as triple lines.

Every element, property value and metadata entry may carry a visibility
label in brackets, which is translated into a stored visibility expression
on import and written back on export.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&c.storeBackend, "store", "", "graph store backend: memory or badger")
	pf.StringVar(&c.storePath, "store-path", "", "badger store directory")
	pf.StringSliceVar(&c.auths, "auths", nil, "authorization tokens of the reader and writer")

	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
