// Package pkg holds the graphtriple libraries.
//
// # Overview
//
// graphtriple moves a labelled, multi-valued property graph in and out of a
// store as one triple per line. Every element, property value and metadata
// entry may carry a visibility label that controls who can read it.
//
//  1. [triple] - the line grammar: parse, serialize, typed literals
//  2. [visibility] - labels, authorizations and the label translator
//  3. [graph] - the store interface with memory and badger backends
//  4. [io] - import and export mediators between lines and the store
//  5. [workqueue], [cache], [observability] - re-index queue, render cache, hooks
//  6. [render], [api], [config] - DOT/SVG output, HTTP surface, TOML config
//
// # Data Flow
//
//	triple lines
//	     ↓
//	[triple] Parse  →  Resolve (typed literal → Go value)
//	     ↓
//	[io] Importer   →  graph.Mutation  →  [graph] Store.Apply
//	     ↓
//	[workqueue] push changed elements
//
// Export walks the store and writes each element back through [triple].
//
// # Quick Start
//
//	store := memory.New()
//	imp := io.NewImporter(store, visibility.NewDirectTranslator("system"))
//	sum, err := imp.ImportFile(ctx, "people.nt", io.ImportOptions{
//	    Authorizations: visibility.NewAuthorizations("system"),
//	})
//
//	exp := io.NewExporter()
//	_, err = exp.ExportGraph(ctx, store, visibility.NewAuthorizations("system"), os.Stdout)
//
// [triple]: github.com/matzehuels/graphtriple/pkg/triple
// [visibility]: github.com/matzehuels/graphtriple/pkg/visibility
// [graph]: github.com/matzehuels/graphtriple/pkg/graph
// [io]: github.com/matzehuels/graphtriple/pkg/io
// [workqueue]: github.com/matzehuels/graphtriple/pkg/workqueue
// [cache]: github.com/matzehuels/graphtriple/pkg/cache
// [observability]: github.com/matzehuels/graphtriple/pkg/observability
// [render]: github.com/matzehuels/graphtriple/pkg/render
// [api]: github.com/matzehuels/graphtriple/pkg/api
// [config]: github.com/matzehuels/graphtriple/pkg/config
package pkg
