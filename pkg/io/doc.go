// Package io imports and exports graph triples.
//
// # Overview
//
// A triple line encodes one graph mutation: a concept type, an edge, a
// property value or a metadata entry on a property value. The [Importer]
// turns lines into [graph.Mutation] values and applies each one to a
// [graph.Store]; the [Exporter] writes stored elements back as lines that the
// importer accepts.
//
// # Import
//
// Use [Importer.ImportLine] for a single line, [Importer.ReadTriples] for a
// stream, [Importer.ImportFile] for a file and [Importer.ImportFiles] for
// several files in parallel:
//
//	imp := io.NewImporter(store, visibility.NewDirectTranslator("system"))
//	sum, err := imp.ImportFile(ctx, "people.nt", io.ImportOptions{
//	    TimeZone: time.UTC,
//	    User:     "loader",
//	})
//
// Each non-blank, non-comment line results in exactly one call to
// [graph.Store.Apply], so a failed line leaves nothing behind. Streams are
// flushed once at the end and the changed elements are pushed to the work
// queue, if one is configured. Lines within a stream are applied in order:
// an edge line usually depends on earlier concept-type lines creating its
// endpoints.
//
// Visibility labels are passed through a [visibility.Translator]. A line
// without a label uses [ImportOptions.DefaultVisibility]; a metadata entry
// without one inherits its property value's label. The label as written is
// recorded on the element and property value so that export reproduces it.
//
// # Export
//
// [Exporter.WriteElement] writes a header comment, the element's concept type
// or edge line, then one line per property value and metadata entry:
//
//	# Vertex: v1
//	<v1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org#person>
//	<v1> <http://example.org#name> "Joe"
//
// Values without a literal form are written as comment lines carrying a
// diagnostic, so the output stays importable.
//
// # Concurrency
//
// Importer and Exporter are safe for concurrent use. Concurrency is across
// streams, never within one.
package io
