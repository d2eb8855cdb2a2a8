package io

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/graph/memory"
	"github.com/matzehuels/graphtriple/pkg/triple"
)

func quietExporter() *Exporter {
	return NewExporter(WithExportLogger(log.New(io.Discard)))
}

func importLines(t *testing.T, lines ...string) *memory.Store {
	t.Helper()
	imp, store := newTestImporter(t)
	sum, err := imp.ReadTriples(context.Background(), strings.NewReader(strings.Join(lines, "\n")), ImportOptions{Authorizations: system})
	if err != nil {
		t.Fatalf("ReadTriples() error: %v", err)
	}
	if sum.Failed != 0 {
		t.Fatalf("ReadTriples() failed lines: %v", sum.Errors)
	}
	return store
}

func TestWriteElement(t *testing.T) {
	el := &graph.Element{
		Type: graph.Vertex,
		ID:   "v1",
		Properties: []graph.Property{
			{Name: graph.ConceptTypeProperty, Value: person},
			{Name: graph.VisibilitySourceProperty, Value: "A"},
			{Key: "k1", Name: name, Value: "Joe", Metadata: graph.NewMetadata(
				graph.MetadataEntry{Key: graph.ConfidenceMetadata, Value: 0.9},
				graph.MetadataEntry{Key: graph.VisibilitySourceProperty, Value: "B"},
			)},
		},
	}

	var buf bytes.Buffer
	stats, err := quietExporter().WriteElement(context.Background(), &buf, el)
	if err != nil {
		t.Fatalf("WriteElement() error: %v", err)
	}
	want := strings.Join([]string{
		"# Vertex: v1",
		"<v1[A]> <" + triple.RDFType + "> <" + person + ">",
		"<v1[A]> <" + name + ":k1[B]> \"Joe\"",
		"<v1[A]> <" + name + ":k1[B]@" + graph.ConfidenceMetadata + "[!]> \"0.9\"^^<" + triple.TypeDouble + ">",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("WriteElement() =\n%s\nwant\n%s", buf.String(), want)
	}
	if stats.Elements != 1 || stats.Lines != 3 || stats.Unsupported != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWriteElementDefaults(t *testing.T) {
	tests := []struct {
		name string
		el   *graph.Element
		want string
	}{
		{
			name: "vertex without concept",
			el:   &graph.Element{Type: graph.Vertex, ID: "v1"},
			want: "<v1> <" + triple.RDFType + "> <" + graph.ThingConceptIRI + ">",
		},
		{
			name: "stored visibility as literal",
			el:   &graph.Element{Type: graph.Vertex, ID: "v1", Visibility: "A&B"},
			want: "<v1[!A&B]> <" + triple.RDFType + "> <" + graph.ThingConceptIRI + ">",
		},
		{
			name: "default edge id omitted",
			el: &graph.Element{Type: graph.Edge, ID: DefaultEdgeID("v1", knows, "v2"),
				Label: knows, OutVertexID: "v1", InVertexID: "v2"},
			want: "<v1> <" + knows + "> <v2>",
		},
		{
			name: "explicit edge id",
			el: &graph.Element{Type: graph.Edge, ID: "e1",
				Label: knows, OutVertexID: "v1", InVertexID: "v2"},
			want: "<v1> <" + knows + ":e1> <v2>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := quietExporter().ExportElement(context.Background(), tt.el)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, "\n"+tt.want+"\n") {
				t.Errorf("export lacks %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestWriteElementUnsupportedValue(t *testing.T) {
	el := &graph.Element{
		Type: graph.Edge, ID: "e1", Label: knows, OutVertexID: "v1", InVertexID: "v2",
		Properties: []graph.Property{
			{Name: "http://example.org#blob", Value: graph.ExternalValue{Handle: "h1", Size: 3}},
			{Name: name, Value: "ok"},
		},
	}
	var buf bytes.Buffer
	stats, err := quietExporter().WriteElement(context.Background(), &buf, el)
	if err != nil {
		t.Fatalf("WriteElement() error: %v", err)
	}
	if stats.Unsupported != 1 {
		t.Errorf("unsupported = %d, want 1", stats.Unsupported)
	}
	out := buf.String()
	if !strings.Contains(out, "\n# <EDGE:e1> <http://example.org#blob> \"") {
		t.Errorf("no diagnostic comment:\n%s", out)
	}
	if !strings.Contains(out, "\n<EDGE:e1> <"+name+"> \"ok\"\n") {
		t.Errorf("later values not written:\n%s", out)
	}
}

func TestExportGraph(t *testing.T) {
	ctx := context.Background()
	store := importLines(t,
		conceptLine("v2"),
		conceptLine("v1"),
		"<v1> <"+knows+"> <v2>",
		"<v1> <"+name+"> \"Joe\"",
	)

	var buf bytes.Buffer
	stats, err := quietExporter().ExportGraph(ctx, store, system, &buf)
	if err != nil {
		t.Fatalf("ExportGraph() error: %v", err)
	}
	if stats.Elements != 3 {
		t.Errorf("elements = %d, want 3", stats.Elements)
	}
	out := buf.String()
	v1 := strings.Index(out, "# Vertex: v1\n")
	v2 := strings.Index(out, "\n\n# Vertex: v2\n")
	e := strings.Index(out, "\n\n# Edge: "+DefaultEdgeID("v1", knows, "v2")+"\n")
	if v1 != 0 || v2 < v1 || e < v2 {
		t.Errorf("elements out of order:\n%s", out)
	}
}

func TestExportReimport(t *testing.T) {
	ctx := context.Background()
	store := importLines(t,
		conceptLine("v1"),
		"<v2[A]> <"+triple.RDFType+"> <"+person+">",
		"<v1> <"+knows+"> <v2>",
		"<v1> <"+name+":k1[B]> \"Joe\"",
		"<v1> <"+name+":k1@http://example.org#note> \"line one\\nline two\"",
		"<v1> <http://example.org#age> \"42\"^^<"+triple.TypeInteger+">",
		"<v2> <http://example.org#born> \"1980-02-29\"^^<"+triple.TypeDate+">",
	)

	var first bytes.Buffer
	if _, err := quietExporter().ExportGraph(ctx, store, system, &first); err != nil {
		t.Fatal(err)
	}
	again := importLines(t, strings.Split(first.String(), "\n")...)
	var second bytes.Buffer
	if _, err := quietExporter().ExportGraph(ctx, again, system, &second); err != nil {
		t.Fatal(err)
	}

	// Re-importing attaches fresh system metadata, so only compare what the
	// first export carried apart from modification stamps.
	for _, line := range strings.Split(first.String(), "\n") {
		if line == "" || strings.Contains(line, graph.ModifiedDateProperty) {
			continue
		}
		if !strings.Contains(second.String(), line+"\n") {
			t.Errorf("re-export lacks %q", line)
		}
	}
}

func TestExportFile(t *testing.T) {
	ctx := context.Background()
	store := importLines(t, conceptLine("v1"))
	path := filepath.Join(t.TempDir(), "out", "graph.nt")

	stats, err := quietExporter().ExportFile(ctx, store, system, path)
	if err != nil {
		t.Fatalf("ExportFile() error: %v", err)
	}
	if stats.Elements != 1 {
		t.Errorf("elements = %d, want 1", stats.Elements)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), conceptLine("v1")+"\n") {
		t.Errorf("file lacks the concept line:\n%s", b)
	}
}
