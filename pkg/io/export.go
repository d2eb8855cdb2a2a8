package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/observability"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// Exporter writes stored elements as triple lines.
type Exporter struct {
	logger *log.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithExportLogger sets the logger that reports unsupported values.
func WithExportLogger(l *log.Logger) ExporterOption { return func(e *Exporter) { e.logger = l } }

// NewExporter returns an exporter.
func NewExporter(opts ...ExporterOption) *Exporter {
	e := &Exporter{logger: log.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportStats counts what WriteElement wrote.
type ExportStats struct {
	Elements int
	Lines    int // triple and diagnostic lines, excluding headers
	// Unsupported counts values written as diagnostic comments.
	Unsupported int
}

func (s *ExportStats) add(o ExportStats) {
	s.Elements += o.Elements
	s.Lines += o.Lines
	s.Unsupported += o.Unsupported
}

// ExportElement renders el with a default Exporter.
func ExportElement(el *graph.Element) (string, error) {
	var buf bytes.Buffer
	if _, err := NewExporter().WriteElement(context.Background(), &buf, el); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExportElement renders el as text.
func (e *Exporter) ExportElement(ctx context.Context, el *graph.Element) (string, error) {
	var buf bytes.Buffer
	if _, err := e.WriteElement(ctx, &buf, el); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteElement writes a header comment, the concept-type or edge line, then
// one line per property value and metadata entry. The only errors are write
// errors: values without a literal form become diagnostic comments.
func (e *Exporter) WriteElement(ctx context.Context, w io.Writer, el *graph.Element) (ExportStats, error) {
	var stats ExportStats
	if el == nil {
		return stats, nil
	}
	stats.Elements = 1

	header := "Vertex"
	if el.Type == graph.Edge {
		header = "Edge"
	}
	if _, err := fmt.Fprintf(w, "# %s: %s\n", header, el.ID); err != nil {
		return stats, fmt.Errorf("write: %w", err)
	}

	elVis := elementLabel(el)
	lines := []triple.Triple{elementTriple(el, elVis)}
	for _, p := range el.Properties {
		if p.Name == graph.ConceptTypeProperty || p.Name == graph.VisibilitySourceProperty {
			continue
		}
		ref := triple.PropertyRef{
			ElementType:        el.Type,
			ElementID:          el.ID,
			ElementVisibility:  elVis,
			PropertyKey:        p.Key,
			PropertyIRI:        p.Name,
			PropertyVisibility: propertyLabel(p),
		}
		lines = append(lines, triple.SetProperty{PropertyRef: ref, Value: p.Value})
		for _, m := range p.Metadata.Entries() {
			if m.Key == graph.VisibilitySourceProperty {
				continue
			}
			mvis := storedLabel(m.Visibility)
			if mvis == "" && ref.PropertyVisibility != "" {
				// An unlabelled entry would inherit the property's label.
				mvis = visibility.LiteralPrefix
			}
			lines = append(lines, triple.SetMetadata{
				PropertyRef:        ref,
				MetadataKey:        m.Key,
				MetadataVisibility: mvis,
				Value:              m.Value,
			})
		}
	}

	for _, t := range lines {
		text, err := t.Text()
		if err != nil {
			text = t.String()
			stats.Unsupported++
			e.logger.Warn("value written as comment", "element", el.Ref(), "err", err)
		}
		stats.Lines++
		if _, err := io.WriteString(w, text+"\n"); err != nil {
			return stats, fmt.Errorf("write: %w", err)
		}
	}

	observability.Export().OnElementExported(ctx, el.Type.String(), stats.Lines, stats.Unsupported)
	return stats, nil
}

// WriteElements writes each element followed by a blank line between
// elements.
func (e *Exporter) WriteElements(ctx context.Context, w io.Writer, els []*graph.Element) (ExportStats, error) {
	var stats ExportStats
	for n, el := range els {
		if n > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return stats, fmt.Errorf("write: %w", err)
			}
		}
		s, err := e.WriteElement(ctx, w, el)
		stats.add(s)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ExportGraph writes every element of store visible to auths: vertices
// first, then edges, each in id order.
func (e *Exporter) ExportGraph(ctx context.Context, store graph.Store, auths visibility.Authorizations, w io.Writer) (ExportStats, error) {
	var stats ExportStats
	err := store.Walk(ctx, auths, func(el *graph.Element) error {
		if stats.Elements > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		s, err := e.WriteElement(ctx, w, el)
		stats.add(s)
		return err
	})
	return stats, err
}

// ExportFile writes the whole visible graph to path.
func (e *Exporter) ExportFile(ctx context.Context, store graph.Store, auths visibility.Authorizations, path string) (ExportStats, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ExportStats{}, fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return ExportStats{}, fmt.Errorf("create: %w", err)
	}
	stats, err := e.ExportGraph(ctx, store, auths, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close: %w", cerr)
	}
	return stats, err
}

func elementTriple(el *graph.Element, vis string) triple.Triple {
	if el.Type == graph.Edge {
		id := el.ID
		if id == DefaultEdgeID(el.OutVertexID, el.Label, el.InVertexID) {
			id = ""
		}
		return triple.AddEdge{
			EdgeID:      id,
			OutVertexID: el.OutVertexID,
			InVertexID:  el.InVertexID,
			Label:       el.Label,
			Visibility:  vis,
		}
	}
	concept := graph.ThingConceptIRI
	if v, ok := el.Value(graph.ConceptTypeProperty); ok {
		if s, ok := v.(string); ok && s != "" {
			concept = s
		}
	}
	return triple.ConceptType{VertexID: el.ID, Visibility: vis, Concept: concept}
}

// elementLabel returns the label el was imported with, or its stored
// visibility as a literal label.
func elementLabel(el *graph.Element) string {
	if v, ok := el.Value(graph.VisibilitySourceProperty); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return storedLabel(el.Visibility)
}

func propertyLabel(p graph.Property) string {
	if e, ok := p.Metadata.Get(graph.VisibilitySourceProperty); ok {
		if s, ok := e.Value.(string); ok {
			return s
		}
	}
	return storedLabel(p.Visibility)
}

// storedLabel renders a stored visibility so that the translator passes it
// through unchanged on re-import.
func storedLabel(v visibility.Visibility) string {
	if v.Empty() {
		return ""
	}
	return visibility.LiteralPrefix + strings.TrimSpace(v.String())
}
