package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// Options configures diagram generation.
type Options struct {
	// Detailed lists property values in vertex labels. System properties
	// are always left out.
	Detailed bool
}

// ToDOT converts the part of store visible to auths into DOT source. Edges
// whose endpoints are hidden are dropped.
func ToDOT(ctx context.Context, store graph.Store, auths visibility.Authorizations, opts Options) (string, error) {
	var vertices, edges []*graph.Element
	err := store.Walk(ctx, auths, func(el *graph.Element) error {
		if el.Type == graph.Edge {
			edges = append(edges, el)
		} else {
			vertices = append(vertices, el)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk graph: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=11];\n")
	buf.WriteString("\n")

	seen := make(map[string]bool, len(vertices))
	for _, v := range vertices {
		seen[v.ID] = true
		fmt.Fprintf(&buf, "  %q [label=%q];\n", v.ID, vertexLabel(v, opts.Detailed))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		if !seen[e.OutVertexID] || !seen[e.InVertexID] {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.OutVertexID, e.InVertexID, LocalName(e.Label))
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func vertexLabel(v *graph.Element, detailed bool) string {
	lines := []string{v.ID}
	if c, ok := v.Value(graph.ConceptTypeProperty); ok {
		lines = append(lines, "«"+LocalName(fmt.Sprint(c))+"»")
	}
	if !detailed {
		return strings.Join(lines, "\n")
	}
	for _, p := range v.Properties {
		if isSystem(p.Name) {
			continue
		}
		name := LocalName(p.Name)
		if p.Key != graph.DefaultPropertyKey {
			name += ":" + p.Key
		}
		lines = append(lines, name+": "+valueText(p.Value))
	}
	return strings.Join(lines, "\n")
}

func valueText(v any) string {
	lex, _, err := triple.FormatValue(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	const max = 40
	if r := []rune(lex); len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return lex
}

func isSystem(name string) bool {
	return strings.HasPrefix(name, triple.Namespace)
}

// LocalName returns the part of an IRI after its last '#' or '/'.
func LocalName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 && i < len(iri)-1 {
		return iri[i+1:]
	}
	return iri
}
