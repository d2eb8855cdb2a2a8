package io

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/graph/memory"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

const (
	person = "http://example.org#person"
	name   = "http://example.org#name"
	knows  = "http://example.org#knows"
)

var (
	fixedNow = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	system   = visibility.NewAuthorizations("system")
)

func newTestImporter(t *testing.T, opts ...ImporterOption) (*Importer, *memory.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	base := []ImporterOption{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(log.New(io.Discard)),
	}
	imp := NewImporter(store, visibility.NewDirectTranslator("system"), append(base, opts...)...)
	return imp, store
}

func conceptLine(id string) string {
	return "<" + id + "> <" + triple.RDFType + "> <" + person + ">"
}

func element(t *testing.T, s graph.Store, ref graph.Ref, auths visibility.Authorizations) *graph.Element {
	t.Helper()
	el, err := s.Element(context.Background(), ref, auths)
	if err != nil {
		t.Fatalf("Element(%s) error: %v", ref, err)
	}
	return el
}

func TestImportConceptTypeThenExport(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)

	line := conceptLine("v1")
	ref, err := imp.ImportLine(ctx, line, ImportOptions{Authorizations: system})
	if err != nil {
		t.Fatalf("ImportLine() error: %v", err)
	}
	if ref != graph.VertexRef("v1") {
		t.Errorf("ref = %v, want vertex v1", ref)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	out, err := ExportElement(element(t, store, ref, system))
	if err != nil {
		t.Fatalf("ExportElement() error: %v", err)
	}
	if !strings.HasPrefix(out, "# Vertex: v1\n") {
		t.Errorf("export does not start with the header:\n%s", out)
	}
	if !strings.Contains(out, "\n"+line+"\n") {
		t.Errorf("export lacks %q:\n%s", line, out)
	}
}

func TestImportSkippableLines(t *testing.T) {
	imp, _ := newTestImporter(t)
	for _, line := range []string{"", "   ", "# comment", "  # indented comment"} {
		ref, err := imp.ImportLine(context.Background(), line, ImportOptions{})
		if err != nil || !ref.IsZero() {
			t.Errorf("ImportLine(%q) = %v, %v; want zero ref", line, ref, err)
		}
	}
}

func TestImportVisibility(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	opts := ImportOptions{Authorizations: system}

	lines := []string{
		"<v1[A]> <" + triple.RDFType + "> <" + person + ">",
		"<v1[A]> <" + name + "[B]> \"Joe\"",
		"<v2[!X&Y]> <" + triple.RDFType + "> <" + person + ">",
	}
	for _, line := range lines {
		if _, err := imp.ImportLine(ctx, line, opts); err != nil {
			t.Fatalf("ImportLine(%q) error: %v", line, err)
		}
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	v1 := element(t, store, graph.VertexRef("v1"), system)
	if v1.Visibility != "(A)|system" {
		t.Errorf("v1 visibility = %q, want (A)|system", v1.Visibility)
	}
	p, ok := v1.Property(graph.DefaultPropertyKey, name)
	if !ok {
		t.Fatal("v1 has no name")
	}
	if p.Visibility != "(B)|system" {
		t.Errorf("name visibility = %q, want (B)|system", p.Visibility)
	}

	// A reader holding only A sees the vertex but not the name.
	onlyA := element(t, store, graph.VertexRef("v1"), visibility.NewAuthorizations("A"))
	if _, ok := onlyA.Value(name); ok {
		t.Error("name visible without B")
	}

	out, err := ExportElement(v1)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range lines[:2] {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("export lacks %q:\n%s", want, out)
		}
	}

	v2 := element(t, store, graph.VertexRef("v2"), visibility.NewAuthorizations("X", "Y"))
	if v2.Visibility != "X&Y" {
		t.Errorf("literal visibility = %q, want X&Y", v2.Visibility)
	}
	if _, ok := v2.Value(graph.VisibilitySourceProperty); ok {
		t.Error("literal visibility recorded as a source label")
	}
	out, _ = ExportElement(v2)
	if !strings.Contains(out, lines[2]+"\n") {
		t.Errorf("export lacks %q:\n%s", lines[2], out)
	}
}

func TestImportRelabelsExistingElement(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	opts := ImportOptions{Authorizations: system}

	lines := []string{
		"<v1[A]> <" + triple.RDFType + "> <" + person + ">",
		"<v1> <" + name + "> \"Joe\"",
		"<v1[B]> <" + triple.RDFType + "> <" + person + ">",
	}
	for _, line := range lines {
		if _, err := imp.ImportLine(ctx, line, opts); err != nil {
			t.Fatalf("ImportLine(%q) error: %v", line, err)
		}
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	v1 := element(t, store, graph.VertexRef("v1"), system)
	if v1.Visibility != "(B)|system" {
		t.Errorf("visibility = %q, want (B)|system", v1.Visibility)
	}
	out, err := ExportElement(v1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, lines[2]+"\n") {
		t.Errorf("export lacks %q:\n%s", lines[2], out)
	}
	if strings.Contains(out, "<v1[A]>") {
		t.Errorf("export still carries the old label:\n%s", out)
	}

	// A literal label leaves no source behind to contradict it.
	literal := "<v1[!X]> <" + triple.RDFType + "> <" + person + ">"
	if _, err := imp.ImportLine(ctx, literal, opts); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	v1 = element(t, store, graph.VertexRef("v1"), visibility.NewAuthorizations("X"))
	if v1.Visibility != "X" {
		t.Errorf("literal visibility = %q, want X", v1.Visibility)
	}
	if out, _ = ExportElement(v1); !strings.Contains(out, literal+"\n") {
		t.Errorf("export lacks %q:\n%s", literal, out)
	}
}

func TestImportDefaultVisibilityAndMetadata(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	opts := ImportOptions{
		Authorizations:    system,
		DefaultVisibility: "D",
		User:              "loader",
		SourceFileName:    "people.nt",
		Metadata:          graph.NewMetadata(graph.MetadataEntry{Key: "http://example.org#batch", Value: "b1"}),
	}

	for _, line := range []string{
		conceptLine("v1"),
		"<v1> <" + name + "> \"Joe\"",
		"<v1> <" + name + "@http://example.org#note> \"checked\"",
	} {
		if _, err := imp.ImportLine(ctx, line, opts); err != nil {
			t.Fatalf("ImportLine(%q) error: %v", line, err)
		}
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	v1 := element(t, store, graph.VertexRef("v1"), system)
	if v1.Visibility != "(D)|system" {
		t.Errorf("visibility = %q, want (D)|system", v1.Visibility)
	}
	if v, _ := v1.Value(graph.ModifiedByProperty); v != "loader" {
		t.Errorf("modifiedBy = %v", v)
	}
	if v, _ := v1.Value(graph.ModifiedDateProperty); !triple.ValueEqual(v, fixedNow) {
		t.Errorf("modifiedDate = %v", v)
	}
	if p, ok := v1.Property("people.nt", graph.SourceProperty); !ok || p.Value != "people.nt" {
		t.Errorf("source = %+v, %v", p, ok)
	}

	p, _ := v1.Property(graph.DefaultPropertyKey, name)
	want := map[string]any{
		"http://example.org#batch":     "b1",
		graph.SourceFileNameMetadata:   "people.nt",
		graph.ConfidenceMetadata:       graph.DefaultConfidence,
		graph.ModifiedByProperty:       "loader",
		graph.VisibilitySourceProperty: "D",
		"http://example.org#note":      "checked",
	}
	for k, v := range want {
		e, ok := p.Metadata.Get(k)
		if !ok || e.Value != v {
			t.Errorf("metadata %s = %+v, want %v", k, e, v)
		}
	}
	// Metadata without a label inherits the property's.
	if e, _ := p.Metadata.Get("http://example.org#note"); e.Visibility != "(D)|system" {
		t.Errorf("note visibility = %q, want (D)|system", e.Visibility)
	}
}

func TestImportResolutionErrors(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	opts := ImportOptions{Authorizations: system}
	if _, err := imp.ImportLine(ctx, conceptLine("v1"), opts); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		line string
		code errors.Code
	}{
		{"edge to missing vertex", "<v1> <" + knows + "> <nope>", errors.ErrCodeElementNotFound},
		{"property on missing edge", "<EDGE:e9> <" + name + "> \"x\"", errors.ErrCodeElementNotFound},
		{"metadata on missing property", "<v1> <" + name + ":k9@http://example.org#m> \"x\"", errors.ErrCodePropertyNotFound},
		{"metadata on missing vertex", "<v9> <" + name + "@http://example.org#m> \"x\"", errors.ErrCodeElementNotFound},
		{"bad visibility", "<v2[a|]> <" + triple.RDFType + "> <" + person + ">", errors.ErrCodeInvalidVisibility},
		{"grammar", "<v1> <" + name, errors.ErrCodeMalformedTriple},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := imp.ImportLine(ctx, tt.line, opts)
			if !errors.Is(err, tt.code) {
				t.Fatalf("ImportLine() error = %v, want %s", err, tt.code)
			}
			var le *errors.LineError
			if !stderrors.As(err, &le) || le.Line != tt.line {
				t.Errorf("error %v does not carry the line", err)
			}
		})
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("failed lines left %d elements, want 1", store.Len())
	}
}

func TestImportEdgeIsNotDuplicated(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	opts := ImportOptions{Authorizations: system}

	edge := "<v1> <" + knows + "> <v2>"
	for _, line := range []string{conceptLine("v1"), conceptLine("v2"), edge, edge} {
		if _, err := imp.ImportLine(ctx, line, opts); err != nil {
			t.Fatalf("ImportLine(%q) error: %v", line, err)
		}
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}
	e := element(t, store, graph.EdgeRef(DefaultEdgeID("v1", knows, "v2")), system)
	if e.Label != knows || e.OutVertexID != "v1" || e.InVertexID != "v2" {
		t.Errorf("edge = %+v", e)
	}
}

func TestImportTimeZone(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t)
	tz := time.FixedZone("PST", -8*3600)

	line := "<v1> <http://example.org#at> \"2015-05-21T08:42:22\"^^<" + triple.TypeDateTime + ">"
	if _, err := imp.ImportLine(ctx, line, ImportOptions{Authorizations: system, TimeZone: tz}); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	v, _ := element(t, store, graph.VertexRef("v1"), system).Value("http://example.org#at")
	at, ok := v.(time.Time)
	if !ok || at.UnixMilli() != 1432226542000 {
		t.Errorf("at = %v, want 2015-05-21T08:42:22-08:00", v)
	}
}

type fakeDirectory map[string]string

func (d fakeDirectory) ResolveEntry(_ context.Context, id string) (triple.DirectoryEntry, error) {
	n, ok := d[id]
	if !ok {
		return triple.DirectoryEntry{}, stderrors.New("no such entry")
	}
	return triple.DirectoryEntry{ID: id, DisplayName: n}, nil
}

func TestImportDirectoryEntry(t *testing.T) {
	ctx := context.Background()
	imp, store := newTestImporter(t, WithDirectoryResolver(fakeDirectory{"u1": "User One"}))
	opts := ImportOptions{Authorizations: system}

	line := "<v1> <http://example.org#owner> \"u1\"^^<" + triple.TypeDirectoryEntry + ">"
	if _, err := imp.ImportLine(ctx, line, opts); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	v, _ := element(t, store, graph.VertexRef("v1"), system).Value("http://example.org#owner")
	if e, ok := v.(triple.DirectoryEntry); !ok || e.DisplayName != "User One" {
		t.Errorf("owner = %#v", v)
	}

	bad := "<v1> <http://example.org#owner> \"u2\"^^<" + triple.TypeDirectoryEntry + ">"
	if _, err := imp.ImportLine(ctx, bad, opts); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown entry error = %v, want NOT_FOUND", err)
	}
}

type fakeQueue struct {
	mu    sync.Mutex
	items []workqueue.Item
}

func (q *fakeQueue) Push(_ context.Context, items []workqueue.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func TestReadTriples(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{}
	imp, store := newTestImporter(t, WithQueue(q))

	edgeID := DefaultEdgeID("v1", knows, "v2")
	input := strings.Join([]string{
		"# people",
		"",
		conceptLine("v1"),
		conceptLine("v2"),
		"<v1> <" + knows + "> <v2>",
		"<v1> <" + name + ":k1> \"Joe\"",
		"<v1> <" + name + ":k1@" + graph.ConfidenceMetadata + "> \"0.9\"^^<" + triple.TypeDouble + ">",
		"<v1> <http://example.org#age> \"42\"^^<" + triple.TypeInteger + ">",
		"<EDGE:" + edgeID + "> <http://example.org#since> \"2015-05-21\"^^<" + triple.TypeDate + ">",
	}, "\n")

	var seen []int
	sum, err := imp.ReadTriples(ctx, strings.NewReader(input), ImportOptions{
		Authorizations: system,
		Priority:       workqueue.PriorityHigh,
		OnLine:         func(_ string, num int, _ error) { seen = append(seen, num) },
	})
	if err != nil {
		t.Fatalf("ReadTriples() error: %v", err)
	}
	if sum.Lines != 9 || sum.Skipped != 2 || sum.Imported != 7 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(seen) != 7 || seen[0] != 3 {
		t.Errorf("OnLine saw %v", seen)
	}
	wantRefs := []graph.Ref{graph.VertexRef("v1"), graph.VertexRef("v2"), graph.EdgeRef(edgeID)}
	if len(sum.Elements) != len(wantRefs) {
		t.Fatalf("elements = %v, want %v", sum.Elements, wantRefs)
	}
	for i := range wantRefs {
		if sum.Elements[i] != wantRefs[i] {
			t.Errorf("elements[%d] = %v, want %v", i, sum.Elements[i], wantRefs[i])
		}
	}

	// ReadTriples flushes, so reads see everything.
	v1 := element(t, store, graph.VertexRef("v1"), system)
	p, ok := v1.Property("k1", name)
	if !ok || p.Value != "Joe" {
		t.Fatalf("name = %+v", p)
	}
	if e, _ := p.Metadata.Get(graph.ConfidenceMetadata); e.Value != 0.9 {
		t.Errorf("confidence = %v, want 0.9", e.Value)
	}
	if v, _ := v1.Value("http://example.org#age"); v != int64(42) {
		t.Errorf("age = %#v", v)
	}
	edge := element(t, store, graph.EdgeRef(edgeID), system)
	if v, _ := edge.Value("http://example.org#since"); v != (triple.Date{Year: 2015, Month: time.May, Day: 21}) {
		t.Errorf("since = %#v", v)
	}

	if len(q.items) != 3 {
		t.Fatalf("queued %d items, want 3", len(q.items))
	}
	if q.items[2].ElementType != "edge" || q.items[2].Priority != workqueue.PriorityHigh {
		t.Errorf("queued item = %+v", q.items[2])
	}
}

func TestReadTriplesFailurePolicy(t *testing.T) {
	input := strings.Join([]string{
		conceptLine("v1"),
		"<v1> <" + name + " \"unterminated",
		"<v1> <" + knows + "> <missing>",
		"<v1> <" + name + "> \"x\"",
	}, "\n")

	t.Run("skip and continue", func(t *testing.T) {
		imp, _ := newTestImporter(t)
		sum, err := imp.ReadTriples(context.Background(), strings.NewReader(input), ImportOptions{Authorizations: system})
		if err != nil {
			t.Fatalf("ReadTriples() error: %v", err)
		}
		if sum.Imported != 2 || sum.Failed != 2 || len(sum.Errors) != 2 {
			t.Fatalf("summary = %+v", sum)
		}
		wantNums := []int{2, 3}
		wantCodes := []errors.Code{errors.ErrCodeMalformedTriple, errors.ErrCodeElementNotFound}
		for i, err := range sum.Errors {
			var le *errors.LineError
			if !stderrors.As(err, &le) || le.Num != wantNums[i] {
				t.Errorf("error %d = %v, want line %d", i, err, wantNums[i])
			}
			if !errors.Is(err, wantCodes[i]) {
				t.Errorf("error %d = %v, want %s", i, err, wantCodes[i])
			}
		}
	})

	t.Run("fail on first error", func(t *testing.T) {
		imp, store := newTestImporter(t)
		sum, err := imp.ReadTriples(context.Background(), strings.NewReader(input), ImportOptions{
			Authorizations:   system,
			FailOnFirstError: true,
		})
		var le *errors.LineError
		if !stderrors.As(err, &le) || le.Num != 2 {
			t.Fatalf("ReadTriples() error = %v, want line 2", err)
		}
		if sum.Imported != 1 {
			t.Errorf("imported = %d, want 1", sum.Imported)
		}
		element(t, store, graph.VertexRef("v1"), system)
	})
}

func TestReadTriplesCancelled(t *testing.T) {
	imp, _ := newTestImporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imp.ReadTriples(ctx, strings.NewReader(conceptLine("v1")), ImportOptions{})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("ReadTriples() error = %v, want context.Canceled", err)
	}
}

func TestImportFileStreamingValue(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	data := "<v1> <http://example.org#doc> \"blob.txt\"^^<" + triple.TypeStreamingValue + ">\n"
	path := filepath.Join(dir, "data.nt")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	imp, store := newTestImporter(t)
	sum, err := imp.ImportFile(ctx, path, ImportOptions{Authorizations: system})
	if err != nil {
		t.Fatalf("ImportFile() error: %v", err)
	}
	if sum.Source != path || sum.Imported != 1 {
		t.Errorf("summary = %+v", sum)
	}

	p, _ := element(t, store, graph.VertexRef("v1"), system).Property(graph.DefaultPropertyKey, "http://example.org#doc")
	sv, ok := p.Value.(*triple.StreamingValue)
	if !ok {
		t.Fatalf("doc = %#v, want streaming value", p.Value)
	}
	if b, _ := sv.Bytes(); string(b) != "hello" {
		t.Errorf("doc content = %q", b)
	}
	if e, _ := p.Metadata.Get(graph.SourceFileNameMetadata); e.Value != "data.nt" {
		t.Errorf("sourceFileName = %v", e.Value)
	}

	if _, err := imp.ImportFile(ctx, filepath.Join(dir, "missing.nt"), ImportOptions{}); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ImportFile(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestImportFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var paths []string
	for _, id := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, id+".nt")
		if err := os.WriteFile(path, []byte(conceptLine(id)+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	imp, store := newTestImporter(t)
	sums, err := imp.ImportFiles(ctx, paths, ImportOptions{Authorizations: system}, 2)
	if err != nil {
		t.Fatalf("ImportFiles() error: %v", err)
	}
	for i, sum := range sums {
		if sum.Source != paths[i] || sum.Imported != 1 {
			t.Errorf("summary %d = %+v", i, sum)
		}
	}
	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3", store.Len())
	}

	_, err = imp.ImportFiles(ctx, append(paths, filepath.Join(dir, "nope.nt")), ImportOptions{}, 2)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ImportFiles() error = %v, want FILE_NOT_FOUND", err)
	}
}
