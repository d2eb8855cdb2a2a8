package io

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/observability"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

// MaxLineSize bounds a single line read by ReadTriples. Inline streaming
// values make long lines legitimate.
const MaxLineSize = 16 << 20

// DirectoryResolver looks up directory entries named by triples, filling in
// what the line does not carry.
type DirectoryResolver interface {
	ResolveEntry(ctx context.Context, id string) (triple.DirectoryEntry, error)
}

// Importer applies triple lines to a graph store.
type Importer struct {
	store  graph.Store
	tr     visibility.Translator
	logger *log.Logger
	queue  workqueue.Queue
	dir    DirectoryResolver
	now    func() time.Time

	visCache sync.Map // label source -> visibility.Visibility
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

func WithLogger(l *log.Logger) ImporterOption       { return func(i *Importer) { i.logger = l } }
func WithQueue(q workqueue.Queue) ImporterOption    { return func(i *Importer) { i.queue = q } }
func WithClock(now func() time.Time) ImporterOption { return func(i *Importer) { i.now = now } }

func WithDirectoryResolver(r DirectoryResolver) ImporterOption {
	return func(i *Importer) { i.dir = r }
}

// NewImporter returns an importer writing to store. A nil translator stores
// labels as written.
func NewImporter(store graph.Store, tr visibility.Translator, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:  store,
		tr:     tr,
		logger: log.Default(),
		queue:  workqueue.Null{},
		now:    time.Now,
	}
	if i.tr == nil {
		i.tr = visibility.NewDirectTranslator("")
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportOptions is the per-call context of an import. It is read, never
// retained.
type ImportOptions struct {
	// Metadata is attached to every property value written.
	Metadata graph.Metadata

	// TimeZone applies to date-times without an offset. Nil means UTC.
	TimeZone *time.Location

	// DefaultVisibility is the label source for lines that carry none.
	DefaultVisibility string

	Authorizations visibility.Authorizations

	// WorkingDir anchors relative streaming-value paths. RestrictPaths
	// confines them to it.
	WorkingDir    string
	RestrictPaths bool

	// SourceFileName is recorded on imported values when set.
	SourceFileName string

	// User is recorded as the modifier when set.
	User string

	// Stream options, ignored by ImportLine. OnLine may be called from
	// several goroutines by ImportFiles. It sees every non-skipped
	// line; source is the stream's SourceFileName, or the path for files.
	Priority         workqueue.Priority
	FailOnFirstError bool
	OnLine           func(source string, num int, err error)
}

func (o ImportOptions) decodeContext() triple.DecodeContext {
	return triple.DecodeContext{
		TimeZone:      o.TimeZone,
		WorkingDir:    o.WorkingDir,
		RestrictPaths: o.RestrictPaths,
	}
}

// ImportLine parses line and applies it as one mutation. It returns the
// element the line changed, or a zero Ref for blank and comment lines.
// Errors are *errors.LineError values holding line.
func (i *Importer) ImportLine(ctx context.Context, line string, opts ImportOptions) (graph.Ref, error) {
	if triple.IsSkippable(line) {
		return graph.Ref{}, nil
	}

	start := time.Now()
	t, err := triple.ParseLine(line, opts.decodeContext())
	if err != nil {
		observability.Import().OnLineComplete(ctx, "invalid", time.Since(start), err)
		return graph.Ref{}, errors.AtLine(err, 0, line)
	}

	ref, err := i.apply(ctx, t, opts)
	observability.Import().OnLineComplete(ctx, kindOf(t), time.Since(start), err)
	if err != nil {
		return graph.Ref{}, errors.AtLine(err, 0, line)
	}
	return ref, nil
}

func (i *Importer) apply(ctx context.Context, t triple.Triple, opts ImportOptions) (graph.Ref, error) {
	m, err := i.mutation(ctx, t, opts)
	if err != nil {
		return graph.Ref{}, err
	}

	err = i.store.Apply(ctx, m, opts.Authorizations)
	if _, ok := t.(triple.SetMetadata); ok &&
		(errors.Is(err, errors.ErrCodeElementNotFound) || errors.Is(err, errors.ErrCodePropertyNotFound)) {
		// The property may sit in a batch the store has not flushed yet.
		if ferr := i.store.Flush(ctx); ferr != nil {
			return graph.Ref{}, ferr
		}
		err = i.store.Apply(ctx, m, opts.Authorizations)
	}
	if err != nil {
		return graph.Ref{}, err
	}
	return m.Ref, nil
}

func (i *Importer) mutation(ctx context.Context, t triple.Triple, opts ImportOptions) (graph.Mutation, error) {
	switch t := t.(type) {
	case triple.ConceptType:
		return i.conceptType(t, opts)
	case triple.AddEdge:
		return i.addEdge(t, opts)
	case triple.SetProperty:
		return i.setProperty(ctx, t, opts)
	case triple.SetMetadata:
		return i.setMetadata(ctx, t, opts)
	}
	return graph.Mutation{}, errors.New(errors.ErrCodeInternal, "unhandled triple %T", t)
}

func (i *Importer) conceptType(t triple.ConceptType, opts ImportOptions) (graph.Mutation, error) {
	src := labelOr(t.Visibility, opts)
	vis, err := i.visibility(src)
	if err != nil {
		return graph.Mutation{}, err
	}
	def := i.tr.DefaultVisibility()

	props := []graph.PropertyWrite{
		{Key: graph.DefaultPropertyKey, Name: graph.ConceptTypeProperty, Value: t.Concept, Visibility: def},
	}
	props = append(props, i.modified(opts, def)...)
	if !visibility.IsLiteral(src) {
		props = append(props, graph.PropertyWrite{Key: graph.DefaultPropertyKey, Name: graph.VisibilitySourceProperty, Value: src, Visibility: def})
	}
	if opts.SourceFileName != "" {
		props = append(props, graph.PropertyWrite{Key: opts.SourceFileName, Name: graph.SourceProperty, Value: opts.SourceFileName, Visibility: vis})
	}

	return graph.Mutation{
		Ref:        graph.VertexRef(t.VertexID),
		Visibility: vis,
		Create:     true,
		Relabel:    true,
		Properties: props,
	}, nil
}

// DefaultEdgeID is the id of an edge whose line names none.
func DefaultEdgeID(outVertexID, label, inVertexID string) string {
	return outVertexID + "_" + label + "_" + inVertexID
}

func (i *Importer) addEdge(t triple.AddEdge, opts ImportOptions) (graph.Mutation, error) {
	src := labelOr(t.Visibility, opts)
	vis, err := i.visibility(src)
	if err != nil {
		return graph.Mutation{}, err
	}
	def := i.tr.DefaultVisibility()

	id := t.EdgeID
	if id == "" {
		id = DefaultEdgeID(t.OutVertexID, t.Label, t.InVertexID)
	}
	props := i.modified(opts, def)
	if !visibility.IsLiteral(src) {
		props = append(props, graph.PropertyWrite{Key: graph.DefaultPropertyKey, Name: graph.VisibilitySourceProperty, Value: src, Visibility: def})
	}

	return graph.Mutation{
		Ref:        graph.EdgeRef(id),
		Visibility: vis,
		Relabel:    true,
		Edge: &graph.EdgeSpec{
			OutVertexID: t.OutVertexID,
			InVertexID:  t.InVertexID,
			Label:       t.Label,
		},
		Properties: props,
	}, nil
}

func (i *Importer) setProperty(ctx context.Context, t triple.SetProperty, opts ImportOptions) (graph.Mutation, error) {
	elVis, err := i.visibility(labelOr(t.ElementVisibility, opts))
	if err != nil {
		return graph.Mutation{}, err
	}
	src := labelOr(t.PropertyVisibility, opts)
	vis, err := i.visibility(src)
	if err != nil {
		return graph.Mutation{}, err
	}
	value, err := i.resolveValue(ctx, t.Value)
	if err != nil {
		return graph.Mutation{}, err
	}

	return graph.Mutation{
		Ref:        elementRef(t.PropertyRef),
		Visibility: elVis,
		Create:     t.ElementType == graph.Vertex,
		Properties: []graph.PropertyWrite{{
			Key:        propertyKey(t.PropertyKey),
			Name:       t.PropertyIRI,
			Value:      value,
			Visibility: vis,
			Metadata:   opts.Metadata.Merge(i.systemMetadata(src, opts)),
		}},
	}, nil
}

func (i *Importer) setMetadata(ctx context.Context, t triple.SetMetadata, opts ImportOptions) (graph.Mutation, error) {
	src := t.MetadataVisibility
	if src == "" {
		src = labelOr(t.PropertyVisibility, opts)
	}
	vis, err := i.visibility(src)
	if err != nil {
		return graph.Mutation{}, err
	}
	value, err := i.resolveValue(ctx, t.Value)
	if err != nil {
		return graph.Mutation{}, err
	}

	return graph.Mutation{
		Ref: elementRef(t.PropertyRef),
		Metadata: []graph.MetadataWrite{{
			PropertyKey:  propertyKey(t.PropertyKey),
			PropertyName: t.PropertyIRI,
			Key:          t.MetadataKey,
			Value:        value,
			Visibility:   vis,
		}},
	}, nil
}

func (i *Importer) modified(opts ImportOptions, def visibility.Visibility) []graph.PropertyWrite {
	props := []graph.PropertyWrite{
		{Key: graph.DefaultPropertyKey, Name: graph.ModifiedDateProperty, Value: i.now(), Visibility: def},
	}
	if opts.User != "" {
		props = append(props, graph.PropertyWrite{Key: graph.DefaultPropertyKey, Name: graph.ModifiedByProperty, Value: opts.User, Visibility: def})
	}
	return props
}

func (i *Importer) systemMetadata(src string, opts ImportOptions) graph.Metadata {
	def := i.tr.DefaultVisibility()
	var entries []graph.MetadataEntry
	if opts.SourceFileName != "" {
		entries = append(entries, graph.MetadataEntry{Key: graph.SourceFileNameMetadata, Value: opts.SourceFileName, Visibility: def})
	}
	entries = append(entries,
		graph.MetadataEntry{Key: graph.ModifiedDateProperty, Value: i.now(), Visibility: def},
		graph.MetadataEntry{Key: graph.ConfidenceMetadata, Value: graph.DefaultConfidence, Visibility: def},
	)
	if opts.User != "" {
		entries = append(entries, graph.MetadataEntry{Key: graph.ModifiedByProperty, Value: opts.User, Visibility: def})
	}
	if !visibility.IsLiteral(src) {
		entries = append(entries, graph.MetadataEntry{Key: graph.VisibilitySourceProperty, Value: src, Visibility: def})
	}
	return graph.NewMetadata(entries...)
}

func (i *Importer) visibility(src string) (visibility.Visibility, error) {
	if v, ok := i.visCache.Load(src); ok {
		return v.(visibility.Visibility), nil
	}
	v, err := i.tr.ToVisibility(src)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInvalidVisibility, err, "visibility %q", src)
		}
		return "", err
	}
	i.visCache.Store(src, v)
	return v, nil
}

func (i *Importer) resolveValue(ctx context.Context, v any) (any, error) {
	e, ok := v.(triple.DirectoryEntry)
	if !ok || i.dir == nil {
		return v, nil
	}
	resolved, err := i.dir.ResolveEntry(ctx, e.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "resolve directory entry %q", e.ID)
	}
	return resolved, nil
}

func labelOr(src string, opts ImportOptions) string {
	if src == "" {
		return opts.DefaultVisibility
	}
	return src
}

func propertyKey(k string) string {
	if k == "" {
		return graph.DefaultPropertyKey
	}
	return k
}

func elementRef(r triple.PropertyRef) graph.Ref {
	return graph.Ref{Type: r.ElementType, ID: r.ElementID}
}

func kindOf(t triple.Triple) string {
	switch t.(type) {
	case triple.ConceptType:
		return "concept_type"
	case triple.AddEdge:
		return "add_edge"
	case triple.SetProperty:
		return "set_property"
	case triple.SetMetadata:
		return "set_metadata"
	}
	return "unknown"
}

// =============================================================================
// Streams
// =============================================================================

// Summary describes one imported stream.
type Summary struct {
	Source   string
	Lines    int // lines read, including skipped ones
	Imported int
	Skipped  int
	Failed   int
	Elements []graph.Ref // changed elements, first-change order
	Errors   []error     // per-line failures when not failing fast
	Duration time.Duration
}

// ReadTriples imports every line of r in order. A failing line aborts the
// stream when opts.FailOnFirstError is set and is logged and counted
// otherwise. After the last line the store is flushed and the changed
// elements are pushed to the work queue. ReadTriples does not close r.
func (i *Importer) ReadTriples(ctx context.Context, r io.Reader, opts ImportOptions) (Summary, error) {
	start := time.Now()
	sum := Summary{Source: opts.SourceFileName}
	seen := make(map[graph.Ref]bool)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Lines++
		line := sc.Text()
		if triple.IsSkippable(line) {
			sum.Skipped++
			continue
		}

		ref, err := i.ImportLine(ctx, line, opts)
		if opts.OnLine != nil {
			opts.OnLine(sum.Source, sum.Lines, err)
		}
		if err != nil {
			err = errors.AtLine(err, sum.Lines, line)
			sum.Failed++
			if opts.FailOnFirstError {
				// Lines before the failure stay imported.
				if ferr := i.store.Flush(ctx); ferr != nil {
					i.logger.Error("flush failed", "source", sum.Source, "err", ferr)
				}
				return sum, err
			}
			i.logger.Error("import failed", "source", sum.Source, "line", sum.Lines, "err", err)
			sum.Errors = append(sum.Errors, err)
			continue
		}
		sum.Imported++
		if !seen[ref] {
			seen[ref] = true
			sum.Elements = append(sum.Elements, ref)
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("read line %d: %w", sum.Lines+1, err)
	}

	if err := i.store.Flush(ctx); err != nil {
		return sum, fmt.Errorf("flush: %w", err)
	}
	if err := i.push(ctx, sum.Elements, opts); err != nil {
		return sum, err
	}

	sum.Duration = time.Since(start)
	observability.Import().OnStreamComplete(ctx, sum.Source, sum.Lines, sum.Failed, sum.Duration)
	i.logger.Debug("imported triples", "source", sum.Source, "lines", sum.Lines, "failed", sum.Failed, "elapsed", sum.Duration)
	return sum, nil
}

func (i *Importer) push(ctx context.Context, refs []graph.Ref, opts ImportOptions) error {
	if len(refs) == 0 {
		return nil
	}
	now := i.now()
	items := make([]workqueue.Item, len(refs))
	for n, ref := range refs {
		items[n] = workqueue.NewItem(ref, opts.Priority, opts.SourceFileName, now)
	}
	i.logger.Debug("pushing elements to work queue", "count", len(items))
	if err := i.queue.Push(ctx, items); err != nil {
		return fmt.Errorf("push work queue: %w", err)
	}
	return nil
}

// ImportFile imports the file at path. Relative streaming-value paths resolve
// against the file's directory unless opts.WorkingDir is set, and the file's
// base name is recorded as the source unless opts.SourceFileName is set.
func (i *Importer) ImportFile(ctx context.Context, path string, opts ImportOptions) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{Source: path}, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return Summary{Source: path}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if opts.WorkingDir == "" {
		opts.WorkingDir = filepath.Dir(path)
	}
	if opts.SourceFileName == "" {
		opts.SourceFileName = filepath.Base(path)
	}
	if cb := opts.OnLine; cb != nil {
		opts.OnLine = func(_ string, num int, err error) { cb(path, num, err) }
	}
	sum, err := i.ReadTriples(ctx, f, opts)
	sum.Source = path
	return sum, err
}

// ImportFiles imports paths with up to concurrency files in flight. Lines
// within each file keep their order. The first file error cancels the
// others. Summaries are returned in path order.
func (i *Importer) ImportFiles(ctx context.Context, paths []string, opts ImportOptions, concurrency int) ([]Summary, error) {
	sums := make([]Summary, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for n, path := range paths {
		g.Go(func() error {
			sum, err := i.ImportFile(ctx, path, opts)
			sums[n] = sum
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	return sums, g.Wait()
}
