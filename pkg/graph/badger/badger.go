// Package badger provides a graph store persisted in a Badger database.
//
// Each element is one key: "v/<id>" for vertices and "e/<id>" for edges.
// Applied mutations are encoded and held in a pending layer that later
// mutations read through; Flush writes them in one batch, after which
// Element and Walk see them.
package badger

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

const (
	vertexPrefix = "v/"
	edgePrefix   = "e/"
)

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests.
	InMemory bool

	// Logger receives Badger's own log output. Nil silences it.
	Logger *log.Logger
}

// Store is a graph.Store backed by Badger.
type Store struct {
	db *badger.DB

	mu      sync.Mutex
	pending map[graph.Ref]pendingWrite
}

type pendingWrite struct {
	el   *graph.Element
	data []byte
}

// Open opens or creates the database described by opts.
func Open(opts Options) (*Store, error) {
	bo := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	}
	if opts.Logger != nil {
		bo = bo.WithLogger(badgerLogger{opts.Logger})
	} else {
		bo = bo.WithLogger(nil)
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open badger store at %q", opts.Path)
	}
	return &Store{db: db, pending: make(map[graph.Ref]pendingWrite)}, nil
}

// Element implements graph.Store.
func (s *Store) Element(ctx context.Context, ref graph.Ref, auths visibility.Authorizations) (*graph.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *graph.Element
	err := s.db.View(func(txn *badger.Txn) error {
		el, ok, err := get(txn, ref)
		if err != nil {
			return err
		}
		if ok {
			out = el.Filtered(auths)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New(errors.ErrCodeElementNotFound, "%s not found", ref)
	}
	return out, nil
}

// Walk implements graph.Store. "e/" sorts before "v/", so the two prefixes
// are scanned separately to yield vertices first.
func (s *Store) Walk(ctx context.Context, auths visibility.Authorizations, fn func(*graph.Element) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{vertexPrefix, edgePrefix} {
			if err := scan(ctx, txn, []byte(prefix), auths, fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func scan(ctx context.Context, txn *badger.Txn, prefix []byte, auths visibility.Authorizations, fn func(*graph.Element) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var el *graph.Element
		err := it.Item().Value(func(val []byte) error {
			var err error
			el, err = decodeElement(val)
			return err
		})
		if err != nil {
			return err
		}
		if el = el.Filtered(auths); el == nil {
			continue
		}
		if err := fn(el); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements graph.Store. The element is encoded before it is queued,
// so values the store cannot hold are rejected here rather than at Flush.
func (s *Store) Apply(ctx context.Context, m graph.Mutation, auths visibility.Authorizations) error {
	m, err := graph.Materialize(m)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := graph.ApplyMutation(s.lookup, m, auths)
	if err != nil {
		return err
	}
	data, err := encodeElement(el)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnsupported, err, "encode %s", el.Ref())
	}
	s.pending[el.Ref()] = pendingWrite{el: el, data: data}
	return nil
}

// Flush implements graph.Store.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for ref, w := range s.pending {
		if err := wb.Set(key(ref), w.data); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "write %s", ref)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "flush %d elements", len(s.pending))
	}
	clear(s.pending)
	return nil
}

// Pending returns the number of applied but unflushed elements.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) lookup(ref graph.Ref) (*graph.Element, bool, error) {
	if w, ok := s.pending[ref]; ok {
		return w.el, true, nil
	}
	var (
		el *graph.Element
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		el, ok, err = get(txn, ref)
		return err
	})
	return el, ok, err
}

// Close implements graph.Store. Unflushed writes are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()
	return s.db.Close()
}

func get(txn *badger.Txn, ref graph.Ref) (*graph.Element, bool, error) {
	item, err := txn.Get(key(ref))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "read %s", ref)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "read %s", ref)
	}
	el, err := decodeElement(data)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "decode %s", ref)
	}
	return el, true, nil
}

func key(ref graph.Ref) []byte {
	if ref.Type == graph.Edge {
		return []byte(edgePrefix + ref.ID)
	}
	return []byte(vertexPrefix + ref.ID)
}

// badgerLogger adapts a charm logger to badger.Logger.
type badgerLogger struct {
	l *log.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(format, args...) }

var _ graph.Store = (*Store)(nil)
