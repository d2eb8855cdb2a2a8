// Package memory provides an in-process graph store.
//
// Applied mutations are held in a pending layer that later mutations see
// but readers do not; Flush promotes them. This mirrors buffered stores,
// where a batch must be flushed before its writes can be queried.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// Store is a graph.Store held in memory. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	committed map[graph.Ref]*graph.Element
	pending   map[graph.Ref]*graph.Element
	closed    bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		committed: make(map[graph.Ref]*graph.Element),
		pending:   make(map[graph.Ref]*graph.Element),
	}
}

// Element implements graph.Store.
func (s *Store) Element(ctx context.Context, ref graph.Ref, auths visibility.Authorizations) (*graph.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if el := s.committed[ref].Filtered(auths); el != nil {
		return el, nil
	}
	return nil, errors.New(errors.ErrCodeElementNotFound, "%s not found", ref)
}

// Walk implements graph.Store.
func (s *Store) Walk(ctx context.Context, auths visibility.Authorizations, fn func(*graph.Element) error) error {
	s.mu.RLock()
	refs := make([]graph.Ref, 0, len(s.committed))
	for ref := range s.committed {
		refs = append(refs, ref)
	}
	s.mu.RUnlock()

	slices.SortFunc(refs, compareRefs)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		el := s.committed[ref].Filtered(auths)
		s.mu.RUnlock()
		if el == nil {
			continue
		}
		if err := fn(el); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements graph.Store.
func (s *Store) Apply(ctx context.Context, m graph.Mutation, auths visibility.Authorizations) error {
	m, err := graph.Materialize(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	el, err := graph.ApplyMutation(s.lookup, m, auths)
	if err != nil {
		return err
	}
	s.pending[el.Ref()] = el
	return nil
}

// Flush implements graph.Store.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for ref, el := range s.pending {
		s.committed[ref] = el
	}
	clear(s.pending)
	return nil
}

// Close implements graph.Store. Unflushed writes are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.pending)
	return nil
}

// Len returns the number of committed elements.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.committed)
}

func (s *Store) lookup(ref graph.Ref) (*graph.Element, bool, error) {
	if el, ok := s.pending[ref]; ok {
		return el, true, nil
	}
	el, ok := s.committed[ref]
	return el, ok, nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return errors.New(errors.ErrCodeInternal, "store is closed")
	}
	return ctx.Err()
}

func compareRefs(a, b graph.Ref) int {
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

var _ graph.Store = (*Store)(nil)
