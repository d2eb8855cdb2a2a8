package graph

import (
	"context"
	"slices"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// EdgeSpec describes a new edge.
type EdgeSpec struct {
	OutVertexID string
	InVertexID  string
	Label       string
}

// PropertyWrite sets one property value.
type PropertyWrite struct {
	Key        string
	Name       string
	Value      any
	Visibility visibility.Visibility
	Metadata   Metadata
}

// MetadataWrite sets one metadata entry on an existing property value.
type MetadataWrite struct {
	PropertyKey  string
	PropertyName string
	Key          string
	Value        any
	Visibility   visibility.Visibility
}

// Mutation is a change to a single element. It is a plain value: build it
// once and pass it to [Store.Apply].
type Mutation struct {
	Ref        Ref
	Visibility visibility.Visibility

	// Create allows a missing vertex to be created with Visibility.
	Create bool

	// Relabel sets Visibility on an element that already exists and drops
	// its recorded visibility source, which described the old label. Without
	// it an existing element keeps the label it was created with.
	Relabel bool

	// Edge creates the edge Ref.ID when it does not exist yet.
	Edge *EdgeSpec

	Properties []PropertyWrite
	Metadata   []MetadataWrite
}

// Store is the graph-store collaborator.
type Store interface {
	// Element returns the element as visible to auths. A missing or hidden
	// element is an ELEMENT_NOT_FOUND error.
	Element(ctx context.Context, ref Ref, auths visibility.Authorizations) (*Element, error)

	// Walk calls fn for every visible element: vertices first, then edges,
	// each in id order.
	Walk(ctx context.Context, auths visibility.Authorizations, fn func(*Element) error) error

	// Apply commits m atomically.
	Apply(ctx context.Context, m Mutation, auths visibility.Authorizations) error

	// Flush makes applied mutations visible to Element and Walk.
	Flush(ctx context.Context) error

	Close() error
}

// Lookup returns the current state of an element as seen by a writer,
// including unflushed writes. The returned element may be modified.
type Lookup func(ref Ref) (*Element, bool, error)

// ApplyMutation computes the new state of the element m targets. It does not
// modify anything returned by lookup in place; the caller stores the returned
// element to commit.
func ApplyMutation(lookup Lookup, m Mutation, auths visibility.Authorizations) (*Element, error) {
	if m.Ref.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidElementID, "mutation has no element id")
	}

	el, found, err := lookup(m.Ref)
	if err != nil {
		return nil, err
	}
	if found && !auths.CanRead(el.Visibility) {
		found = false
		if m.Create || m.Edge != nil {
			return nil, errors.New(errors.ErrCodeForbidden, "%s exists and is not visible", m.Ref)
		}
	}

	switch {
	case found:
		el = el.Clone()
		if m.Relabel {
			el.Visibility = m.Visibility
			if i := el.propertyIndex(DefaultPropertyKey, VisibilitySourceProperty); i >= 0 {
				el.Properties = slices.Delete(el.Properties, i, i+1)
			}
		}
	case m.Ref.Type == Vertex && m.Create:
		el = &Element{Type: Vertex, ID: m.Ref.ID, Visibility: m.Visibility}
	case m.Ref.Type == Edge && m.Edge != nil:
		el, err = newEdge(lookup, m, auths)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.ErrCodeElementNotFound, "%s not found", m.Ref)
	}

	for _, w := range m.Properties {
		p := Property{Key: w.Key, Name: w.Name, Value: triple.Normalize(w.Value), Visibility: w.Visibility, Metadata: w.Metadata}
		if i := el.propertyIndex(w.Key, w.Name); i >= 0 {
			el.Properties[i] = p
		} else {
			el.Properties = append(el.Properties, p)
		}
	}

	for _, w := range m.Metadata {
		i := el.propertyIndex(w.PropertyKey, w.PropertyName)
		if i < 0 || !auths.CanRead(el.Properties[i].Visibility) {
			return nil, errors.New(errors.ErrCodePropertyNotFound, "%s has no property %s:%s", m.Ref, w.PropertyName, w.PropertyKey)
		}
		el.Properties[i].Metadata = el.Properties[i].Metadata.With(w.Key, triple.Normalize(w.Value), w.Visibility)
	}

	return el, nil
}

func newEdge(lookup Lookup, m Mutation, auths visibility.Authorizations) (*Element, error) {
	spec := m.Edge
	if spec.Label == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "edge %s has no label", m.Ref.ID)
	}
	for _, id := range []string{spec.OutVertexID, spec.InVertexID} {
		v, ok, err := lookup(VertexRef(id))
		if err != nil {
			return nil, err
		}
		if !ok || !auths.CanRead(v.Visibility) {
			return nil, errors.New(errors.ErrCodeElementNotFound, "edge %s endpoint vertex %s not found", m.Ref.ID, id)
		}
	}
	return &Element{
		Type:        Edge,
		ID:          m.Ref.ID,
		Visibility:  m.Visibility,
		Label:       spec.Label,
		OutVertexID: spec.OutVertexID,
		InVertexID:  spec.InVertexID,
	}, nil
}

// Materialize reads every streaming value in m into memory and closes its
// source. Stores call it before committing so that no file handle outlives
// Apply.
func Materialize(m Mutation) (Mutation, error) {
	var props []PropertyWrite
	for i, w := range m.Properties {
		sv, ok := w.Value.(*triple.StreamingValue)
		if !ok || sv.Path() == "" {
			continue
		}
		b, err := sv.Bytes()
		if err != nil {
			return Mutation{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read streaming value for %s", w.Name)
		}
		if props == nil {
			props = append([]PropertyWrite(nil), m.Properties...)
		}
		props[i].Value = triple.NewStreamingBytes(b)
	}
	if props != nil {
		m.Properties = props
	}

	var meta []MetadataWrite
	for i, w := range m.Metadata {
		sv, ok := w.Value.(*triple.StreamingValue)
		if !ok || sv.Path() == "" {
			continue
		}
		b, err := sv.Bytes()
		if err != nil {
			return Mutation{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read streaming value for metadata %s", w.Key)
		}
		if meta == nil {
			meta = append([]MetadataWrite(nil), m.Metadata...)
		}
		meta[i].Value = triple.NewStreamingBytes(b)
	}
	if meta != nil {
		m.Metadata = meta
	}
	return m, nil
}
