package graph

import (
	"fmt"
	"slices"

	"github.com/matzehuels/graphtriple/pkg/triple"
	"github.com/matzehuels/graphtriple/pkg/visibility"
)

// ElementType distinguishes vertices from edges.
type ElementType = triple.ElementType

// Element types.
const (
	Vertex = triple.ElementVertex
	Edge   = triple.ElementEdge
)

// Ref identifies an element.
type Ref struct {
	Type ElementType
	ID   string
}

// VertexRef returns a reference to vertex id.
func VertexRef(id string) Ref { return Ref{Type: Vertex, ID: id} }

// EdgeRef returns a reference to edge id.
func EdgeRef(id string) Ref { return Ref{Type: Edge, ID: id} }

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool { return r.ID == "" }

// String returns e.g. "vertex v1".
func (r Ref) String() string { return r.Type.String() + " " + r.ID }

// MetadataEntry is one metadata value attached to a property value.
type MetadataEntry struct {
	Key        string
	Value      any
	Visibility visibility.Visibility
}

// Metadata is an immutable set of entries, unique per (key, visibility).
// The zero value is empty and ready to use.
type Metadata struct {
	entries []MetadataEntry
}

// NewMetadata builds a set from entries; later entries replace earlier ones
// with the same key and visibility.
func NewMetadata(entries ...MetadataEntry) Metadata {
	var m Metadata
	for _, e := range entries {
		m = m.With(e.Key, e.Value, e.Visibility)
	}
	return m
}

// With returns a copy of m with the entry set.
func (m Metadata) With(key string, value any, vis visibility.Visibility) Metadata {
	out := make([]MetadataEntry, 0, len(m.entries)+1)
	replaced := false
	for _, e := range m.entries {
		if e.Key == key && e.Visibility == vis {
			e.Value = value
			replaced = true
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, MetadataEntry{Key: key, Value: value, Visibility: vis})
	}
	return Metadata{entries: out}
}

// Merge returns a copy of m with every entry of o set on it.
func (m Metadata) Merge(o Metadata) Metadata {
	for _, e := range o.entries {
		m = m.With(e.Key, e.Value, e.Visibility)
	}
	return m
}

// Get returns the first entry with key.
func (m Metadata) Get(key string) (MetadataEntry, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e, true
		}
	}
	return MetadataEntry{}, false
}

// Entries returns a copy of the entries in insertion order.
func (m Metadata) Entries() []MetadataEntry {
	return slices.Clone(m.entries)
}

// Len returns the number of entries.
func (m Metadata) Len() int { return len(m.entries) }

func (m Metadata) filter(auths visibility.Authorizations) Metadata {
	var out []MetadataEntry
	for _, e := range m.entries {
		if auths.CanRead(e.Visibility) {
			out = append(out, e)
		}
	}
	return Metadata{entries: out}
}

// Property is one value of a multi-valued property.
type Property struct {
	Key        string
	Name       string
	Value      any
	Visibility visibility.Visibility
	Metadata   Metadata
}

// Element is a vertex or an edge together with its properties.
type Element struct {
	Type       ElementType
	ID         string
	Visibility visibility.Visibility

	// Edge fields; empty for vertices.
	Label       string
	OutVertexID string
	InVertexID  string

	Properties []Property
}

// Ref returns the element's reference.
func (e *Element) Ref() Ref { return Ref{Type: e.Type, ID: e.ID} }

// Property returns the value stored under key and name.
func (e *Element) Property(key, name string) (Property, bool) {
	if i := e.propertyIndex(key, name); i >= 0 {
		return e.Properties[i], true
	}
	return Property{}, false
}

// Value returns the first value stored under name, whatever its key.
func (e *Element) Value(name string) (any, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Values returns every value stored under name.
func (e *Element) Values(name string) []Property {
	var out []Property
	for _, p := range e.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func (e *Element) propertyIndex(key, name string) int {
	return slices.IndexFunc(e.Properties, func(p Property) bool {
		return p.Key == key && p.Name == name
	})
}

// Clone returns a deep copy of e. Metadata sets are shared because they are
// immutable.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := *e
	c.Properties = slices.Clone(e.Properties)
	return &c
}

// Filtered returns the part of e visible to auths, or nil when the element
// itself is hidden.
func (e *Element) Filtered(auths visibility.Authorizations) *Element {
	if e == nil || !auths.CanRead(e.Visibility) {
		return nil
	}
	c := *e
	c.Properties = nil
	for _, p := range e.Properties {
		if !auths.CanRead(p.Visibility) {
			continue
		}
		p.Metadata = p.Metadata.filter(auths)
		c.Properties = append(c.Properties, p)
	}
	return &c
}

// ExternalValue is a large value whose content lives outside the graph and
// cannot be read back through it.
type ExternalValue struct {
	Handle string
	Size   int64
}

// String describes the handle.
func (v ExternalValue) String() string {
	return fmt.Sprintf("external value %s (%d bytes)", v.Handle, v.Size)
}
