// Package graph defines the secure, multi-valued property graph that triple
// lines are imported into and exported from.
//
// # Model
//
// An [Element] is a vertex or an edge. Each element carries a visibility and
// a list of [Property] values. A property value is identified by its key and
// name, so one name can hold several values under different keys. Every
// property value has its own visibility and an immutable [Metadata] set of
// key/value/visibility entries.
//
// # Mutations
//
// Writers describe a change as a [Mutation] value and hand it to
// [Store.Apply]. A mutation targets exactly one element and is applied
// atomically: either every write in it lands or none does. [ApplyMutation]
// holds the rules shared by all stores:
//
//   - vertices are created on demand when Mutation.Create is set
//   - edges are created from Mutation.Edge, never duplicated, and require
//     both endpoints to exist
//   - property writes are last-write-wins per (key, name)
//   - metadata writes require the property to exist and replace the entry
//     with the same (key, visibility)
//
// Streaming values are read to completion by [Materialize] before a store
// commits them, so the store owns the reader's lifecycle.
//
// # Reads
//
// Reads take [visibility.Authorizations]; anything the caller cannot see is
// filtered out, and an element the caller cannot see does not exist.
// Writes become visible to reads after [Store.Flush].
//
// Implementations live in the memory and badger subpackages.
package graph
