// Package triple implements the line notation used to exchange graph
// mutations.
//
// Each line encodes one fact about a vertex or an edge of a secure,
// multi-valued property graph. The notation resembles N-Triples but carries
// extra fields inside the angle-bracketed terms: element visibility labels,
// property keys, property visibilities and a metadata segment.
//
// # Line Shapes
//
// There are exactly four shapes, modelled by the [Triple] variants:
//
//	<out> <label:edgeId[vis]> <in>                          AddEdge
//	<v1[vis]> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <concept>  ConceptType
//	<v1[vis]> <iri:key[pvis]> "value"^^<type>                SetProperty
//	<EDGE:e1[vis]> <iri:key[pvis]@metaKey[mvis]> "value"    SetMetadata
//
// An edge subject always carries the EDGE: prefix so that an edge and a
// vertex sharing an id never produce the same line. Vertex ids that would
// themselves look like a prefixed reference are written with VERTEX:.
//
// # Escaping
//
// A colon inside a property key or edge id is written as "\:" to keep it
// apart from the iri:key separator. Backslash, '@', '[', ']' and '>' are
// escaped the same way wherever they appear inside a key or id. Colons that
// belong to an IRI are never escaped.
//
// # Pipeline
//
// [Parse] turns a line into a structural [Record] without knowing what a
// concept type is. [Resolve] interprets a Record, coerces its literal through
// the type table and returns one of the four variants. The reverse direction
// is [Triple.Text]:
//
//	rec, err := triple.Parse(line)
//	if err != nil {
//	    return err
//	}
//	t, err := triple.Resolve(rec, triple.DecodeContext{TimeZone: time.UTC})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(t) // canonical form of line
//
// Parsing and formatting are pure and safe for concurrent use.
package triple
