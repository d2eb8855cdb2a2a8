package triple

import (
	"github.com/matzehuels/graphtriple/pkg/errors"
)

// IsTypePredicate reports whether iri asserts a concept type.
func IsTypePredicate(iri string) bool {
	return iri == RDFType || iri == "rdf:type" || iri == ConceptTypeIRI
}

// Resolve interprets a parsed line as one of the four variants. Dispatch
// follows a fixed priority:
//
//  1. type predicate with an element object: ConceptType
//  2. element object without metadata: AddEdge
//  3. metadata segment: SetMetadata
//  4. anything else: SetProperty
//
// An element object combined with a metadata segment fits no rule cleanly and
// is rejected as ambiguous. Visibilities are returned exactly as written;
// defaults are the caller's concern.
func Resolve(rec Record, dc DecodeContext) (Triple, error) {
	t, err := resolve(rec, dc)
	if err != nil {
		return nil, &errors.LineError{Line: rec.Line, Err: err}
	}
	return t, nil
}

func resolve(rec Record, dc DecodeContext) (Triple, error) {
	switch {
	case rec.Object != nil && rec.HasMetadata:
		return nil, errors.New(errors.ErrCodeAmbiguousShape,
			"element object <%s> with metadata segment @%s", rec.Object.ID, rec.MetadataKey)

	case rec.Object != nil && IsTypePredicate(rec.PredicateIRI):
		if rec.Subject.Type != ElementVertex {
			return nil, errors.New(errors.ErrCodeMalformedTriple, "concept type subject must be a vertex, got edge %q", rec.Subject.ID)
		}
		if rec.PredicateKey != "" || rec.PredicateVisibility != "" {
			return nil, errors.New(errors.ErrCodeMalformedTriple, "type predicate takes no key or visibility")
		}
		if err := errors.ValidateIRI(rec.Object.ID); err != nil {
			return nil, err
		}
		return ConceptType{
			VertexID:   rec.Subject.ID,
			Visibility: rec.Subject.Visibility,
			Concept:    rec.Object.ID,
		}, nil

	case rec.Object != nil:
		if rec.Subject.Type != ElementVertex || rec.Object.Type != ElementVertex {
			return nil, errors.New(errors.ErrCodeMalformedTriple, "edge endpoints must be vertices")
		}
		return AddEdge{
			EdgeID:      rec.PredicateKey,
			OutVertexID: rec.Subject.ID,
			InVertexID:  rec.Object.ID,
			Label:       rec.PredicateIRI,
			Visibility:  rec.PredicateVisibility,
		}, nil
	}

	if rec.Literal == nil {
		return nil, errors.New(errors.ErrCodeMalformedTriple, "missing object")
	}
	value, err := DecodeLiteral(*rec.Literal, dc)
	if err != nil {
		return nil, err
	}
	ref := PropertyRef{
		ElementType:        rec.Subject.Type,
		ElementID:          rec.Subject.ID,
		ElementVisibility:  rec.Subject.Visibility,
		PropertyKey:        rec.PredicateKey,
		PropertyIRI:        rec.PredicateIRI,
		PropertyVisibility: rec.PredicateVisibility,
	}
	if rec.HasMetadata {
		return SetMetadata{
			PropertyRef:        ref,
			MetadataKey:        rec.MetadataKey,
			MetadataVisibility: rec.MetadataVisibility,
			Value:              value,
		}, nil
	}
	return SetProperty{PropertyRef: ref, Value: value}, nil
}

// ParseLine is Parse followed by Resolve.
func ParseLine(line string, dc DecodeContext) (Triple, error) {
	rec, err := Parse(line)
	if err != nil {
		return nil, err
	}
	return Resolve(rec, dc)
}
