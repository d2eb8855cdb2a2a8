package graph

import "github.com/matzehuels/graphtriple/pkg/triple"

// System property and metadata names written by the importer.
const (
	// DefaultPropertyKey is the key of a property value whose line names none.
	DefaultPropertyKey = ""

	// ConceptTypeProperty holds a vertex's concept IRI.
	ConceptTypeProperty = triple.ConceptTypeIRI

	// VisibilitySourceProperty holds the label an element was imported with,
	// before translation. As metadata it holds a property value's label.
	VisibilitySourceProperty = triple.Namespace + "visibilitySource"

	ModifiedByProperty   = triple.Namespace + "modifiedBy"
	ModifiedDateProperty = triple.Namespace + "modifiedDate"

	// SourceProperty is multi-valued: one value per file that asserted the
	// element's concept, keyed by file name.
	SourceProperty = triple.Namespace + "source"

	SourceFileNameMetadata = triple.Namespace + "sourceFileName"
	ConfidenceMetadata     = triple.Namespace + "confidence"

	// ImportRunMetadata identifies the CLI or API run that wrote a value.
	ImportRunMetadata = triple.Namespace + "importRunId"

	// ThingConceptIRI is the concept of a vertex that was never typed.
	ThingConceptIRI = triple.Namespace + "thing"
)

// DefaultConfidence is the confidence recorded for imported property values.
const DefaultConfidence = 0.5
