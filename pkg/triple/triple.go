package triple

import (
	"strings"

	"github.com/matzehuels/graphtriple/pkg/errors"
)

// ElementType distinguishes vertex subjects from edge subjects.
type ElementType int

const (
	ElementVertex ElementType = iota
	ElementEdge
)

// String returns "vertex" or "edge".
func (t ElementType) String() string {
	if t == ElementEdge {
		return "edge"
	}
	return "vertex"
}

// Triple is one decoded line. The set of implementations is closed:
// [AddEdge], [ConceptType], [SetProperty] and [SetMetadata].
type Triple interface {
	// Text renders the canonical line. It fails only when a field cannot be
	// represented, such as a value type without a literal form.
	Text() (string, error)

	// String renders the canonical line, or a '#' diagnostic line when Text
	// fails.
	String() string

	isTriple()
}

// AddEdge creates an edge between two existing vertices.
type AddEdge struct {
	EdgeID      string
	OutVertexID string
	InVertexID  string
	Label       string
	Visibility  string
}

// ConceptType asserts the concept of a vertex, creating the vertex if needed.
type ConceptType struct {
	VertexID   string
	Visibility string
	Concept    string
}

// PropertyRef addresses one property value of one element.
type PropertyRef struct {
	ElementType        ElementType
	ElementID          string
	ElementVisibility  string
	PropertyKey        string
	PropertyIRI        string
	PropertyVisibility string
}

// SetProperty assigns a property value.
type SetProperty struct {
	PropertyRef
	Value any
}

// SetMetadata assigns a metadata entry on an existing property value.
type SetMetadata struct {
	PropertyRef
	MetadataKey        string
	MetadataVisibility string
	Value              any
}

func (AddEdge) isTriple()     {}
func (ConceptType) isTriple() {}
func (SetProperty) isTriple() {}
func (SetMetadata) isTriple() {}

// Text implements Triple.
func (e AddEdge) Text() (string, error) {
	out, err := formatRef(ElementVertex, e.OutVertexID, "")
	if err != nil {
		return "", err
	}
	pred, err := formatPredicate(e.Label, e.EdgeID, e.Visibility)
	if err != nil {
		return "", err
	}
	in, err := formatRef(ElementVertex, e.InVertexID, "")
	if err != nil {
		return "", err
	}
	return out + " <" + pred + "> " + in, nil
}

// Text implements Triple.
func (c ConceptType) Text() (string, error) {
	subj, err := formatRef(ElementVertex, c.VertexID, c.Visibility)
	if err != nil {
		return "", err
	}
	if err := errors.ValidateIRI(c.Concept); err != nil {
		return "", err
	}
	obj, err := formatRef(ElementVertex, c.Concept, "")
	if err != nil {
		return "", err
	}
	return subj + " <" + RDFType + "> " + obj, nil
}

// Text implements Triple.
func (p SetProperty) Text() (string, error) {
	subj, pred, err := p.PropertyRef.format()
	if err != nil {
		return "", err
	}
	lit, err := FormatLiteral(p.Value)
	if err != nil {
		return "", err
	}
	return subj + " <" + pred + "> " + lit, nil
}

// Text implements Triple.
func (m SetMetadata) Text() (string, error) {
	subj, pred, err := m.PropertyRef.format()
	if err != nil {
		return "", err
	}
	meta, err := formatMetadata(m.MetadataKey, m.MetadataVisibility)
	if err != nil {
		return "", err
	}
	lit, err := FormatLiteral(m.Value)
	if err != nil {
		return "", err
	}
	return subj + " <" + pred + meta + "> " + lit, nil
}

func (e AddEdge) String() string     { return textOrDiagnostic(e) }
func (c ConceptType) String() string { return textOrDiagnostic(c) }
func (p SetProperty) String() string { return textOrDiagnostic(p) }
func (m SetMetadata) String() string { return textOrDiagnostic(m) }

func textOrDiagnostic(t Triple) string {
	s, err := t.Text()
	if err != nil {
		return Diagnostic(t, errors.UserMessage(err))
	}
	return s
}

// Diagnostic renders a commented-out line for a fact that has no canonical
// form:
//
//	# <subject> <predicate> "message"
//
// Subject and predicate are written without escaping so the line stays
// readable even when a field is what made Text fail.
func Diagnostic(t Triple, message string) string {
	var subj, pred string
	switch x := t.(type) {
	case AddEdge:
		subj, pred = x.OutVertexID, x.Label
		if x.EdgeID != "" {
			pred += ":" + x.EdgeID
		}
	case ConceptType:
		subj, pred = x.VertexID, RDFType
	case SetProperty:
		subj, pred = x.rawSubject(), x.rawPredicate()
	case SetMetadata:
		subj, pred = x.rawSubject(), x.rawPredicate()+"@"+x.MetadataKey
	}
	return "# <" + subj + "> <" + pred + "> " + quote(message, "")
}

func (r PropertyRef) rawSubject() string {
	if r.ElementType == ElementEdge {
		return EdgePrefix + r.ElementID
	}
	return r.ElementID
}

func (r PropertyRef) rawPredicate() string {
	if r.PropertyKey == "" {
		return r.PropertyIRI
	}
	return r.PropertyIRI + ":" + r.PropertyKey
}

func (r PropertyRef) format() (subj, pred string, err error) {
	if subj, err = formatRef(r.ElementType, r.ElementID, r.ElementVisibility); err != nil {
		return "", "", err
	}
	if pred, err = formatPredicate(r.PropertyIRI, r.PropertyKey, r.PropertyVisibility); err != nil {
		return "", "", err
	}
	return subj, pred, nil
}

// FormatSubject renders the subject term of an element, e.g. <EDGE:e1[A]>.
func FormatSubject(typ ElementType, id, visibility string) (string, error) {
	return formatRef(typ, id, visibility)
}

func formatRef(typ ElementType, id, visibility string) (string, error) {
	if id == "" {
		return "", errors.New(errors.ErrCodeInvalidElementID, "element id cannot be empty")
	}
	vis, err := formatVisibility(visibility)
	if err != nil {
		return "", err
	}
	prefix := ""
	switch {
	case typ == ElementEdge:
		prefix = EdgePrefix
	case strings.HasPrefix(id, EdgePrefix), strings.HasPrefix(id, VertexPrefix):
		prefix = VertexPrefix
	}
	return "<" + prefix + escapeID(id) + vis + ">", nil
}

// formatPredicate renders "iri[:key][vis]" without angle brackets.
func formatPredicate(iri, key, visibility string) (string, error) {
	if iri == "" {
		return "", errors.New(errors.ErrCodeMissingPredicateIRI, "predicate IRI cannot be empty")
	}
	if err := errors.ValidateIRI(iri); err != nil {
		return "", err
	}
	if strings.ContainsAny(iri, `\@[]`) {
		return "", errors.New(errors.ErrCodeInvalidIRI, "predicate IRI %q contains a reserved character", iri)
	}
	hash := strings.IndexByte(iri, '#')
	if key != "" && hash < 0 {
		return "", errors.New(errors.ErrCodeInvalidIRI, "predicate IRI %q needs a fragment to carry key %q", iri, key)
	}
	vis, err := formatVisibility(visibility)
	if err != nil {
		return "", err
	}
	s := iri
	if key != "" || (hash >= 0 && strings.ContainsRune(iri[hash:], ':')) {
		s += ":" + escapeKey(key)
	}
	return s + vis, nil
}

func formatMetadata(key, visibility string) (string, error) {
	if key == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "metadata key cannot be empty")
	}
	vis, err := formatVisibility(visibility)
	if err != nil {
		return "", err
	}
	return "@" + escapeMetadataKey(key) + vis, nil
}

func formatVisibility(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if strings.ContainsAny(v, "[]<>@\\\"\n\r") {
		return "", errors.New(errors.ErrCodeInvalidVisibility, "visibility %q contains a reserved character", v)
	}
	return "[" + v + "]", nil
}

var (
	idEscaper          = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `>`, `\>`, `<`, `\<`)
	keyEscaper         = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `[`, `\[`, `]`, `\]`, `>`, `\>`, `<`, `\<`, `@`, `\@`)
	metadataKeyEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `>`, `\>`, `<`, `\<`, `@`, `\@`)
)

func escapeID(s string) string          { return idEscaper.Replace(s) }
func escapeKey(s string) string         { return keyEscaper.Replace(s) }
func escapeMetadataKey(s string) string { return metadataKeyEscaper.Replace(s) }
