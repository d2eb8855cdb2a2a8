package triple

import (
	"strings"

	"github.com/matzehuels/graphtriple/pkg/errors"
)

// Element reference prefixes.
const (
	EdgePrefix   = "EDGE:"
	VertexPrefix = "VERTEX:"
)

// Ref is an element reference in subject or object position.
type Ref struct {
	Type       ElementType
	ID         string
	Visibility string
}

// Record is the structural decomposition of one line. It carries no domain
// interpretation; see [Resolve].
type Record struct {
	Line string

	Subject Ref

	PredicateIRI        string
	PredicateKey        string
	PredicateVisibility string

	HasMetadata        bool
	MetadataKey        string
	MetadataVisibility string

	// Exactly one of Object and Literal is set.
	Object  *Ref
	Literal *Literal
}

// IsSkippable reports whether line carries no triple: it is blank or a
// '#' comment.
func IsSkippable(line string) bool {
	s := strings.TrimSpace(line)
	return s == "" || s[0] == '#'
}

// Parse decomposes a single line. Errors carry the code of the grammar rule
// that failed and are wrapped in an [errors.LineError] holding line.
func Parse(line string) (Record, error) {
	rec, err := parse(line)
	if err != nil {
		return Record{}, &errors.LineError{Line: line, Err: err}
	}
	return rec, nil
}

func parse(line string) (Record, error) {
	rec := Record{Line: line}
	s := &scanner{src: strings.TrimRight(line, "\r\n")}

	s.skipSpace()
	subject, err := s.term("subject")
	if err != nil {
		return rec, err
	}
	if rec.Subject, err = parseRef(subject); err != nil {
		return rec, err
	}

	if err := s.requireSpace("predicate"); err != nil {
		return rec, err
	}
	predicate, err := s.term("predicate")
	if err != nil {
		return rec, err
	}
	if err := parsePredicate(predicate, &rec); err != nil {
		return rec, err
	}

	if err := s.requireSpace("object"); err != nil {
		return rec, err
	}
	switch s.peek() {
	case '<':
		obj, err := s.term("object")
		if err != nil {
			return rec, err
		}
		ref, err := parseRef(obj)
		if err != nil {
			return rec, err
		}
		rec.Object = &ref
	case '"':
		lit, err := s.literal()
		if err != nil {
			return rec, err
		}
		rec.Literal = &lit
	case 0:
		return rec, errors.New(errors.ErrCodeMalformedTriple, "missing object")
	default:
		return rec, errors.New(errors.ErrCodeMalformedTriple, "object must start with '<' or '\"' at column %d", s.pos+1)
	}

	s.skipSpace()
	if s.peek() == '.' {
		s.pos++
		s.skipSpace()
	}
	if !s.done() {
		return rec, errors.New(errors.ErrCodeMalformedTriple, "unexpected %q at column %d", s.src[s.pos:], s.pos+1)
	}
	return rec, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) skipSpace() int {
	start := s.pos
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
	return s.pos - start
}

func (s *scanner) requireSpace(next string) error {
	if s.skipSpace() == 0 {
		if s.done() {
			return errors.New(errors.ErrCodeMalformedTriple, "missing %s", next)
		}
		return errors.New(errors.ErrCodeMalformedTriple, "expected whitespace before %s at column %d", next, s.pos+1)
	}
	return nil
}

// term consumes "<...>" and returns the raw content. Escapes are kept.
func (s *scanner) term(what string) (string, error) {
	if s.peek() != '<' {
		if s.done() {
			return "", errors.New(errors.ErrCodeMalformedTriple, "missing %s", what)
		}
		return "", errors.New(errors.ErrCodeMalformedTriple, "%s must start with '<' at column %d", what, s.pos+1)
	}
	start := s.pos + 1
	for i := start; i < len(s.src); i++ {
		switch s.src[i] {
		case '\\':
			i++
		case '<':
			return "", errors.New(errors.ErrCodeMalformedTriple, "nested '<' in %s at column %d", what, i+1)
		case '>':
			s.pos = i + 1
			return s.src[start:i], nil
		}
	}
	return "", errors.New(errors.ErrCodeMalformedTriple, "unclosed '<' in %s", what)
}

// literal consumes a quoted string and its optional ^^<type> suffix.
func (s *scanner) literal() (Literal, error) {
	start := s.pos + 1
	end := -1
	for i := start; i < len(s.src); i++ {
		if s.src[i] == '\\' {
			i++
			continue
		}
		if s.src[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return Literal{}, errors.New(errors.ErrCodeUnterminatedLiteral, "literal starting at column %d is not terminated", start)
	}
	text, err := unescapeLiteral(s.src[start:end])
	if err != nil {
		return Literal{}, err
	}
	s.pos = end + 1

	lit := Literal{Text: text}
	switch {
	case strings.HasPrefix(s.src[s.pos:], "^^"):
		s.pos += 2
		typ, err := s.term("literal type")
		if err != nil {
			return Literal{}, err
		}
		if typ == "" {
			return Literal{}, errors.New(errors.ErrCodeMalformedTriple, "empty literal type")
		}
		lit.TypeIRI = typ
	case s.peek() == '@':
		return Literal{}, errors.New(errors.ErrCodeMalformedTriple, "language-tagged literals are not supported")
	}
	return lit, nil
}

// parseRef decodes "[EDGE:|VERTEX:]id[vis]".
func parseRef(content string) (Ref, error) {
	body, vis, err := splitVisibility(content)
	if err != nil {
		return Ref{}, err
	}
	ref := Ref{Type: ElementVertex, Visibility: vis}
	switch {
	case strings.HasPrefix(body, EdgePrefix):
		ref.Type = ElementEdge
		body = body[len(EdgePrefix):]
	case strings.HasPrefix(body, VertexPrefix):
		body = body[len(VertexPrefix):]
	}
	if ref.ID, err = unescapeKey(body); err != nil {
		return Ref{}, err
	}
	if ref.ID == "" {
		return Ref{}, errors.New(errors.ErrCodeMalformedTriple, "empty element id in <%s>", content)
	}
	return ref, nil
}

// parsePredicate decodes "iri[:key][vis][@metaKey[metaVis]]" into rec.
func parsePredicate(content string, rec *Record) error {
	head := content
	if at := lastUnescaped(content, '@'); at >= 0 {
		head = content[:at]
		meta, vis, err := splitVisibility(content[at+1:])
		if err != nil {
			return err
		}
		if rec.MetadataKey, err = unescapeKey(meta); err != nil {
			return err
		}
		if rec.MetadataKey == "" {
			return errors.New(errors.ErrCodeMalformedTriple, "empty metadata key in <%s>", content)
		}
		rec.HasMetadata = true
		rec.MetadataVisibility = vis
	}

	head, vis, err := splitVisibility(head)
	if err != nil {
		return err
	}
	rec.PredicateVisibility = vis

	iri := head
	if hash := strings.IndexByte(head, '#'); hash >= 0 {
		if colon := lastUnescaped(head[hash:], ':'); colon >= 0 {
			iri = head[:hash+colon]
			if rec.PredicateKey, err = unescapeKey(head[hash+colon+1:]); err != nil {
				return err
			}
		}
	}
	if iri == "" || iri[0] == ':' {
		return errors.New(errors.ErrCodeMissingPredicateIRI, "predicate <%s> has no IRI", content)
	}
	if strings.ContainsRune(iri, '\\') {
		return errors.New(errors.ErrCodeMalformedTriple, "escape sequence in predicate IRI %q", iri)
	}
	rec.PredicateIRI = iri
	return nil
}

// splitVisibility separates a trailing "[vis]" from content.
func splitVisibility(content string) (body, vis string, err error) {
	body = content
	if strings.HasSuffix(content, "]") && !escapedAt(content, len(content)-1) {
		open := lastUnescaped(content, '[')
		if open < 0 {
			return "", "", errors.New(errors.ErrCodeMalformedTriple, "unbalanced ']' in <%s>", content)
		}
		body, vis = content[:open], content[open+1:len(content)-1]
	}
	if unescaped(body, '[') || unescaped(body, ']') || strings.ContainsAny(vis, "[]") {
		return "", "", errors.New(errors.ErrCodeMalformedTriple, "unbalanced brackets in <%s>", content)
	}
	return body, vis, nil
}

// lastUnescaped returns the index of the last c in s not preceded by an
// escaping backslash, or -1.
func lastUnescaped(s string, c byte) int {
	idx := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			idx = i
		}
	}
	return idx
}

func unescaped(s string, c byte) bool {
	return lastUnescaped(s, c) >= 0
}

// escapedAt reports whether s[i] is preceded by an escaping backslash.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func unescapeKey(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			if i >= len(s) {
				return "", errors.New(errors.ErrCodeMalformedTriple, "dangling escape in %q", s)
			}
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}
