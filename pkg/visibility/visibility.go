// Package visibility models the security labels attached to graph elements,
// properties and metadata entries.
//
// A [Visibility] is a boolean expression over authorization tokens:
//
//	A
//	(S)|system
//	admin&(ops|"team:blue")
//
// '&' binds tighter than '|'; parentheses group. A reader holding a set of
// [Authorizations] can see a labelled value when the expression evaluates to
// true for that set. The empty visibility is readable by everyone.
//
// A [Translator] turns the label written in a triple line into the
// Visibility stored in the graph. [DirectTranslator] is the stock policy.
package visibility

import (
	"slices"
	"strings"

	"github.com/matzehuels/graphtriple/pkg/errors"
)

// Visibility is a label expression in its stored form.
type Visibility string

// Empty reports whether v places no restriction.
func (v Visibility) Empty() bool { return strings.TrimSpace(string(v)) == "" }

// String returns the expression text.
func (v Visibility) String() string { return string(v) }

// Validate checks that v is a well-formed expression.
func (v Visibility) Validate() error {
	if v.Empty() {
		return nil
	}
	p := &evaluator{src: string(v)}
	if _, err := p.eval(); err != nil {
		return err
	}
	return nil
}

// And combines visibilities so that a reader must satisfy all of them.
// Empty operands are ignored.
func And(vs ...Visibility) Visibility {
	var parts []string
	for _, v := range vs {
		if !v.Empty() {
			parts = append(parts, string(v))
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return Visibility(parts[0])
	}
	return Visibility("(" + strings.Join(parts, ")&(") + ")")
}

// Authorizations is the set of tokens a reader holds.
type Authorizations []string

// NewAuthorizations returns a sorted, de-duplicated set.
func NewAuthorizations(tokens ...string) Authorizations {
	out := make(Authorizations, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether token is held.
func (a Authorizations) Contains(token string) bool {
	return slices.Contains(a, token)
}

// CanRead reports whether a reader holding a may see a value labelled v.
// A malformed expression is never readable.
func (a Authorizations) CanRead(v Visibility) bool {
	if v.Empty() {
		return true
	}
	p := &evaluator{src: string(v), auths: a}
	ok, err := p.eval()
	return err == nil && ok
}

// evaluator is a recursive-descent parser that evaluates while it parses.
//
//	expr   := term { '|' term }
//	term   := factor { '&' factor }
//	factor := '(' expr ')' | token | quoted
type evaluator struct {
	src   string
	pos   int
	auths Authorizations
}

func (p *evaluator) eval() (bool, error) {
	v, err := p.expr()
	if err != nil {
		return false, err
	}
	p.space()
	if p.pos < len(p.src) {
		return false, p.fail("unexpected %q", p.src[p.pos:])
	}
	return v, nil
}

func (p *evaluator) expr() (bool, error) {
	v, err := p.term()
	if err != nil {
		return false, err
	}
	for p.accept('|') {
		w, err := p.term()
		if err != nil {
			return false, err
		}
		v = v || w
	}
	return v, nil
}

func (p *evaluator) term() (bool, error) {
	v, err := p.factor()
	if err != nil {
		return false, err
	}
	for p.accept('&') {
		w, err := p.factor()
		if err != nil {
			return false, err
		}
		v = v && w
	}
	return v, nil
}

func (p *evaluator) factor() (bool, error) {
	p.space()
	if p.accept('(') {
		v, err := p.expr()
		if err != nil {
			return false, err
		}
		if !p.accept(')') {
			return false, p.fail("missing ')'")
		}
		return v, nil
	}
	tok, err := p.token()
	if err != nil {
		return false, err
	}
	return p.auths.Contains(tok), nil
}

func (p *evaluator) token() (string, error) {
	p.space()
	if p.pos < len(p.src) && p.src[p.pos] == '"' {
		end := strings.IndexByte(p.src[p.pos+1:], '"')
		if end < 0 {
			return "", p.fail("unterminated quoted token")
		}
		tok := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return tok, nil
	}
	start := p.pos
	for p.pos < len(p.src) && isTokenChar(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", p.fail("expected token at offset %d", start)
	}
	return p.src[start:p.pos], nil
}

func (p *evaluator) accept(c byte) bool {
	p.space()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *evaluator) space() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *evaluator) fail(format string, args ...any) error {
	e := errors.New(errors.ErrCodeInvalidVisibility, format, args...)
	e.Message = "visibility " + `"` + p.src + `": ` + e.Message
	return e
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("_-:./", c) >= 0
}
