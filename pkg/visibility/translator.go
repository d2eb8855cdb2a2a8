package visibility

// LiteralPrefix marks a label that is stored verbatim, bypassing the
// translator's policy.
const LiteralPrefix = "!"

// Translator maps a label written in a triple line to a stored Visibility.
// Implementations must be pure.
type Translator interface {
	ToVisibility(source string) (Visibility, error)
	DefaultVisibility() Visibility
}

// DirectTranslator stores labels as written, ORed with a system
// authorization so that system processes can always read imported data:
//
//	""      -> ""
//	"A"     -> "(A)|system"
//	"!A&B"  -> "A&B"
type DirectTranslator struct {
	SystemAuthorization string
}

// NewDirectTranslator returns a translator that grants system the right to
// read every labelled value. An empty system disables that.
func NewDirectTranslator(system string) *DirectTranslator {
	return &DirectTranslator{SystemAuthorization: system}
}

// ToVisibility implements Translator.
func (t *DirectTranslator) ToVisibility(source string) (Visibility, error) {
	if len(source) > 0 && source[:1] == LiteralPrefix {
		v := Visibility(source[1:])
		return v, v.Validate()
	}
	v := Visibility(source)
	if v.Empty() {
		return "", nil
	}
	if err := v.Validate(); err != nil {
		return "", err
	}
	if t.SystemAuthorization == "" {
		return v, nil
	}
	return Visibility("(" + source + ")|" + t.SystemAuthorization), nil
}

// DefaultVisibility implements Translator.
func (t *DirectTranslator) DefaultVisibility() Visibility {
	return ""
}

// IsLiteral reports whether source bypasses translation.
func IsLiteral(source string) bool {
	return len(source) > 0 && source[:1] == LiteralPrefix
}
