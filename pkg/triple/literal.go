package triple

import (
	"encoding/base64"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matzehuels/graphtriple/pkg/errors"
)

const dateLayout = "2006-01-02"

// Literal is the object of a property or metadata line: the unescaped text
// between the quotes and the IRI after ^^, if any.
type Literal struct {
	Text    string
	TypeIRI string
}

// DecodeContext supplies the defaults a literal needs to become a value.
type DecodeContext struct {
	// TimeZone applies to date-times written without an offset. Nil means UTC.
	TimeZone *time.Location

	// WorkingDir anchors relative streaming-value paths.
	WorkingDir string

	// RestrictPaths rejects absolute streaming-value paths and paths that
	// leave WorkingDir.
	RestrictPaths bool
}

func (dc DecodeContext) location() *time.Location {
	if dc.TimeZone == nil {
		return time.UTC
	}
	return dc.TimeZone
}

type decodeFunc func(text string, dc DecodeContext) (any, error)

// decoders is the complete set of literal types accepted on input. A type IRI
// missing from this table is rejected.
var decoders = map[string]decodeFunc{
	"":                             decodeString,
	TypeString:                     decodeString,
	TypeInteger:                    decodeInteger,
	TypeInt:                        decodeInteger,
	TypeDouble:                     decodeDouble,
	TypeBoolean:                    decodeBoolean,
	TypeDate:                       decodeDate,
	TypeDateTime:                   decodeDateTime,
	TypeYear:                       decodeYear,
	TypeMonthDay:                   decodeMonthDay,
	TypeCurrency:                   decodeCurrency,
	TypeGeolocation:                decodeGeoPoint,
	TypeDirectoryEntry:             decodeDirectoryEntry,
	TypeStreamingValue:             decodeStreamingFile,
	TypeStreamingValueInline:       decodeStreamingInline,
	TypeStreamingValueInlineBase64: decodeStreamingBase64,
}

// SupportedType reports whether typeIRI has a decoder.
func SupportedType(typeIRI string) bool {
	_, ok := decoders[typeIRI]
	return ok
}

// DecodeLiteral converts lit into a Go value according to its type IRI.
func DecodeLiteral(lit Literal, dc DecodeContext) (any, error) {
	decode, ok := decoders[lit.TypeIRI]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedLiteralType, "unsupported literal type <%s>", lit.TypeIRI)
	}
	if lit.TypeIRI != "" && lit.TypeIRI != TypeString && strings.TrimSpace(lit.Text) == "" &&
		lit.TypeIRI != TypeStreamingValueInline && lit.TypeIRI != TypeStreamingValueInlineBase64 {
		return nil, invalid(lit, nil, "empty value")
	}
	v, err := decode(lit.Text, dc)
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, invalid(lit, err, "cannot parse")
	}
	return v, nil
}

func invalid(lit Literal, cause error, reason string) error {
	typ := lit.TypeIRI
	if typ == "" {
		typ = TypeString
	}
	if cause != nil {
		return errors.Wrap(errors.ErrCodeInvalidLiteral, cause, "%s %q as <%s>", reason, lit.Text, typ)
	}
	return errors.New(errors.ErrCodeInvalidLiteral, "%s %q as <%s>", reason, lit.Text, typ)
}

func decodeString(text string, _ DecodeContext) (any, error) {
	return text, nil
}

func decodeInteger(text string, _ DecodeContext) (any, error) {
	return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
}

func decodeDouble(text string, _ DecodeContext) (any, error) {
	return strconv.ParseFloat(strings.TrimSpace(text), 64)
}

func decodeBoolean(text string, _ DecodeContext) (any, error) {
	switch strings.TrimSpace(text) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidLiteral, "invalid boolean %q as <%s>", text, TypeBoolean)
}

func decodeDate(text string, _ DecodeContext) (any, error) {
	text = strings.TrimSpace(text)
	t, err := time.Parse(dateLayout, strings.TrimSuffix(text, "Z"))
	if err != nil {
		return nil, err
	}
	return DateOf(t), nil
}

// dateTimeZoned lists layouts that carry their own offset.
var dateTimeZoned = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
}

// dateTimeLocal lists layouts interpreted in the default time zone.
var dateTimeLocal = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func decodeDateTime(text string, dc DecodeContext) (any, error) {
	text = strings.TrimSpace(text)
	var firstErr error
	for _, layout := range dateTimeZoned {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, layout := range dateTimeLocal {
		if t, err := time.ParseInLocation(layout, text, dc.location()); err == nil {
			return t, nil
		}
	}
	return nil, firstErr
}

func decodeYear(text string, _ DecodeContext) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return Year(n), nil
}

func decodeMonthDay(text string, _ DecodeContext) (any, error) {
	t, err := time.Parse("--01-02", strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

func decodeCurrency(text string, _ DecodeContext) (any, error) {
	return ParseCurrency(text)
}

func decodeGeoPoint(text string, _ DecodeContext) (any, error) {
	text = strings.TrimSpace(text)
	open := strings.LastIndexByte(text, '[')
	if open < 0 || !strings.HasSuffix(text, "]") {
		return nil, errors.New(errors.ErrCodeInvalidLiteral, "invalid geolocation %q: expected \"<description> [lat, lon]\"", text)
	}
	parts := strings.Split(text[open+1:len(text)-1], ",")
	if len(parts) != 2 {
		return nil, errors.New(errors.ErrCodeInvalidLiteral, "invalid geolocation %q: expected two coordinates", text)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, err
	}
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return nil, errors.New(errors.ErrCodeInvalidLiteral, "invalid geolocation %q: coordinates out of range", text)
	}
	return GeoPoint{
		Description: strings.TrimSpace(text[:open]),
		Latitude:    lat,
		Longitude:   lon,
	}, nil
}

func decodeDirectoryEntry(text string, _ DecodeContext) (any, error) {
	return DirectoryEntry{ID: strings.TrimSpace(text)}, nil
}

func decodeStreamingFile(text string, dc DecodeContext) (any, error) {
	if dc.RestrictPaths {
		if err := errors.ValidatePath(filepath.ToSlash(text)); err != nil {
			return nil, err
		}
	}
	resolved := text
	if !filepath.IsAbs(resolved) && dc.WorkingDir != "" {
		resolved = filepath.Join(dc.WorkingDir, resolved)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "streaming value %q", text)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidLiteral, "streaming value %q is a directory", text)
	}
	return &StreamingValue{path: text, resolved: resolved}, nil
}

func decodeStreamingInline(text string, _ DecodeContext) (any, error) {
	return NewStreamingBytes([]byte(text)), nil
}

func decodeStreamingBase64(text string, _ DecodeContext) (any, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return NewStreamingBytes(b), nil
}

// FormatValue returns the lexical form and type IRI of v. The type IRI is
// empty for plain strings. Values without a literal representation return an
// UNSUPPORTED error.
func FormatValue(v any) (lexical, typeIRI string, err error) {
	switch x := Normalize(v).(type) {
	case string:
		return x, "", nil
	case int64:
		return strconv.FormatInt(x, 10), TypeInteger, nil
	case uint64, uint:
		return "", "", errors.New(errors.ErrCodeUnsupported, "integer %d exceeds the int64 range", x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), TypeDouble, nil
	case bool:
		return strconv.FormatBool(x), TypeBoolean, nil
	case Date:
		return x.String(), TypeDate, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), TypeDateTime, nil
	case Year:
		return x.String(), TypeYear, nil
	case MonthDay:
		return x.String(), TypeMonthDay, nil
	case Currency:
		if x.text == "" {
			break
		}
		return x.text, TypeCurrency, nil
	case GeoPoint:
		return x.String(), TypeGeolocation, nil
	case DirectoryEntry:
		return x.ID, TypeDirectoryEntry, nil
	case *StreamingValue:
		if x == nil {
			break
		}
		if x.path != "" {
			return x.path, TypeStreamingValue, nil
		}
		if utf8.Valid(x.data) {
			return string(x.data), TypeStreamingValueInline, nil
		}
		return base64.StdEncoding.EncodeToString(x.data), TypeStreamingValueInlineBase64, nil
	}
	return "", "", errors.New(errors.ErrCodeUnsupported, "no literal form for value of type %T", v)
}

// FormatLiteral renders v as a quoted literal with its ^^<type> suffix.
func FormatLiteral(v any) (string, error) {
	lex, typ, err := FormatValue(v)
	if err != nil {
		return "", err
	}
	return quote(lex, typ), nil
}

func quote(lex, typ string) string {
	s := `"` + escapeLiteral(lex) + `"`
	if typ != "" {
		s += "^^<" + typ + ">"
	}
	return s
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// unescapeLiteral reverses escapeLiteral and also accepts \uXXXX and
// \UXXXXXXXX escapes.
func unescapeLiteral(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errors.New(errors.ErrCodeMalformedTriple, "dangling escape in literal")
		}
		switch s[i] {
		case '\\', '"', '\'':
			b.WriteByte(s[i])
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u', 'U':
			n := 4
			if s[i] == 'U' {
				n = 8
			}
			if i+1+n > len(s) {
				return "", errors.New(errors.ErrCodeMalformedTriple, "short unicode escape in literal")
			}
			r, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil || !utf8.ValidRune(rune(r)) {
				return "", errors.New(errors.ErrCodeMalformedTriple, "invalid unicode escape \\%c%s", s[i], s[i+1:i+1+n])
			}
			b.WriteRune(rune(r))
			i += n
		default:
			return "", errors.New(errors.ErrCodeMalformedTriple, "unknown escape \\%c in literal", s[i])
		}
	}
	return b.String(), nil
}
