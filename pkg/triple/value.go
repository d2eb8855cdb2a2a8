package triple

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC at the start of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String returns d as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Year is a Gregorian calendar year (xsd:gYear).
type Year int

// String returns y as a four digit year.
func (y Year) String() string {
	return fmt.Sprintf("%04d", int(y))
}

// MonthDay is a recurring day of the year (xsd:gMonthDay).
type MonthDay struct {
	Month time.Month
	Day   int
}

// String returns md as --MM-DD.
func (md MonthDay) String() string {
	return fmt.Sprintf("--%02d-%02d", int(md.Month), md.Day)
}

// Currency is an exact decimal amount. It keeps the digits it was written
// with, so "12.50" stays "12.50".
type Currency struct {
	text string
}

// ParseCurrency parses an optionally signed decimal such as "-12.50".
// Exponents and fractions are rejected.
func ParseCurrency(s string) (Currency, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 {
		return Currency{}, fmt.Errorf("invalid currency %q", s)
	}
	whole, frac, dot := strings.Cut(digits, ".")
	if whole == "" || dot && frac == "" || !allDigits(whole) || !allDigits(frac) {
		return Currency{}, fmt.Errorf("invalid currency %q", s)
	}
	return Currency{text: s}, nil
}

// MustCurrency is ParseCurrency for constants; it panics on bad input.
func MustCurrency(s string) Currency {
	c, err := ParseCurrency(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the amount as written.
func (c Currency) String() string { return c.text }

// Rat returns the amount as an exact rational.
func (c Currency) Rat() *big.Rat {
	r, _ := new(big.Rat).SetString(c.text)
	return r
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// GeoPoint is a latitude/longitude pair with an optional description.
type GeoPoint struct {
	Description string
	Latitude    float64
	Longitude   float64
}

// String returns the geolocation lexical form "<description> [lat, lon]".
func (g GeoPoint) String() string {
	coords := "[" + strconv.FormatFloat(g.Latitude, 'f', -1, 64) + ", " +
		strconv.FormatFloat(g.Longitude, 'f', -1, 64) + "]"
	if g.Description == "" {
		return coords
	}
	return g.Description + " " + coords
}

// DirectoryEntry references a principal in an external directory. Only ID
// survives serialization; DisplayName is filled in by a directory resolver.
type DirectoryEntry struct {
	ID          string
	DisplayName string
}

// StreamingValue is a large property value whose content is read lazily,
// either from a file or from bytes held in memory. Whoever consumes the value
// opens and closes the reader.
type StreamingValue struct {
	path     string // as written in the source line
	resolved string // path actually opened
	data     []byte
}

// NewStreamingFile returns a value backed by the file at path.
func NewStreamingFile(path string) *StreamingValue {
	return &StreamingValue{path: path, resolved: path}
}

// NewStreamingBytes returns a value backed by b. The slice is not copied.
func NewStreamingBytes(b []byte) *StreamingValue {
	if b == nil {
		b = []byte{}
	}
	return &StreamingValue{data: b}
}

// Path returns the source path for file-backed values, or "".
func (v *StreamingValue) Path() string {
	return v.path
}

// Open returns a reader over the content. The caller must close it.
func (v *StreamingValue) Open() (io.ReadCloser, error) {
	if v.path != "" {
		f, err := os.Open(v.resolved)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", v.path, err)
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(v.data)), nil
}

// Bytes reads the full content.
func (v *StreamingValue) Bytes() ([]byte, error) {
	if v.path == "" {
		return v.data, nil
	}
	r, err := v.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Equal reports whether two values have the same source: the same path for
// file-backed values, the same bytes otherwise.
func (v *StreamingValue) Equal(o *StreamingValue) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.path != "" || o.path != "" {
		return v.path == o.path
	}
	return bytes.Equal(v.data, o.data)
}

// ValueEqual compares two property values the way a round trip preserves
// them: instants by time.Time.Equal, streaming values by source, directory
// entries by ID, everything else by ==.
func ValueEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case *StreamingValue:
		bv, ok := b.(*StreamingValue)
		return ok && av.Equal(bv)
	case DirectoryEntry:
		bv, ok := b.(DirectoryEntry)
		return ok && av.ID == bv.ID
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	}
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Normalize widens Go numeric types to the representation a decoded literal
// has: int64 for integers, float64 for floats. Unsigned integers above
// math.MaxInt64 have no such form and are returned unchanged, as are all
// other values.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n)
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
	case float32:
		return float64(n)
	}
	return v
}
