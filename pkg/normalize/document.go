// Package normalize converts venue JSON into canonical entities.
//
// Bodies are decoded with numbers kept as their literal text, so every decimal
// is built from the exact digits the venue sent. Venue differences are declared
// in a Descriptor and interpreted by one engine.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"marketlink/pkg/core"
)

var decoder = sonic.Config{UseNumber: true}.Froze()

// PairCode stands for the venue pair code in a Path until it is bound.
const PairCode = "{pair}"

// Path addresses a value inside a decoded document. Elements are object keys
// (string) or array indexes (int).
type Path []any

// P builds a Path.
func P(elems ...any) Path {
	return Path(elems)
}

// Bind replaces every PairCode element with code.
func (p Path) Bind(code string) Path {
	out := make(Path, len(p))
	for i, e := range p {
		if s, ok := e.(string); ok && s == PairCode {
			out[i] = code
			continue
		}
		out[i] = e
	}
	return out
}

// Join returns p followed by more.
func (p Path) Join(more ...any) Path {
	out := make(Path, 0, len(p)+len(more))
	out = append(out, p...)
	return append(out, more...)
}

func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	var sb strings.Builder
	sb.WriteByte('$')
	for _, e := range p {
		switch v := e.(type) {
		case int:
			fmt.Fprintf(&sb, "[%d]", v)
		default:
			fmt.Fprintf(&sb, ".%v", v)
		}
	}
	return sb.String()
}

// Document is a decoded JSON body.
type Document struct {
	root any
}

// Decode parses body. An empty body or invalid JSON is an error.
func Decode(body []byte) (*Document, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("empty body")
	}
	var root any
	if err := decoder.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &Document{root: root}, nil
}

// Wrap makes a Document from an already decoded value.
func Wrap(v any) *Document {
	return &Document{root: v}
}

// Root returns the decoded value.
func (d *Document) Root() any {
	return d.root
}

// Lookup returns the value at path and whether it exists. JSON null counts as absent.
func (d *Document) Lookup(path Path) (any, bool) {
	cur := d.root
	for _, e := range path {
		switch k := e.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[k]; !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || k < 0 || k >= len(arr) {
				return nil, false
			}
			cur = arr[k]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// At returns a Document rooted at path.
func (d *Document) At(path Path) (*Document, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: missing", path)
	}
	return Wrap(v), nil
}

// Decimal returns the required decimal at path.
func (d *Document) Decimal(path Path) (apd.Decimal, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return apd.Decimal{}, fmt.Errorf("%s: missing", path)
	}
	dec, err := ToDecimal(v)
	if err != nil {
		return apd.Decimal{}, fmt.Errorf("%s: %w", path, err)
	}
	return dec, nil
}

// OptionalDecimal returns the decimal at path, or an invalid NullDecimal when absent.
// A present but unparseable value is still an error.
func (d *Document) OptionalDecimal(path Path) (core.NullDecimal, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return core.NullDecimal{}, nil
	}
	dec, err := ToDecimal(v)
	if err != nil {
		return core.NullDecimal{}, fmt.Errorf("%s: %w", path, err)
	}
	return core.SomeDecimal(dec), nil
}

// String returns the value at path as text. Numbers keep their literal form.
func (d *Document) String(path Path) (string, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return "", fmt.Errorf("%s: missing", path)
	}
	s, err := ToString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Int64 returns the integer at path.
func (d *Document) Int64(path Path) (int64, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, fmt.Errorf("%s: missing", path)
	}
	s, err := ToString(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", path, s)
	}
	return n, nil
}

// OptionalInt64 returns the integer at path, or nil when absent.
func (d *Document) OptionalInt64(path Path) (*int64, error) {
	if _, ok := d.Lookup(path); !ok {
		return nil, nil
	}
	n, err := d.Int64(path)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// OptionalUnixTime returns the RFC 3339 timestamp at path as unix seconds,
// or nil when absent.
func (d *Document) OptionalUnixTime(path Path) (*int64, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, nil
	}
	s, err := ToString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid time %q", path, s)
	}
	sec := t.Unix()
	return &sec, nil
}

// Flag returns the boolean at path, accepting the encodings ParseFlag does.
func (d *Document) Flag(path Path) (bool, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return false, fmt.Errorf("%s: missing", path)
	}
	b, err := ParseFlag(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Array returns the array at path.
func (d *Document) Array(path Path) ([]any, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: missing", path)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", path, v)
	}
	return arr, nil
}

// Object returns the object at path.
func (d *Document) Object(path Path) (map[string]any, error) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: missing", path)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected object, got %T", path, v)
	}
	return obj, nil
}

// ToDecimal converts a decoded JSON number or numeric string to a decimal
// using its literal digits.
func ToDecimal(v any) (apd.Decimal, error) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return apd.Decimal{}, fmt.Errorf("expected number, got %T", v)
	}
	var d apd.Decimal
	if _, _, err := apd.BaseContext.SetString(&d, s); err != nil {
		return apd.Decimal{}, fmt.Errorf("invalid decimal %q", s)
	}
	if d.Form != apd.Finite {
		return apd.Decimal{}, fmt.Errorf("non-finite decimal %q", s)
	}
	return d, nil
}

// ToString renders a scalar JSON value as text.
func ToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("expected scalar, got %T", v)
	}
}

// ParseFlag normalizes the success-flag encodings venues use: JSON booleans,
// the numbers 1 and 0, and the strings "1", "0", "true", "false".
func ParseFlag(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case json.Number:
		switch x.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("unrecognized flag %v", v)
}
