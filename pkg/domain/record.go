package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrMissingField is returned by accessors when a key (or a step of a dotted path) is absent or null
	ErrMissingField = errors.New("missing field")
	// ErrWrongType is returned by accessors when a value exists but has an unexpected type
	ErrWrongType = errors.New("wrong field type")
)

// Record is a schema-less document as it flows between the APIs and the store.
// Values come either from encoding/json (map[string]any, []any, float64, ...)
// or from the Mongo driver (bson.M, bson.D, bson.A, int32, ...); accessors accept both.
type Record map[string]any

// Clone returns a shallow copy; nested values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Lookup resolves a dotted path ("indicator.id") through nested documents.
func (r Record) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := AsMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Present reports whether path resolves to a non-null, non-empty value.
// Zero numbers count as present.
func (r Record) Present(path string) bool {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// String returns the string at path.
func (r Record) String(path string) (string, error) {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrWrongType, path, v)
	}
	return s, nil
}

// StringOr returns the string at path or def when it is absent or not a string.
func (r Record) StringOr(path, def string) string {
	s, err := r.String(path)
	if err != nil {
		return def
	}
	return s
}

// Float returns the numeric value at path. Numeric strings are parsed.
func (r Record) Float(path string) (float64, error) {
	v, ok := r.Lookup(path)
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, path)
	}
	f, err := ToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ToFloat converts JSON/BSON numeric values and numeric strings to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case primitive.Decimal128:
		return strconv.ParseFloat(n.String(), 64)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrWrongType, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrWrongType, v)
	}
}

// AsMap views a nested document as a plain map, whichever decoder produced it.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	case bson.M:
		return m, true
	case bson.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

// AsSlice views a nested array as []any.
func AsSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case bson.A:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}
