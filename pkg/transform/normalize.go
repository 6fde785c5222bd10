// Package transform holds the pure helpers shared by every transform task:
// key normalization, deduplication and safe value coercion.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"edu-etl/pkg/domain"
)

var (
	capitalizedWord = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerThenUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// ToSnakeCase converts camelCase, PascalCase and "Spaced Words" keys to snake_case.
func ToSnakeCase(s string) string {
	s = capitalizedWord.ReplaceAllString(s, "${1}_${2}")
	s = lowerThenUpper.ReplaceAllString(s, "${1}_${2}")
	return strings.ReplaceAll(Lower(s), " ", "_")
}

// Lower applies full Unicode lower casing.
func Lower(s string) string { return cases.Lower(language.Und).String(s) }

// Upper applies full Unicode upper casing.
func Upper(s string) string { return cases.Upper(language.Und).String(s) }

// NormalizeKeys returns a new record with top-level keys converted by ToSnakeCase.
// Values are carried over as-is; nested documents keep their original keys.
func NormalizeKeys(rec domain.Record) domain.Record {
	out := make(domain.Record, len(rec))
	for k, v := range rec {
		out[ToSnakeCase(k)] = v
	}
	return out
}

// DedupeBy keeps the first item for every distinct key, preserving order.
// A key error is returned as-is (wrapped with the item position); callers are
// expected to filter out items the key function cannot handle.
func DedupeBy[T any, K comparable](items []T, key func(T) (K, error)) ([]T, error) {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for i, item := range items {
		k, err := key(item)
		if err != nil {
			return nil, fmt.Errorf("dedupe key for item %d: %w", i, err)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

// SafeParseDate parses v with a strptime-style format ("%Y", "%Y-%m-%d").
// It returns nil for nil input, non-string input or any parse failure.
func SafeParseDate(v any, format string) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := strftime.Parse(format, s)
	if err != nil {
		return nil
	}
	return &t
}

// RoundTo rounds f to the given number of decimal places, deciding ties on the
// exact binary value (2.675 -> 2.67).
func RoundTo(f float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', places, 64), 64)
	if err != nil {
		return f
	}
	return r
}
