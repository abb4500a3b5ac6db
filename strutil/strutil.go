// Package strutil provides small string helpers for matching, formatting
// and parsing names used throughout the module.
package strutil

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// Named is implemented by values that expose a display name.
type Named interface {
	Name() string
}

// HasPrefixFold reports whether s begins with prefix under simple Unicode
// case-folding.
func HasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// EqualFoldRune reports whether two runes are equal ignoring case.
func EqualFoldRune(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b)
}

// MatchString returns the values whose String form starts with name,
// ignoring case.
func MatchString[T fmt.Stringer](values []T, name string) []T {
	var result []T
	for _, value := range values {
		if HasPrefixFold(value.String(), name) {
			result = append(result, value)
		}
	}
	return result
}

// MatchNamed returns the values whose Name starts with name, ignoring case.
func MatchNamed[T Named](values []T, name string) []T {
	var result []T
	for _, value := range values {
		if HasPrefixFold(value.Name(), name) {
			result = append(result, value)
		}
	}
	return result
}

// MatchPath returns the paths whose base name starts with name, ignoring
// case.
func MatchPath(paths []string, name string) []string {
	var result []string
	for _, path := range paths {
		if HasPrefixFold(filepath.Base(path), name) {
			result = append(result, path)
		}
	}
	return result
}

// Shortest returns the value with the shortest name. The second return is
// false when values is empty.
func Shortest[T Named](values []T) (T, bool) {
	var (
		shortest T
		found    bool
		length   int
	)
	for _, value := range values {
		if n := len(value.Name()); !found || n < length {
			shortest, length, found = value, n, true
		}
	}
	return shortest, found
}

// ToString wraps the components in braces, separated by commas:
// ToString(1, "a") yields "{1, a}".
func ToString(components ...any) string {
	return ToNamedString(nil, components...)
}

// ToNamedString is ToString with the bare type name of object prefixed,
// for use in String methods: "PaletteArray {16, 4}".
func ToNamedString(object any, components ...any) string {
	var b strings.Builder
	if object != nil {
		b.WriteString(typeName(object))
		b.WriteByte(' ')
	}
	b.WriteByte('{')
	for i, component := range components {
		if i != 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, component)
	}
	b.WriteByte('}')
	return b.String()
}

func typeName(v any) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// ParseIntRanges converts a comma separated list of integers and inclusive
// ranges into the expanded values. Ranges may run in either direction:
// "12-14, 3, 2-0" yields [12 13 14 3 2 1 0].
func ParseIntRanges(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var values []int
	for _, element := range strings.Split(s, ",") {
		element = strings.TrimSpace(element)

		// A dash at position 0 is a sign, not a range separator.
		idx := strings.IndexByte(element, '-')
		if idx <= 0 {
			v, err := strconv.Atoi(element)
			if err != nil {
				return nil, fmt.Errorf("parse element %q: %w", element, err)
			}
			values = append(values, v)
			continue
		}

		start, err := strconv.Atoi(strings.TrimSpace(element[:idx]))
		if err != nil {
			return nil, fmt.Errorf("parse range start %q: %w", element, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(element[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("parse range end %q: %w", element, err)
		}
		switch {
		case start == end:
			values = append(values, start)
		case end > start:
			for v := start; v <= end; v++ {
				values = append(values, v)
			}
		default:
			for v := start; v >= end; v-- {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

// Levenshtein returns the edit distance between s and t, counting rune
// insertions, deletions and substitutions. It keeps two rows of the cost
// matrix rather than the full table.
func Levenshtein(s, t string) int {
	sr := []rune(s)
	tr := []rune(t)
	n, m := len(sr), len(tr)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for i := 0; i <= n; i++ {
		prev[i] = i
	}
	for j := 1; j <= m; j++ {
		cur[0] = j
		for i := 1; i <= n; i++ {
			cost := 1
			if sr[i-1] == tr[j-1] {
				cost = 0
			}
			cur[i] = min(cur[i-1]+1, prev[i]+1, prev[i-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[n]
}
