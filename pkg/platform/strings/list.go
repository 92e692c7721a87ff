// Package strings normalizes list-valued settings such as broker addresses,
// protocol names and sink names.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value and normalizes the parts.
func SplitList(raw string) []string {
	return Normalize(strings.Split(raw, ","))
}

// Normalize trims each element, drops empty ones and removes duplicates.
// The first occurrence keeps its position. It returns nil when nothing is
// left.
func Normalize(values []string) []string {
	return normalize(values, strings.TrimSpace)
}

// NormalizeFold is Normalize for case-insensitive names; elements are
// lowercased.
func NormalizeFold(values []string) []string {
	return normalize(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func normalize(values []string, clean func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = clean(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
