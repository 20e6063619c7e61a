// Package strings holds small slice-of-string helpers shared by config parsing
// and request normalization.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value, drops blanks and keeps the first occurrence
// of every remaining value in input order. A nil or empty input is returned as is.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
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
