// Package strings holds small list helpers for configuration values.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value into trimmed, distinct, non-empty
// items in their original order. "a, b,,a" yields ["a" "b"].
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, ","))
}

// DedupeAndTrim drops blank and repeated items after trimming them.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
