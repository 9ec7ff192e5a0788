// Package strings provides string list helpers shared by config and policy code.
package strings

import (
	"strings"
)

// SplitList splits a separated list, dropping blanks and duplicates.
// Order of first occurrence is preserved.
//
//	SplitList("broker-1:9092, broker-2:9092,,broker-1:9092", ",")
//	// []string{"broker-1:9092", "broker-2:9092"}
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, sep))
}

// DedupeAndTrim removes duplicates and blank entries after trimming each element.
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
