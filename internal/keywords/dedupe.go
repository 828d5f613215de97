// Package keywords implements the pure keyword-processing core of the
// Composer pipeline: dedupe/merge primitives, CSV/XLSX batch parsing,
// count validation, and the rule-based cleaning engine.
package keywords

import "strings"

// Dedupe trims each keyword, drops blank entries, and removes
// case-insensitive duplicates. The first-seen original casing and
// relative order are preserved.
func Dedupe(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// Merge combines an incoming batch into an existing keyword set: the
// existing set deduplicated, followed by incoming entries that are not
// case-insensitive duplicates of anything already merged. On case-only
// conflicts the existing casing wins.
func Merge(existing, incoming []string) []string {
	merged := Dedupe(existing)
	seen := make(map[string]bool, len(merged))
	for _, kw := range merged {
		seen[strings.ToLower(kw)] = true
	}
	for _, kw := range incoming {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, kw)
	}
	return merged
}
