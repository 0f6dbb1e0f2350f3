package models

import "strings"

// ContainsFold reports whether needle occurs in haystack, ignoring case.
// An empty needle never matches.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// AreasOverlap is the bidirectional containment check used for matching:
// either side may be the more specific name. Empty values never match.
func AreasOverlap(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return ContainsFold(a, b) || ContainsFold(b, a)
}
