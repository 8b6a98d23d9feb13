package profile

import "sort"

// SortCounts orders counts by descending count. The sort is stable, so
// callers that build counts in first-appearance order keep that order for ties.
func SortCounts(counts []ValueCount) {
	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].Count > counts[b].Count
	})
}
