package graph

import "sort"

// MergeStringSet returns the sorted set union of the two string slices.
// It is used by graph implementations to merge edge evidence and author
// interest lists so that repeated ingestion of the same extraction
// yields an identical result.
func MergeStringSet(existing, incoming []string) []string {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(existing)+len(incoming))
	for _, v := range existing {
		set[v] = struct{}{}
	}
	for _, v := range incoming {
		set[v] = struct{}{}
	}

	merged := make([]string, 0, len(set))
	for v := range set {
		merged = append(merged, v)
	}

	sort.Strings(merged)

	return merged
}
