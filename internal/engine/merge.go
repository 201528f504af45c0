package engine

import "github.com/roach88/chunkcatchup/internal/chunk"

// Merge orders items by sequence id and removes duplicate deliveries.
//
// The input is typically fetched history followed by whatever the live
// buffer accumulated during the fetch. Ordering is stable, so among chunks
// with equal sequence ids history wins over live. The first occurrence of
// each dedup key in sorted order is kept.
//
// The input slice is not modified.
func Merge(items []chunk.Buffered) []chunk.Buffered {
	sorted := make([]chunk.Buffered, len(items))
	copy(sorted, items)
	sortBySequence(sorted)

	seen := make(map[string]struct{}, len(sorted))
	out := make([]chunk.Buffered, 0, len(sorted))
	for _, it := range sorted {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
