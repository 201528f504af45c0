package engine

import "github.com/roach88/chunkcatchup/internal/chunk"

// Boundary is the replay start point chosen for a merged chunk set.
type Boundary struct {
	// LastCompleted is the sequence id of the latest MESSAGE_END, if any.
	LastCompleted *int64 `json:"last_completed,omitempty"`
	// OpenStart is the sequence id of the latest MESSAGE_START after
	// LastCompleted, if any.
	OpenStart *int64 `json:"open_start,omitempty"`
}

// ResolveBoundary scans a merged, sorted set for the latest message
// boundaries. Chunks without a sequence id are never boundaries.
func ResolveBoundary(items []chunk.Buffered) Boundary {
	var b Boundary

	for i := len(items) - 1; i >= 0; i-- {
		c := items[i].Chunk
		if c.Kind == chunk.KindMessageEnd && c.SequenceID != nil {
			b.LastCompleted = chunk.Seq(*c.SequenceID)
			break
		}
	}

	for i := len(items) - 1; i >= 0; i-- {
		c := items[i].Chunk
		if c.Kind != chunk.KindMessageStart || c.SequenceID == nil {
			continue
		}
		if b.LastCompleted == nil || *c.SequenceID > *b.LastCompleted {
			b.OpenStart = chunk.Seq(*c.SequenceID)
			break
		}
	}

	return b
}

// Apply filters items down to the chunks that should be replayed.
//
//   - An open message is replayed from its MESSAGE_START, inclusive.
//   - Otherwise replay begins strictly after the last MESSAGE_END.
//   - With no boundary markers every item is replayed.
//
// In the first two cases chunks without a sequence id are dropped.
func (b Boundary) Apply(items []chunk.Buffered) []chunk.Buffered {
	var keep func(seq int64) bool
	switch {
	case b.OpenStart != nil:
		start := *b.OpenStart
		keep = func(seq int64) bool { return seq >= start }
	case b.LastCompleted != nil:
		end := *b.LastCompleted
		keep = func(seq int64) bool { return seq > end }
	default:
		out := make([]chunk.Buffered, len(items))
		copy(out, items)
		return out
	}

	out := make([]chunk.Buffered, 0, len(items))
	for _, it := range items {
		seq, ok := it.Chunk.Seq()
		if ok && keep(seq) {
			out = append(out, it)
		}
	}
	return out
}

// Replay merges items and returns the chunks to dispatch together with the
// boundary that selected them.
func Replay(items []chunk.Buffered) ([]chunk.Buffered, Boundary) {
	merged := Merge(items)
	b := ResolveBoundary(merged)
	return b.Apply(merged), b
}
