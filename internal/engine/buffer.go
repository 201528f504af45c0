package engine

import (
	"slices"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// LiveBuffer holds chunks that arrive from the live transport while a
// catch-up is pending.
//
// The buffer is unbounded: a buffering window lasts only as long as one
// catch-up, and dropping a chunk would break the exactly-once guarantee.
//
// LiveBuffer is not safe for concurrent use; the Engine guards it.
type LiveBuffer struct {
	items  []chunk.Buffered
	active bool
}

// NewLiveBuffer creates an inactive, empty buffer.
func NewLiveBuffer() *LiveBuffer {
	return &LiveBuffer{items: make([]chunk.Buffered, 0, 16)}
}

// Start enters buffering mode and discards anything held from before.
func (b *LiveBuffer) Start() {
	b.reset()
	b.active = true
}

// Stop leaves buffering mode. Held items are kept until drained.
func (b *LiveBuffer) Stop() {
	b.active = false
}

// Clear discards held items and leaves buffering mode.
func (b *LiveBuffer) Clear() {
	b.reset()
	b.active = false
}

// Active reports whether the buffer is accepting chunks.
func (b *LiveBuffer) Active() bool {
	return b.active
}

// Append stores the chunk if buffering is active.
// Returns false when not buffering; the caller dispatches directly instead.
func (b *LiveBuffer) Append(item chunk.Buffered) bool {
	if !b.active {
		return false
	}
	b.items = append(b.items, item)
	return true
}

// Len returns the number of held chunks.
func (b *LiveBuffer) Len() int {
	return len(b.items)
}

// Drain empties the buffer and returns its contents in arrival order.
func (b *LiveBuffer) Drain() []chunk.Buffered {
	out := b.items
	b.items = make([]chunk.Buffered, 0, 16)
	return out
}

// DrainSorted empties the buffer and returns its contents ordered by
// sequence id, ties kept in arrival order.
func (b *LiveBuffer) DrainSorted() []chunk.Buffered {
	out := b.Drain()
	sortBySequence(out)
	return out
}

func (b *LiveBuffer) reset() {
	// Release references held by the old backing array.
	clear(b.items)
	b.items = b.items[:0]
}

// sortBySequence orders items ascending by sequence id. A missing id sorts
// as 0 and ahead of an explicit 0. The sort is stable, so equal keys keep
// their input order.
func sortBySequence(items []chunk.Buffered) {
	slices.SortStableFunc(items, func(a, b chunk.Buffered) int {
		sa, sb := a.Chunk.SortSeq(), b.Chunk.SortSeq()
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		ha, hb := a.Chunk.HasSeq(), b.Chunk.HasSeq()
		switch {
		case !ha && hb:
			return -1
		case ha && !hb:
			return 1
		}
		return 0
	})
}
