package testutil

import (
	"sync"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// Recorder collects dispatched chunks. Its Handle method matches
// engine.Handler.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	items []chunk.Buffered
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle records one dispatched chunk.
func (r *Recorder) Handle(c chunk.Chunk, ch chunk.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, chunk.Buffered{Chunk: c, Channel: ch})
}

// Items returns a copy of everything recorded, in dispatch order.
func (r *Recorder) Items() []chunk.Buffered {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chunk.Buffered, len(r.items))
	copy(out, r.items)
	return out
}

// Labels renders the recorded chunks as "seq:KIND".
func (r *Recorder) Labels() []string {
	items := r.Items()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Chunk.String()
	}
	return out
}

// Len returns the number of recorded chunks.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
