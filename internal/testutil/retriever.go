package testutil

import (
	"context"
	"sync"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// FetchCall records one call made to a ScriptedRetriever.
type FetchCall struct {
	DialogID string
	Channel  chunk.Channel
	From     *int64
}

// ScriptedRetriever serves canned history per channel for tests.
//
// A channel can be scripted to fail, to panic, or to block until Release is
// called. Blocking is how tests hold a catch-up in flight while they feed
// live chunks into the engine.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedRetriever struct {
	mu      sync.Mutex
	history map[chunk.Channel][]chunk.Chunk
	errs    map[chunk.Channel]error
	panics  map[chunk.Channel]any
	calls   []FetchCall
	gate    chan struct{}
	entered chan struct{}
}

// NewScriptedRetriever creates a retriever with no history.
func NewScriptedRetriever() *ScriptedRetriever {
	return &ScriptedRetriever{
		history: make(map[chunk.Channel][]chunk.Chunk),
		errs:    make(map[chunk.Channel]error),
		panics:  make(map[chunk.Channel]any),
		entered: make(chan struct{}, 64),
	}
}

// SetHistory sets the chunks returned for a channel.
func (r *ScriptedRetriever) SetHistory(ch chunk.Channel, chunks ...chunk.Chunk) *ScriptedRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[ch] = chunks
	return r
}

// FailWith makes fetches for ch return err.
func (r *ScriptedRetriever) FailWith(ch chunk.Channel, err error) *ScriptedRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[ch] = err
	return r
}

// PanicWith makes fetches for ch panic with v.
func (r *ScriptedRetriever) PanicWith(ch chunk.Channel, v any) *ScriptedRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics[ch] = v
	return r
}

// Hold makes subsequent fetches block until Release is called or their
// context ends.
func (r *ScriptedRetriever) Hold() *ScriptedRetriever {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	return r
}

// Release unblocks held fetches.
func (r *ScriptedRetriever) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
}

// Entered signals once per fetch call, after the call is recorded and
// before it blocks on the gate.
func (r *ScriptedRetriever) Entered() <-chan struct{} {
	return r.entered
}

// Calls returns a copy of the recorded calls.
func (r *ScriptedRetriever) Calls() []FetchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FetchCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// FetchChunks implements engine.Retriever.
func (r *ScriptedRetriever) FetchChunks(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error) {
	r.mu.Lock()
	call := FetchCall{DialogID: dialogID, Channel: ch}
	if from != nil {
		call.From = chunk.Seq(*from)
	}
	r.calls = append(r.calls, call)
	gate := r.gate
	history := append([]chunk.Chunk(nil), r.history[ch]...)
	err := r.errs[ch]
	p, shouldPanic := r.panics[ch]
	r.mu.Unlock()

	select {
	case r.entered <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if shouldPanic {
		panic(p)
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}
