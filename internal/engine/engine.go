package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// Handler consumes dispatched chunks. It is called once per chunk, in
// engine order, with the Engine lock held: a handler must not call
// ProcessChunk, CatchUp, Reset or ResetAndCatchUp synchronously.
type Handler func(c chunk.Chunk, ch chunk.Channel)

// Option configures an Engine.
type Option func(*Engine)

// WithChannels sets the channels reconciled by CatchUp.
// An empty list keeps the default (the client channel).
func WithChannels(channels ...chunk.Channel) Option {
	return func(e *Engine) {
		if len(channels) == 0 {
			return
		}
		e.channels = append([]chunk.Channel(nil), channels...)
	}
}

// WithRetriever sets the history source. Without one the engine runs in
// live-only mode: CatchUp flushes the buffer and goes live immediately.
func WithRetriever(r Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFetchTimeout bounds each catch-up fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.fetchTimeout = d
	}
}

// WithDialog sets the initial dialog id.
func WithDialog(id string) Option {
	return func(e *Engine) {
		e.dialogID = id
	}
}

// Engine reconciles live and historical chunks for one dialog session.
//
// Thread-safety model:
//   - All methods are safe for concurrent use.
//   - One mutex guards session state. CatchUp releases it for the duration
//     of the history fetch only, so live chunks keep flowing into the buffer.
//   - Merge, boundary resolution and dispatch run to completion under the
//     lock. Dispatch order is therefore non-decreasing by sequence id during
//     reconciliation and equal to arrival order once live.
//
// INVARIANTS:
//   - At most one catch-up fetch is in flight per generation.
//   - A fetch result is applied only if the generation it started in is
//     still current; Reset, SetDialog and ResetAndCatchUp start a new one.
//   - Every CatchUp that fetches ends in StateLive, whatever failed.
type Engine struct {
	mu sync.Mutex

	handler atomic.Pointer[Handler]

	dialogID     string
	channels     []chunk.Channel
	retriever    Retriever
	fetchTimeout time.Duration
	logger       *slog.Logger

	tracker    *Tracker
	buffer     *LiveBuffer
	state      State
	completed  bool
	inflight   bool
	generation uint64
}

// New creates an Engine that dispatches to handler.
func New(handler Handler, opts ...Option) *Engine {
	e := &Engine{
		channels: chunk.DefaultChannels(),
		logger:   slog.Default(),
		tracker:  NewTracker(),
		buffer:   NewLiveBuffer(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.SetHandler(handler)
	return e
}

// SetHandler replaces the consumer. The new handler receives every chunk
// dispatched after the call; a dispatch already running is not disturbed.
func (e *Engine) SetHandler(h Handler) {
	e.handler.Store(&h)
}

// SetDialog switches the session to a new dialog. Switching to a different
// id resets all tracking; setting the current id is a no-op.
func (e *Engine) SetDialog(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == e.dialogID {
		return
	}
	e.resetLocked()
	e.dialogID = id
}

// DialogID returns the current dialog id.
func (e *Engine) DialogID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dialogID
}

// State returns the current reconciliation state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsBuffering reports whether live chunks are being held for a catch-up.
func (e *Engine) IsBuffering() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Active()
}

// ProcessedCount returns the number of distinct (channel, sequence id) pairs
// dispatched in this session. Live and flushed dispatches count as well as
// replayed history, so a reconnect can skip anything already delivered.
func (e *Engine) ProcessedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Count()
}

// LastSequenceID returns the last dispatched sequence id, the point a
// reconnect resumes from.
func (e *Engine) LastSequenceID() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.LastKnown()
}

// StartInitialBuffering begins holding live chunks until the next catch-up
// completes. Anything already buffered is discarded.
func (e *Engine) StartInitialBuffering() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buffer.Start()
	e.completed = false
	if !e.inflight {
		e.state = StateBuffering
	}
}

// Reset clears all tracking for the session and returns it to idle.
// A fetch still in flight is invalidated.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.generation++
	e.tracker.Reset()
	e.buffer.Clear()
	e.inflight = false
	e.completed = false
	e.state = StateIdle
}

// ProcessChunk accepts a chunk from the live transport.
//
// While buffering, the chunk is queued for the pending catch-up unless force
// is set. Otherwise it is dispatched immediately with no dedup against
// history. Returns true if the chunk was buffered.
func (e *Engine) ProcessChunk(c chunk.Chunk, ch chunk.Channel, force bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := chunk.Buffered{Chunk: c, Channel: ch}
	if !force && e.buffer.Append(item) {
		return true
	}
	e.dispatchLocked(item)
	return false
}

// CatchUp fetches history from the given sequence id (nil for all of it),
// merges it with buffered live chunks, and dispatches the replay set.
//
// CatchUp never returns an error. Per-channel failures are reported in the
// Report and the session still goes live with the buffer flushed. Calls are
// ignored when no dialog is set, when the initial catch-up already
// completed, or when a fetch is already in flight.
func (e *Engine) CatchUp(ctx context.Context, from *int64) Report {
	e.mu.Lock()
	rep := Report{DialogID: e.dialogID, Generation: e.generation}
	if from != nil {
		rep.From = chunk.Seq(*from)
	}

	if skip := e.guardLocked(); skip != SkipNone {
		e.mu.Unlock()
		rep.Outcome = OutcomeSkipped
		rep.Skip = skip
		e.logger.Debug("catch-up skipped",
			"dialog", rep.DialogID,
			"reason", string(skip),
		)
		return rep
	}

	if e.retriever == nil {
		defer e.mu.Unlock()
		rep.Outcome = OutcomeLiveOnly
		e.goLiveLocked(&rep)
		e.logger.Info("catch-up complete without history",
			"dialog", rep.DialogID,
			"flushed", rep.Flushed,
		)
		return rep
	}

	e.inflight = true
	e.state = StateFetching
	gen := e.generation
	f := &fetcher{
		retriever: e.retriever,
		channels:  e.channels,
		timeout:   e.fetchTimeout,
		logger:    e.logger,
	}
	e.mu.Unlock()

	fetched, failures := f.fetchAll(ctx, rep.DialogID, from)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		rep.Outcome = OutcomeStale
		rep.Fetched = len(fetched)
		rep.Failures = failures
		e.logger.Warn("discarding stale catch-up result",
			"dialog", rep.DialogID,
			"generation", gen,
			"current_generation", e.generation,
			"fetched", len(fetched),
		)
		return rep
	}

	rep.Outcome = OutcomeReconciled
	rep.Fetched = len(fetched)
	rep.Failures = failures
	e.reconcileLocked(fetched, &rep)

	e.logger.Info("catch-up complete",
		"dialog", rep.DialogID,
		"fetched", rep.Fetched,
		"buffered", rep.Buffered,
		"replayed", rep.Replayed,
		"flushed", rep.Flushed,
		"failed_channels", len(rep.Failures),
	)
	return rep
}

// ResetAndCatchUp re-enters buffering and reruns catch-up from the last
// dispatched sequence id. Use after a transport reconnect to backfill
// traffic missed during the gap. A fetch still in flight is invalidated.
func (e *Engine) ResetAndCatchUp(ctx context.Context) Report {
	e.mu.Lock()
	if e.dialogID == "" {
		gen := e.generation
		e.mu.Unlock()
		return Report{Outcome: OutcomeSkipped, Skip: SkipNoDialog, Generation: gen}
	}

	var from *int64
	if last, ok := e.tracker.LastKnown(); ok {
		from = chunk.Seq(last)
	}
	e.generation++
	e.completed = false
	e.inflight = false
	e.buffer.Start()
	e.state = StateBuffering
	e.mu.Unlock()

	return e.CatchUp(ctx, from)
}

func (e *Engine) guardLocked() SkipReason {
	switch {
	case e.dialogID == "":
		return SkipNoDialog
	case e.completed:
		return SkipCompleted
	case e.inflight:
		return SkipInFlight
	}
	return SkipNone
}

// reconcileLocked merges history with the buffer, resolves the replay
// boundary and dispatches. It always ends live, even if it panics part way.
func (e *Engine) reconcileLocked(fetched []chunk.Buffered, rep *Report) {
	defer func() {
		if r := recover(); r != nil {
			rep.Recovered = fmt.Sprint(r)
			e.logger.Error("catch-up reconciliation failed",
				"dialog", e.dialogID,
				"panic", r,
			)
		}
		e.goLiveLocked(rep)
	}()

	if len(fetched) == 0 {
		return
	}

	live := e.buffer.Drain()
	rep.Buffered = len(live)

	items := make([]chunk.Buffered, 0, len(fetched)+len(live))
	items = append(items, fetched...)
	items = append(items, live...)

	merged := Merge(items)
	rep.Merged = len(merged)
	rep.Boundary = ResolveBoundary(merged)

	for _, it := range rep.Boundary.Apply(merged) {
		if seq, ok := it.Chunk.Seq(); ok && e.tracker.Applied(it.Channel, seq) {
			rep.AlreadyApplied++
			continue
		}
		e.dispatchLocked(it)
		rep.Replayed++
	}
}

// goLiveLocked flushes whatever is still buffered, in sequence order, and
// switches the session to live.
func (e *Engine) goLiveLocked(rep *Report) {
	pending := e.buffer.DrainSorted()
	e.buffer.Stop()
	e.inflight = false
	e.completed = true
	e.state = StateLive

	for _, it := range pending {
		e.dispatchLocked(it)
		rep.Flushed++
	}
}

func (e *Engine) dispatchLocked(it chunk.Buffered) {
	if seq, ok := it.Chunk.Seq(); ok {
		e.tracker.RecordApplied(it.Channel, seq)
	}

	h := e.handler.Load()
	if h == nil || *h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("chunk handler panicked",
				"dialog", e.dialogID,
				"channel", string(it.Channel),
				"chunk", it.Chunk.String(),
				"panic", r,
			)
		}
	}()
	(*h)(it.Chunk, it.Channel)
}
