package engine

import "github.com/roach88/chunkcatchup/internal/chunk"

type appliedKey struct {
	channel chunk.Channel
	seq     int64
}

// Tracker records which sequence ids have been applied in the active session.
//
// The watermark is global rather than per channel: the retrieval contract
// takes a single resume point per catch-up, so a per-channel watermark would
// have nowhere to go. Applied keys are channel scoped.
//
// Tracker is not safe for concurrent use; the Engine guards it.
type Tracker struct {
	applied map[appliedKey]struct{}
	last    int64
	hasLast bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{applied: make(map[appliedKey]struct{})}
}

// RecordApplied marks (channel, seq) as applied and moves the watermark to seq.
// Recording the same key twice is a no-op for the key set.
func (t *Tracker) RecordApplied(ch chunk.Channel, seq int64) {
	t.applied[appliedKey{channel: ch, seq: seq}] = struct{}{}
	t.last = seq
	t.hasLast = true
}

// Applied reports whether (channel, seq) has been recorded.
func (t *Tracker) Applied(ch chunk.Channel, seq int64) bool {
	_, ok := t.applied[appliedKey{channel: ch, seq: seq}]
	return ok
}

// LastKnown returns the last applied sequence id, the resume point after a
// reconnect.
func (t *Tracker) LastKnown() (int64, bool) {
	return t.last, t.hasLast
}

// Count returns the number of distinct applied keys.
func (t *Tracker) Count() int {
	return len(t.applied)
}

// Reset clears all tracked state. Used when switching sessions.
func (t *Tracker) Reset() {
	clear(t.applied)
	t.last = 0
	t.hasLast = false
}
