package engine

import "github.com/roach88/chunkcatchup/internal/chunk"

// Outcome summarizes what a CatchUp call did.
type Outcome string

const (
	// OutcomeReconciled means history was fetched (possibly empty or
	// partially failed) and the session is now live.
	OutcomeReconciled Outcome = "reconciled"

	// OutcomeLiveOnly means no retriever is configured; the buffer was
	// flushed and the session is now live.
	OutcomeLiveOnly Outcome = "live_only"

	// OutcomeSkipped means a guard refused the call; see Report.Skip.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeStale means the session was reset while the fetch was in flight.
	// The result was discarded without touching session state.
	OutcomeStale Outcome = "stale"
)

// SkipReason names the guard that refused a CatchUp call.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipNoDialog  SkipReason = "no_dialog"
	SkipCompleted SkipReason = "completed"
	SkipInFlight  SkipReason = "in_flight"
)

// Report describes one CatchUp call.
type Report struct {
	Outcome    Outcome    `json:"outcome"`
	Skip       SkipReason `json:"skip,omitempty"`
	DialogID   string     `json:"dialog_id,omitempty"`
	From       *int64     `json:"from,omitempty"`
	Generation uint64     `json:"generation"`

	// Fetched is the number of history chunks returned across channels.
	Fetched int `json:"fetched"`
	// Buffered is the number of live chunks merged with the history.
	Buffered int `json:"buffered"`
	// Merged is the size of the deduplicated set.
	Merged int `json:"merged"`
	// Replayed is the number of chunks dispatched from the merged set.
	Replayed int `json:"replayed"`
	// AlreadyApplied counts replay candidates skipped because this session
	// had already dispatched them.
	AlreadyApplied int `json:"already_applied,omitempty"`
	// Flushed is the number of buffered live chunks dispatched without
	// merging, when history was empty or reconciliation failed.
	Flushed int `json:"flushed"`

	Boundary Boundary      `json:"boundary"`
	Failures []*FetchError `json:"failures,omitempty"`

	// Recovered holds the panic value if reconciliation failed part way.
	Recovered string `json:"recovered,omitempty"`
}

// Dispatched returns the total number of chunks handed to the handler.
func (r Report) Dispatched() int {
	return r.Replayed + r.Flushed
}

// FailedChannels lists the channels whose fetch failed.
func (r Report) FailedChannels() []chunk.Channel {
	out := make([]chunk.Channel, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Channel)
	}
	return out
}
