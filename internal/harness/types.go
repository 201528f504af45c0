package harness

// TraceEvent is one dispatched chunk.
type TraceEvent struct {
	Step    int    `json:"step"`
	Channel string `json:"channel"`
	Seq     *int64 `json:"seq,omitempty"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
}

// Label renders the event as "seq:KIND".
func (e TraceEvent) Label() string {
	if e.Seq == nil {
		return "-:" + e.Type
	}
	return formatLabel(*e.Seq, e.Type)
}

// StepReport summarizes one catch_up or reconnect step.
type StepReport struct {
	Step           int      `json:"step"`
	Action         string   `json:"action"`
	From           *int64   `json:"from,omitempty"`
	Outcome        string   `json:"outcome"`
	Skip           string   `json:"skip,omitempty"`
	Fetched        int      `json:"fetched"`
	Buffered       int      `json:"buffered"`
	Merged         int      `json:"merged"`
	Replayed       int      `json:"replayed"`
	AlreadyApplied int      `json:"already_applied"`
	Flushed        int      `json:"flushed"`
	LastCompleted  *int64   `json:"last_completed,omitempty"`
	OpenStart      *int64   `json:"open_start,omitempty"`
	FailedChannels []string `json:"failed_channels,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists dispatched chunks in dispatch order.
	Trace []TraceEvent `json:"trace"`

	// Reports has one entry per catch_up or reconnect step.
	Reports []StepReport `json:"reports"`

	// FinalState is the engine state after the last step.
	FinalState string `json:"final_state"`

	// Processed is the engine's processed sequence id count at the end.
	Processed int `json:"processed"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Reports: []StepReport{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Labels renders the trace as "seq:KIND" strings.
func (r *Result) Labels() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = e.Label()
	}
	return out
}
