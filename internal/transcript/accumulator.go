package transcript

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// SegmentKind names a segment of a rendered message.
type SegmentKind string

const (
	SegmentText            SegmentKind = "text"
	SegmentToolExecution   SegmentKind = "tool_execution"
	SegmentApprovalRequest SegmentKind = "approval_request"
	SegmentError           SegmentKind = "error"
)

// ApprovalStatus is the state of an approval request segment.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRequest is an approval shown to the user.
type ApprovalRequest struct {
	RequestID    string         `json:"request_id"`
	Command      string         `json:"command"`
	Explanation  string         `json:"explanation,omitempty"`
	ApprovalType string         `json:"approval_type"`
	Status       ApprovalStatus `json:"status"`
}

// Segment is one piece of a rendered message.
type Segment struct {
	Kind     SegmentKind      `json:"type"`
	Text     string           `json:"text,omitempty"`
	Tool     *ToolExecution   `json:"tool,omitempty"`
	Approval *ApprovalRequest `json:"approval,omitempty"`
	Error    string           `json:"error,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// Message is one assistant message assembled from a MESSAGE_START ...
// MESSAGE_END run.
type Message struct {
	Segments []Segment `json:"segments"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Complete bool      `json:"complete"`
}

// Escalated is an approval request routed away from the user because its
// approval type is not displayed.
type Escalated struct {
	Command      string `json:"command"`
	Explanation  string `json:"explanation,omitempty"`
	ApprovalType string `json:"approval_type"`
}

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithDisplayApprovalTypes sets the approval types rendered as segments.
// Others are tracked as escalated. Default: CLIENT.
func WithDisplayApprovalTypes(types ...string) AccumulatorOption {
	return func(a *Accumulator) {
		a.display = make(map[string]bool, len(types))
		for _, t := range types {
			a.display[t] = true
		}
	}
}

// Accumulator builds messages from parsed actions.
//
// Thread-safety: all methods are safe for concurrent use.
type Accumulator struct {
	mu sync.Mutex

	display map[string]bool

	done      []Message
	current   *Message
	textBuf   string
	executing map[string]*ToolExecution
	escalated map[string]Escalated
	requests  []string
	errors    []string
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		display:   map[string]bool{"CLIENT": true},
		executing: make(map[string]*ToolExecution),
		escalated: make(map[string]Escalated),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle parses and applies one dispatched chunk. It matches the
// engine.Handler signature; the channel is ignored.
func (a *Accumulator) Handle(c chunk.Chunk, _ chunk.Channel) {
	if act, ok := Parse(c); ok {
		a.Apply(act)
	}
}

// Apply applies one action.
func (a *Accumulator) Apply(act Action) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch act.Kind {
	case ActionMessageStart:
		a.closeLocked(false)
		a.current = &Message{Segments: []Segment{}}
		a.textBuf = ""

	case ActionMessageEnd:
		a.closeLocked(true)

	case ActionMetadata:
		a.messageLocked().Metadata = act.Metadata

	case ActionText:
		a.appendTextLocked(act.Text)

	case ActionToolExecution:
		a.addToolLocked(*act.Tool)

	case ActionApprovalRequest:
		if a.display[act.ApprovalType] {
			a.addApprovalLocked(act.RequestID, act.Command, act.Explanation, act.ApprovalType, ApprovalPending)
			return
		}
		a.escalated[act.RequestID] = Escalated{
			Command:      act.Command,
			Explanation:  act.Explanation,
			ApprovalType: act.ApprovalType,
		}

	case ActionApprovalResult:
		status := ApprovalRejected
		if act.Approved {
			status = ApprovalApproved
		}
		if esc, ok := a.escalated[act.RequestID]; ok {
			delete(a.escalated, act.RequestID)
			a.addApprovalLocked(act.RequestID, esc.Command, esc.Explanation, esc.ApprovalType, status)
			return
		}
		a.updateApprovalLocked(act.RequestID, status)

	case ActionError:
		msg := errorMessage(act.Details)
		m := a.messageLocked()
		m.Segments = append(m.Segments, Segment{Kind: SegmentError, Error: act.Error, Message: msg})
		a.errors = append(a.errors, act.Error)

	case ActionMessageRequest:
		a.requests = append(a.requests, act.Text)
	}
}

// Messages returns finished messages followed by the open one, if any.
func (a *Accumulator) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Message, 0, len(a.done)+1)
	for _, m := range a.done {
		out = append(out, cloneMessage(m))
	}
	if a.current != nil {
		out = append(out, cloneMessage(*a.current))
	}
	return out
}

// Segments returns the segments of the open message, or of the last
// finished one if none is open.
func (a *Accumulator) Segments() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.current != nil:
		return slices.Clone(a.current.Segments)
	case len(a.done) > 0:
		return slices.Clone(a.done[len(a.done)-1].Segments)
	}
	return []Segment{}
}

// Escalated returns approval requests still awaiting a result.
func (a *Accumulator) Escalated() map[string]Escalated {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Escalated, len(a.escalated))
	for k, v := range a.escalated {
		out[k] = v
	}
	return out
}

// UserMessages returns MESSAGE_REQUEST texts in arrival order.
func (a *Accumulator) UserMessages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.requests)
}

// Errors returns ERROR texts in arrival order.
func (a *Accumulator) Errors() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.errors)
}

// UpdateApprovalStatus sets the status of every displayed approval segment
// with the given request id, in the open message.
func (a *Accumulator) UpdateApprovalStatus(requestID string, status ApprovalStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateApprovalLocked(requestID, status)
}

// Reset discards everything.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.done = nil
	a.current = nil
	a.textBuf = ""
	clear(a.executing)
	clear(a.escalated)
	a.requests = nil
	a.errors = nil
}

// messageLocked returns the open message, opening one if a chunk arrives
// outside MESSAGE_START ... MESSAGE_END.
func (a *Accumulator) messageLocked() *Message {
	if a.current == nil {
		a.current = &Message{Segments: []Segment{}}
		a.textBuf = ""
	}
	return a.current
}

func (a *Accumulator) closeLocked(complete bool) {
	if a.current == nil {
		return
	}
	a.current.Complete = complete
	a.done = append(a.done, *a.current)
	a.current = nil
	a.textBuf = ""
}

func (a *Accumulator) appendTextLocked(text string) {
	m := a.messageLocked()
	if n := len(m.Segments); n > 0 && m.Segments[n-1].Kind == SegmentText {
		a.textBuf += text
		m.Segments[n-1].Text = a.textBuf
		return
	}
	a.textBuf = text
	m.Segments = append(m.Segments, Segment{Kind: SegmentText, Text: text})
}

// addToolLocked appends a running tool, or replaces the matching running
// tool segment with its finished form.
func (a *Accumulator) addToolLocked(t ToolExecution) {
	m := a.messageLocked()
	key := t.key()

	if t.Running() {
		tc := t
		a.executing[key] = &tc
		m.Segments = append(m.Segments, Segment{Kind: SegmentToolExecution, Tool: &tc})
		return
	}

	if t.Parameters == nil {
		if running, ok := a.executing[key]; ok {
			t.Parameters = running.Parameters
		}
	}
	delete(a.executing, key)

	seg := Segment{Kind: SegmentToolExecution, Tool: &t}
	for i, s := range m.Segments {
		if s.Kind == SegmentToolExecution && s.Tool.Running() && s.Tool.key() == key {
			m.Segments[i] = seg
			return
		}
	}
	m.Segments = append(m.Segments, seg)
}

func (a *Accumulator) addApprovalLocked(id, command, explanation, approvalType string, status ApprovalStatus) {
	m := a.messageLocked()
	m.Segments = append(m.Segments, Segment{Kind: SegmentApprovalRequest, Approval: &ApprovalRequest{
		RequestID:    id,
		Command:      command,
		Explanation:  explanation,
		ApprovalType: approvalType,
		Status:       status,
	}})
}

func (a *Accumulator) updateApprovalLocked(id string, status ApprovalStatus) {
	if a.current == nil {
		return
	}
	for i, s := range a.current.Segments {
		if s.Kind == SegmentApprovalRequest && s.Approval.RequestID == id {
			updated := *s.Approval
			updated.Status = status
			a.current.Segments[i].Approval = &updated
		}
	}
}

// errorMessage extracts error.message from JSON details, falling back to
// the raw details.
func errorMessage(details string) string {
	if details == "" {
		return ""
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(details), &body); err != nil {
		return details
	}
	return body.Error.Message
}

func cloneMessage(m Message) Message {
	m.Segments = slices.Clone(m.Segments)
	if m.Segments == nil {
		m.Segments = []Segment{}
	}
	return m
}
