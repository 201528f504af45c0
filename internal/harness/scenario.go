package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// Scenario defines a catch-up conformance scenario: scripted history, a
// sequence of session steps, and assertions on what was dispatched.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialog is the dialog id. Defaults to "dialog-1".
	Dialog string `yaml:"dialog,omitempty"`

	// Channels reconciled on catch-up. Defaults to the client channel.
	Channels []string `yaml:"channels,omitempty"`

	// NoHistory runs the engine without a retriever (live-only mode).
	NoHistory bool `yaml:"no_history,omitempty"`

	// History is the initial history per channel.
	History map[string][]ChunkSpec `yaml:"history,omitempty"`

	// Failures makes a channel's fetch fail with the given message.
	Failures map[string]string `yaml:"failures,omitempty"`

	// Steps drive the session in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the dispatch trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ChunkSpec is a chunk as written in scenario YAML.
type ChunkSpec struct {
	Seq               *int64 `yaml:"seq,omitempty"`
	Type              string `yaml:"type"`
	Text              string `yaml:"text,omitempty"`
	ToolType          string `yaml:"tool_type,omitempty"`
	ToolFunction      string `yaml:"tool_function,omitempty"`
	ApprovalRequestID string `yaml:"approval_request_id,omitempty"`
	ApprovalType      string `yaml:"approval_type,omitempty"`
	Command           string `yaml:"command,omitempty"`
	Approved          *bool  `yaml:"approved,omitempty"`
}

// Chunk converts the spec to a chunk.
func (s ChunkSpec) Chunk() chunk.Chunk {
	return chunk.Chunk{
		SequenceID:         s.Seq,
		Kind:               chunk.Kind(s.Type),
		Text:               s.Text,
		IntegratedToolType: s.ToolType,
		ToolFunction:       s.ToolFunction,
		ApprovalRequestID:  s.ApprovalRequestID,
		ApprovalType:       s.ApprovalType,
		Command:            s.Command,
		Approved:           s.Approved,
	}
}

// Step is one session operation.
type Step struct {
	// Action is one of the Step* constants.
	Action string `yaml:"action"`

	// Channel tags live chunks and selects the history for set_history.
	// Defaults to the client channel.
	Channel string `yaml:"channel,omitempty"`

	// Chunks are the live chunks (live) or the new history (set_history).
	Chunks []ChunkSpec `yaml:"chunks,omitempty"`

	// During are live chunks delivered while the catch-up fetch is in
	// flight (catch_up, reconnect).
	During []ChunkSpec `yaml:"during,omitempty"`

	// From is the resume point for catch_up.
	From *int64 `yaml:"from,omitempty"`

	// Force bypasses the buffer for live chunks.
	Force bool `yaml:"force,omitempty"`
}

// Step action constants.
const (
	StepStartBuffering = "start_buffering"
	StepLive           = "live"
	StepCatchUp        = "catch_up"
	StepReconnect      = "reconnect"
	StepReset          = "reset"
	StepSetHistory     = "set_history"
)

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Labels is the exact expected dispatch order as "seq:KIND"
	// (dispatch_order).
	Labels []string `yaml:"labels,omitempty"`

	// Channel scopes not_dispatched_through and dispatch_count.
	Channel string `yaml:"channel,omitempty"`

	// Seq is the upper bound for not_dispatched_through.
	Seq *int64 `yaml:"seq,omitempty"`

	// Count is the expected number of dispatches (dispatch_count) or of
	// processed sequence ids (processed).
	Count *int `yaml:"count,omitempty"`

	// State is the expected final engine state (final_state).
	State string `yaml:"state,omitempty"`

	// Channels are the expected failed channels (failed_channels).
	Channels []string `yaml:"channels,omitempty"`
}

// Assertion type constants.
const (
	AssertDispatchOrder        = "dispatch_order"
	AssertDispatchCount        = "dispatch_count"
	AssertNotDispatchedThrough = "not_dispatched_through"
	AssertNoDuplicates         = "no_duplicates"
	AssertFinalState           = "final_state"
	AssertFailedChannels       = "failed_channels"
	AssertProcessed            = "processed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.NoHistory && (len(s.History) > 0 || len(s.Failures) > 0) {
		return fmt.Errorf("no_history cannot be combined with history or failures")
	}

	for _, c := range s.Channels {
		if _, err := chunk.ParseChannel(c); err != nil {
			return fmt.Errorf("channels: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Action {
	case StepStartBuffering, StepReset:
	case StepLive:
		if len(st.Chunks) == 0 {
			return fmt.Errorf("steps[%d]: chunks are required for live", index)
		}
	case StepCatchUp, StepReconnect:
		if st.Action == StepReconnect && st.From != nil {
			return fmt.Errorf("steps[%d]: reconnect resumes from the last sequence id; from is not allowed", index)
		}
	case StepSetHistory:
		if st.Channel == "" {
			return fmt.Errorf("steps[%d]: channel is required for set_history", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	for _, list := range [][]ChunkSpec{st.Chunks, st.During} {
		for j, c := range list {
			if c.Type == "" {
				return fmt.Errorf("steps[%d]: chunk %d: type is required", index, j)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertDispatchOrder:
		if a.Labels == nil {
			return fmt.Errorf("assertions[%d]: labels is required for dispatch_order", index)
		}
	case AssertDispatchCount, AssertProcessed:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertNotDispatchedThrough:
		if a.Seq == nil {
			return fmt.Errorf("assertions[%d]: seq is required for not_dispatched_through", index)
		}
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	case AssertNoDuplicates, AssertFailedChannels:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
