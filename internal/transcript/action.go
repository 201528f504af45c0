package transcript

import (
	"github.com/roach88/chunkcatchup/internal/chunk"
)

// ActionKind names what a chunk asks the consumer to do.
type ActionKind string

const (
	ActionMessageStart    ActionKind = "message_start"
	ActionMessageEnd      ActionKind = "message_end"
	ActionMetadata        ActionKind = "metadata"
	ActionText            ActionKind = "text"
	ActionToolExecution   ActionKind = "tool_execution"
	ActionApprovalRequest ActionKind = "approval_request"
	ActionApprovalResult  ActionKind = "approval_result"
	ActionError           ActionKind = "error"
	ActionMessageRequest  ActionKind = "message_request"
)

// Approval types that default in when a chunk omits one.
const (
	DefaultRequestApprovalType = "USER"
	DefaultResultApprovalType  = "CLIENT"
)

// DefaultErrorText is used for ERROR chunks without an error string.
const DefaultErrorText = "An error occurred"

// Metadata describes the model producing a message.
type Metadata struct {
	ModelName     string `json:"model_name"`
	ProviderName  string `json:"provider_name"`
	ContextWindow int64  `json:"context_window"`
}

// ToolExecution is one tool call, running or finished.
type ToolExecution struct {
	Phase              chunk.Kind     `json:"phase"`
	IntegratedToolType string         `json:"integrated_tool_type"`
	ToolFunction       string         `json:"tool_function"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	Result             string         `json:"result,omitempty"`
	Success            *bool          `json:"success,omitempty"`
}

// Running reports whether the tool has not finished yet.
func (t ToolExecution) Running() bool {
	return t.Phase == chunk.KindExecutingTool
}

func (t ToolExecution) key() string {
	return t.IntegratedToolType + "-" + t.ToolFunction
}

// Action is the parsed form of one chunk.
type Action struct {
	Kind ActionKind `json:"action"`

	// Text carries TEXT and MESSAGE_REQUEST content.
	Text string `json:"text,omitempty"`

	Metadata *Metadata      `json:"metadata,omitempty"`
	Tool     *ToolExecution `json:"tool,omitempty"`

	// Approval fields.
	RequestID    string `json:"request_id,omitempty"`
	Command      string `json:"command,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
	ApprovalType string `json:"approval_type,omitempty"`
	Approved     bool   `json:"approved,omitempty"`

	// Error fields.
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Parse maps a chunk to an action. It returns false for unknown kinds,
// TEXT without text, and AI_METADATA without a model and provider.
func Parse(c chunk.Chunk) (Action, bool) {
	switch c.Kind {
	case chunk.KindMessageStart:
		return Action{Kind: ActionMessageStart}, true

	case chunk.KindMessageEnd:
		return Action{Kind: ActionMessageEnd}, true

	case chunk.KindAIMetadata:
		provider := c.ProviderName
		if provider == "" {
			provider = c.Provider
		}
		if c.ModelName == "" || provider == "" {
			return Action{}, false
		}
		return Action{Kind: ActionMetadata, Metadata: &Metadata{
			ModelName:     c.ModelName,
			ProviderName:  provider,
			ContextWindow: c.ContextWindow,
		}}, true

	case chunk.KindText:
		if c.Text == "" {
			return Action{}, false
		}
		return Action{Kind: ActionText, Text: c.Text}, true

	case chunk.KindExecutingTool:
		return Action{Kind: ActionToolExecution, Tool: &ToolExecution{
			Phase:              chunk.KindExecutingTool,
			IntegratedToolType: c.IntegratedToolType,
			ToolFunction:       c.ToolFunction,
			Parameters:         c.Parameters,
		}}, true

	case chunk.KindExecutedTool:
		return Action{Kind: ActionToolExecution, Tool: &ToolExecution{
			Phase:              chunk.KindExecutedTool,
			IntegratedToolType: c.IntegratedToolType,
			ToolFunction:       c.ToolFunction,
			Parameters:         c.Parameters,
			Result:             c.Result,
			Success:            c.Success,
		}}, true

	case chunk.KindApprovalRequest:
		return Action{
			Kind:         ActionApprovalRequest,
			RequestID:    c.ApprovalRequestID,
			Command:      c.Command,
			Explanation:  c.Explanation,
			ApprovalType: orDefault(c.ApprovalType, DefaultRequestApprovalType),
		}, true

	case chunk.KindApprovalResult:
		return Action{
			Kind:         ActionApprovalResult,
			RequestID:    c.ApprovalRequestID,
			Approved:     c.Approved != nil && *c.Approved,
			ApprovalType: orDefault(c.ApprovalType, DefaultResultApprovalType),
		}, true

	case chunk.KindError:
		return Action{
			Kind:    ActionError,
			Error:   orDefault(c.Error, DefaultErrorText),
			Details: c.Details,
		}, true

	case chunk.KindMessageRequest:
		return Action{Kind: ActionMessageRequest, Text: c.Text}, true
	}
	return Action{}, false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
