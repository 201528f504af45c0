package chunk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the event type carried by a chunk.
type Kind string

const (
	KindMessageStart    Kind = "MESSAGE_START"
	KindMessageEnd      Kind = "MESSAGE_END"
	KindText            Kind = "TEXT"
	KindExecutingTool   Kind = "EXECUTING_TOOL"
	KindExecutedTool    Kind = "EXECUTED_TOOL"
	KindApprovalRequest Kind = "APPROVAL_REQUEST"
	KindApprovalResult  Kind = "APPROVAL_RESULT"
	KindError           Kind = "ERROR"
	KindMessageRequest  Kind = "MESSAGE_REQUEST"
	KindAIMetadata      Kind = "AI_METADATA"
)

// IsBoundary reports whether k opens or closes a message.
func (k Kind) IsBoundary() bool {
	return k == KindMessageStart || k == KindMessageEnd
}

// Chunk is one fragment of a streamed message.
//
// Only SequenceID, Kind, Text, IntegratedToolType, ToolFunction and
// ApprovalRequestID take part in dedup identity. The remaining fields are
// payload for consumers and are carried through untouched.
type Chunk struct {
	SequenceID         *int64         `json:"sequenceId,omitempty"`
	Kind               Kind           `json:"type"`
	Text               string         `json:"text,omitempty"`
	IntegratedToolType string         `json:"integratedToolType,omitempty"`
	ToolFunction       string         `json:"toolFunction,omitempty"`
	ApprovalRequestID  string         `json:"approvalRequestId,omitempty"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	Result             string         `json:"result,omitempty"`
	Success            *bool          `json:"success,omitempty"`
	Error              string         `json:"error,omitempty"`
	Details            string         `json:"details,omitempty"`
	ApprovalType       string         `json:"approvalType,omitempty"`
	Command            string         `json:"command,omitempty"`
	Explanation        string         `json:"explanation,omitempty"`
	Approved           *bool          `json:"approved,omitempty"`
	ModelName          string         `json:"modelName,omitempty"`
	ProviderName       string         `json:"providerName,omitempty"`
	Provider           string         `json:"provider,omitempty"`
	ContextWindow      int64          `json:"contextWindow,omitempty"`
}

// UnmarshalJSON accepts the legacy snake_case approval_request_id field
// when approvalRequestId is absent.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	type plain Chunk
	var aux struct {
		plain
		LegacyApprovalRequestID string `json:"approval_request_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal chunk: %w", err)
	}
	*c = Chunk(aux.plain)
	if c.ApprovalRequestID == "" {
		c.ApprovalRequestID = aux.LegacyApprovalRequestID
	}
	return nil
}

// Seq returns the sequence id and whether one is present.
func (c Chunk) Seq() (int64, bool) {
	if c.SequenceID == nil {
		return 0, false
	}
	return *c.SequenceID, true
}

// HasSeq reports whether the chunk carries a sequence id.
func (c Chunk) HasSeq() bool {
	return c.SequenceID != nil
}

// SortSeq is the value used for ordering: the sequence id, or 0 when absent.
func (c Chunk) SortSeq() int64 {
	if c.SequenceID == nil {
		return 0
	}
	return *c.SequenceID
}

// String renders a compact "seq:KIND" label, used in logs and traces.
func (c Chunk) String() string {
	if c.SequenceID == nil {
		return "-:" + string(c.Kind)
	}
	return fmt.Sprintf("%d:%s", *c.SequenceID, c.Kind)
}

// Seq returns a pointer to n, for building chunks with a sequence id.
func Seq(n int64) *int64 {
	return &n
}

// Channel names a logical sub-stream of a dialog. Sequence ids and dedup
// keys are scoped to a channel.
type Channel string

const (
	// ChannelClient carries the client-facing chat.
	ChannelClient Channel = "message"
	// ChannelAdmin carries the admin AI chat.
	ChannelAdmin Channel = "admin-message"
)

// Chat types used by history APIs to select a channel.
const (
	ChatTypeClient = "CLIENT_CHAT"
	ChatTypeAdmin  = "ADMIN_AI_CHAT"
)

// DefaultChannels is the channel set used when none is configured.
func DefaultChannels() []Channel {
	return []Channel{ChannelClient}
}

// ChatType returns the history API chat type for the channel.
// Channels without a known chat type map to themselves.
func (ch Channel) ChatType() string {
	switch ch {
	case ChannelClient:
		return ChatTypeClient
	case ChannelAdmin:
		return ChatTypeAdmin
	default:
		return string(ch)
	}
}

// ParseChannel accepts a channel tag or a chat type name.
func ParseChannel(s string) (Channel, error) {
	switch strings.TrimSpace(s) {
	case "":
		return "", fmt.Errorf("empty channel")
	case string(ChannelClient), ChatTypeClient, "client":
		return ChannelClient, nil
	case string(ChannelAdmin), ChatTypeAdmin, "admin":
		return ChannelAdmin, nil
	default:
		return Channel(strings.TrimSpace(s)), nil
	}
}

// Buffered pairs a chunk with the channel it belongs to. It is the unit held
// by the live buffer and produced by the fetcher.
type Buffered struct {
	Chunk   Chunk
	Channel Channel
}

// Key returns the dedup key of the pair.
func (b Buffered) Key() string {
	return DedupKey(b.Channel, b.Chunk)
}
