package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey_StableAcrossOrigin(t *testing.T) {
	// History and live deliver structurally distinct values for one event.
	fromHistory := Chunk{SequenceID: Seq(2), Kind: KindText, Text: "hello", Parameters: map[string]any{"a": 1}}
	fromLive := Chunk{SequenceID: Seq(2), Kind: KindText, Text: "hello"}

	assert.Equal(t, DedupKey(ChannelClient, fromHistory), DedupKey(ChannelClient, fromLive))
}

func TestDedupKey_ChannelScoped(t *testing.T) {
	c := Chunk{SequenceID: Seq(2), Kind: KindText, Text: "hello"}
	assert.NotEqual(t, DedupKey(ChannelClient, c), DedupKey(ChannelAdmin, c))
}

func TestDedupKey_FieldsDistinguish(t *testing.T) {
	base := Chunk{SequenceID: Seq(4), Kind: KindExecutingTool, IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "r"}
	variants := []Chunk{
		{SequenceID: Seq(5), Kind: KindExecutingTool, IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "r"},
		{Kind: KindExecutingTool, IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "r"},
		{SequenceID: Seq(4), Kind: KindExecutedTool, IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "r"},
		{SequenceID: Seq(4), Kind: KindExecutingTool, Text: "x", IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "r"},
		{SequenceID: Seq(4), Kind: KindExecutingTool, IntegratedToolType: "u", ToolFunction: "f", ApprovalRequestID: "r"},
		{SequenceID: Seq(4), Kind: KindExecutingTool, IntegratedToolType: "t", ToolFunction: "g", ApprovalRequestID: "r"},
		{SequenceID: Seq(4), Kind: KindExecutingTool, IntegratedToolType: "t", ToolFunction: "f", ApprovalRequestID: "s"},
	}

	baseKey := DedupKey(ChannelClient, base)
	for i, v := range variants {
		assert.NotEqual(t, baseKey, DedupKey(ChannelClient, v), "variant %d should differ", i)
	}
}

func TestDedupKey_NoFieldBleed(t *testing.T) {
	// With a plain ":" join these two would render identically.
	a := Chunk{SequenceID: Seq(1), Kind: KindText, Text: "a:b", IntegratedToolType: ""}
	b := Chunk{SequenceID: Seq(1), Kind: KindText, Text: "a", IntegratedToolType: "b"}
	assert.NotEqual(t, DedupKey(ChannelClient, a), DedupKey(ChannelClient, b))
}

func TestDedupKey_NFCNormalised(t *testing.T) {
	composed := Chunk{SequenceID: Seq(1), Kind: KindText, Text: "caf\u00e9"}
	decomposed := Chunk{SequenceID: Seq(1), Kind: KindText, Text: "cafe\u0301"}
	assert.Equal(t, DedupKey(ChannelClient, composed), DedupKey(ChannelClient, decomposed))
}

func TestDedupKey_MissingKindIsNA(t *testing.T) {
	assert.Equal(t,
		DedupKey(ChannelClient, Chunk{SequenceID: Seq(1)}),
		DedupKey(ChannelClient, Chunk{SequenceID: Seq(1), Kind: Kind("")}),
	)
	assert.Len(t, DedupKey(ChannelClient, Chunk{}), 64)
}

func TestBuffered_Key(t *testing.T) {
	b := Buffered{Chunk: Chunk{SequenceID: Seq(9), Kind: KindMessageEnd}, Channel: ChannelAdmin}
	assert.Equal(t, DedupKey(ChannelAdmin, b.Chunk), b.Key())
}
