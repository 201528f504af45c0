package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func TestMerge_SortsAndDedups(t *testing.T) {
	history := client(c(1, chunk.KindMessageStart), ct(2, "a"), c(3, chunk.KindMessageEnd))
	live := client(ct(2, "a"))

	got := Merge(append(history, live...))

	assert.Equal(t, []string{"1:MESSAGE_START", "2:TEXT", "3:MESSAGE_END"}, labels(got))
}

func TestMerge_UnorderedHistory(t *testing.T) {
	got := Merge(client(c(3, chunk.KindMessageEnd), ct(2, "a"), c(1, chunk.KindMessageStart)))
	assert.Equal(t, []string{"1:MESSAGE_START", "2:TEXT", "3:MESSAGE_END"}, labels(got))
}

func TestMerge_FirstOccurrenceWins(t *testing.T) {
	fromHistory := chunk.Chunk{SequenceID: chunk.Seq(2), Kind: chunk.KindText, Text: "a", Details: "history"}
	fromLive := chunk.Chunk{SequenceID: chunk.Seq(2), Kind: chunk.KindText, Text: "a", Details: "live"}

	got := Merge(client(fromHistory, fromLive))

	require.Len(t, got, 1)
	assert.Equal(t, "history", got[0].Chunk.Details)
}

func TestMerge_SameSequenceDifferentContentKept(t *testing.T) {
	got := Merge(client(ct(2, "a"), ct(2, "b")))
	assert.Len(t, got, 2)
}

func TestMerge_ChannelsDoNotCollide(t *testing.T) {
	items := append(client(ct(1, "a")), tag(chunk.ChannelAdmin, ct(1, "a"))...)
	got := Merge(items)
	assert.Len(t, got, 2)
}

func TestMerge_DoesNotModifyInput(t *testing.T) {
	in := client(c(2, chunk.KindText), c(1, chunk.KindText))
	_ = Merge(in)
	assert.Equal(t, []string{"2:TEXT", "1:TEXT"}, labels(in))
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil))
}

func TestMerge_MissingSequenceSortsFirst(t *testing.T) {
	got := Merge(client(c(1, chunk.KindText), chunk.Chunk{Kind: chunk.KindAIMetadata, ModelName: "m"}))
	assert.Equal(t, []string{"-:AI_METADATA", "1:TEXT"}, labels(got))
}
