package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func TestTracker_New(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.LastKnown()
	assert.False(t, ok, "new tracker has no watermark")
	assert.Equal(t, 0, tr.Count())
}

func TestTracker_RecordApplied_Idempotent(t *testing.T) {
	tr := NewTracker()

	tr.RecordApplied(chunk.ChannelClient, 3)
	tr.RecordApplied(chunk.ChannelClient, 3)
	tr.RecordApplied(chunk.ChannelClient, 3)

	assert.Equal(t, 1, tr.Count())
	assert.True(t, tr.Applied(chunk.ChannelClient, 3))
}

func TestTracker_KeysAreChannelScoped(t *testing.T) {
	tr := NewTracker()

	tr.RecordApplied(chunk.ChannelClient, 5)

	assert.True(t, tr.Applied(chunk.ChannelClient, 5))
	assert.False(t, tr.Applied(chunk.ChannelAdmin, 5))

	tr.RecordApplied(chunk.ChannelAdmin, 5)
	assert.Equal(t, 2, tr.Count())
}

func TestTracker_LastKnown_IsLastRecorded(t *testing.T) {
	tr := NewTracker()

	tr.RecordApplied(chunk.ChannelClient, 10)
	tr.RecordApplied(chunk.ChannelAdmin, 4)

	// One global watermark: the most recent record, not the maximum.
	last, ok := tr.LastKnown()
	assert.True(t, ok)
	assert.Equal(t, int64(4), last)
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.RecordApplied(chunk.ChannelClient, 1)
	tr.RecordApplied(chunk.ChannelClient, 2)

	tr.Reset()

	assert.Equal(t, 0, tr.Count())
	assert.False(t, tr.Applied(chunk.ChannelClient, 1))
	_, ok := tr.LastKnown()
	assert.False(t, ok)

	// Usable after reset
	tr.RecordApplied(chunk.ChannelClient, 7)
	last, _ := tr.LastKnown()
	assert.Equal(t, int64(7), last)
}
