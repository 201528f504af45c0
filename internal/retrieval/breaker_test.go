package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/engine"
	"github.com/roach88/chunkcatchup/internal/testutil"
)

func quiet() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBreaker_PassesThrough(t *testing.T) {
	inner := testutil.NewScriptedRetriever().
		SetHistory(chunk.ChannelClient, chunk.Chunk{SequenceID: chunk.Seq(1), Kind: chunk.KindText})
	b := NewBreaker(inner, BreakerConfig{}, quiet())

	got, err := b.FetchChunks(context.Background(), "d1", chunk.ChannelClient, nil)

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, b.State(chunk.ChannelClient))
}

func TestBreaker_OpensPerChannel(t *testing.T) {
	calls := 0
	inner := engine.RetrieverFunc(func(_ context.Context, _ string, ch chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		if ch == chunk.ChannelAdmin {
			calls++
			return nil, errors.New("admin history down")
		}
		return nil, nil
	})
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, quiet())

	for i := 0; i < 2; i++ {
		_, err := b.FetchChunks(context.Background(), "d1", chunk.ChannelAdmin, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin history down")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State(chunk.ChannelAdmin))

	_, err := b.FetchChunks(context.Background(), "d1", chunk.ChannelAdmin, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open circuit must not reach the retriever")

	_, err = b.FetchChunks(context.Background(), "d1", chunk.ChannelClient, nil)
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State(chunk.ChannelClient))
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	fail := true
	inner := engine.RetrieverFunc(func(_ context.Context, _ string, _ chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		if fail {
			return nil, errors.New("down")
		}
		return []chunk.Chunk{{SequenceID: chunk.Seq(1), Kind: chunk.KindText}}, nil
	})
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 1, Timeout: 10 * time.Millisecond}, quiet())

	_, err := b.FetchChunks(context.Background(), "d1", chunk.ChannelClient, nil)
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, b.State(chunk.ChannelClient))

	fail = false
	time.Sleep(20 * time.Millisecond)

	got, err := b.FetchChunks(context.Background(), "d1", chunk.ChannelClient, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, b.State(chunk.ChannelClient))
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	inner := engine.RetrieverFunc(func(ctx context.Context, _ string, _ chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		return nil, ctx.Err()
	})
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 1}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.FetchChunks(ctx, "d1", chunk.ChannelClient, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, b.State(chunk.ChannelClient))
	assert.Equal(t, uint32(0), b.Counts(chunk.ChannelClient).ConsecutiveFailures)
}

func TestBreaker_EngineGoesLiveWhenOpen(t *testing.T) {
	inner := engine.RetrieverFunc(func(_ context.Context, _ string, _ chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		return nil, errors.New("down")
	})
	b := NewBreaker(inner, BreakerConfig{MaxFailures: 1, Timeout: time.Minute}, quiet())
	_, _ = b.FetchChunks(context.Background(), "d1", chunk.ChannelClient, nil)

	rec := testutil.NewRecorder()
	e := engine.New(rec.Handle, engine.WithDialog("d1"), engine.WithRetriever(b), engine.WithLogger(quiet()))
	e.StartInitialBuffering()
	e.ProcessChunk(chunk.Chunk{SequenceID: chunk.Seq(1), Kind: chunk.KindText}, chunk.ChannelClient, false)

	rep := e.CatchUp(context.Background(), nil)

	require.Len(t, rep.Failures, 1)
	assert.ErrorIs(t, rep.Failures[0], ErrCircuitOpen)
	assert.Equal(t, []string{"1:TEXT"}, rec.Labels())
	assert.Equal(t, engine.StateLive, e.State())
}
