package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func TestFetchAll_ConcatenatesInChannelOrder(t *testing.T) {
	r := RetrieverFunc(func(_ context.Context, _ string, ch chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		if ch == chunk.ChannelAdmin {
			return []chunk.Chunk{ct(1, "admin")}, nil
		}
		return []chunk.Chunk{ct(2, "client-a"), ct(3, "client-b")}, nil
	})
	f := &fetcher{
		retriever: r,
		channels:  []chunk.Channel{chunk.ChannelClient, chunk.ChannelAdmin},
		logger:    quietLogger(),
	}

	got, failures := f.fetchAll(context.Background(), "d1", nil)

	assert.Empty(t, failures)
	require.Len(t, got, 3)
	assert.Equal(t, chunk.ChannelClient, got[0].Channel)
	assert.Equal(t, chunk.ChannelClient, got[1].Channel)
	assert.Equal(t, chunk.ChannelAdmin, got[2].Channel)
}

func TestFetchAll_PartialFailure(t *testing.T) {
	boom := errors.New("503 from history api")
	r := RetrieverFunc(func(_ context.Context, _ string, ch chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		if ch == chunk.ChannelAdmin {
			return nil, boom
		}
		return []chunk.Chunk{ct(1, "ok")}, nil
	})
	f := &fetcher{
		retriever: r,
		channels:  []chunk.Channel{chunk.ChannelClient, chunk.ChannelAdmin},
		logger:    quietLogger(),
	}

	got, failures := f.fetchAll(context.Background(), "d1", chunk.Seq(4))

	assert.Len(t, got, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, ErrCodeFetchFailed, failures[0].Code)
	assert.Equal(t, "d1", failures[0].DialogID)
	assert.ErrorIs(t, failures[0], boom)
	assert.False(t, IsFetchTimeout(failures[0]))
}

func TestFetchAll_PassesResumePoint(t *testing.T) {
	var seen *int64
	r := RetrieverFunc(func(_ context.Context, _ string, _ chunk.Channel, from *int64) ([]chunk.Chunk, error) {
		seen = from
		return nil, nil
	})
	f := &fetcher{retriever: r, channels: chunk.DefaultChannels(), logger: quietLogger()}

	f.fetchAll(context.Background(), "d1", chunk.Seq(9))

	require.NotNil(t, seen)
	assert.Equal(t, int64(9), *seen)
}

func TestFetchAll_CancelledContext(t *testing.T) {
	r := RetrieverFunc(func(ctx context.Context, _ string, _ chunk.Channel, _ *int64) ([]chunk.Chunk, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f := &fetcher{retriever: r, channels: chunk.DefaultChannels(), logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, failures := f.fetchAll(ctx, "d1", nil)

	require.Len(t, failures, 1)
	assert.Equal(t, ErrCodeFetchTimeout, failures[0].Code)
}

func TestFetchError_JSON(t *testing.T) {
	fe := &FetchError{Code: ErrCodeFetchFailed, Channel: chunk.ChannelAdmin, DialogID: "d1", Err: errors.New("boom")}

	data, err := fe.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"FETCH_FAILED","channel":"admin-message","dialog_id":"d1","message":"boom"}`, string(data))
	assert.Contains(t, fe.Error(), "FETCH_FAILED")
}
