package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// Retriever is the host-supplied source of historical chunks.
//
// from is the resume point; nil requests the full history. Implementations
// may return chunks in any order and decide whether from is inclusive.
// Retry policy, if any, belongs to the implementation.
type Retriever interface {
	FetchChunks(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error)

// FetchChunks calls f.
func (f RetrieverFunc) FetchChunks(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error) {
	return f(ctx, dialogID, ch, from)
}

// fetcher issues one history fetch per channel, in parallel.
type fetcher struct {
	retriever Retriever
	channels  []chunk.Channel
	timeout   time.Duration
	logger    *slog.Logger
}

// fetchAll returns the concatenated results in channel order, plus the
// channels that failed. A failed channel contributes nothing and never stops
// the others.
func (f *fetcher) fetchAll(ctx context.Context, dialogID string, from *int64) ([]chunk.Buffered, []*FetchError) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	results := make([][]chunk.Chunk, len(f.channels))
	failures := make([]*FetchError, len(f.channels))

	// errgroup without WithContext: one channel failing must not cancel
	// the siblings.
	var g errgroup.Group
	for i, ch := range f.channels {
		g.Go(func() error {
			chunks, err := f.fetchOne(ctx, dialogID, ch, from)
			if err != nil {
				failures[i] = err
				f.logger.Error("fetch channel chunks failed",
					"dialog", dialogID,
					"channel", string(ch),
					"code", string(err.Code),
					"error", err.Err,
				)
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	var out []chunk.Buffered
	var failed []*FetchError
	for i, ch := range f.channels {
		if failures[i] != nil {
			failed = append(failed, failures[i])
			continue
		}
		for _, c := range results[i] {
			out = append(out, chunk.Buffered{Chunk: c, Channel: ch})
		}
	}
	return out, failed
}

func (f *fetcher) fetchOne(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) (chunks []chunk.Chunk, fe *FetchError) {
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			fe = &FetchError{
				Code:     ErrCodeFetchPanic,
				Channel:  ch,
				DialogID: dialogID,
				Err:      fmt.Errorf("retriever panicked: %v", r),
			}
		}
	}()

	chunks, err := f.retriever.FetchChunks(ctx, dialogID, ch, from)
	if err != nil {
		return nil, newFetchError(dialogID, ch, err)
	}
	return chunks, nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
