package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestChunk creates a chunk with a sequence id.
func createTestChunk(seq int64, kind chunk.Kind, text string) chunk.Chunk {
	return chunk.Chunk{SequenceID: chunk.Seq(seq), Kind: kind, Text: text}
}

func seqs(chunks []chunk.Chunk) []int64 {
	out := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.SortSeq())
	}
	return out
}
