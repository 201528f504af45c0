package engine

import (
	"github.com/roach88/chunkcatchup/internal/chunk"
)

// c builds a chunk with a sequence id.
func c(seq int64, kind chunk.Kind) chunk.Chunk {
	return chunk.Chunk{SequenceID: chunk.Seq(seq), Kind: kind}
}

// ct builds a text chunk with a sequence id.
func ct(seq int64, text string) chunk.Chunk {
	return chunk.Chunk{SequenceID: chunk.Seq(seq), Kind: chunk.KindText, Text: text}
}

// client tags chunks with the client channel.
func client(chunks ...chunk.Chunk) []chunk.Buffered {
	return tag(chunk.ChannelClient, chunks...)
}

func tag(ch chunk.Channel, chunks ...chunk.Chunk) []chunk.Buffered {
	out := make([]chunk.Buffered, len(chunks))
	for i, c := range chunks {
		out[i] = chunk.Buffered{Chunk: c, Channel: ch}
	}
	return out
}

// labels renders items as "seq:KIND" strings for compact assertions.
func labels(items []chunk.Buffered) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Chunk.String()
	}
	return out
}
