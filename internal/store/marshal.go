package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// marshalChunk converts a chunk to JSON TEXT for the payload column.
// HTML escaping is disabled so stored text matches what the source sent.
func marshalChunk(c chunk.Chunk) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("marshal chunk: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalChunk parses a payload column back into a chunk.
func unmarshalChunk(data string) (chunk.Chunk, error) {
	var c chunk.Chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return chunk.Chunk{}, fmt.Errorf("unmarshal chunk: %w", err)
	}
	return c, nil
}
