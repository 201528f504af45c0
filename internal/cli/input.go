package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// maxLineSize bounds one JSONL line.
const maxLineSize = 4 << 20

// LiveLine is one line of a run --live file.
type LiveLine struct {
	// Channel defaults to the client channel.
	Channel string `json:"channel,omitempty"`
	// During marks chunks that arrive while the catch-up is running.
	During bool        `json:"during,omitempty"`
	Chunk  chunk.Chunk `json:"chunk"`
}

// InputError reports a malformed input line.
type InputError struct {
	Path string
	Line int
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// openInput opens path, or returns stdin for "" and "-".
func openInput(path string, stdin io.Reader) (io.ReadCloser, string, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), "<stdin>", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	return f, path, nil
}

// scanJSONL decodes each non-blank line of r into a new T.
func scanJSONL[T any](r io.Reader, name string) ([]T, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	out := []T{}
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &InputError{Path: name, Line: line, Err: err}
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, &InputError{Path: name, Line: line + 1, Err: err}
	}
	return out, nil
}

// readChunks reads chunk JSONL.
func readChunks(r io.Reader, name string) ([]chunk.Chunk, error) {
	return scanJSONL[chunk.Chunk](r, name)
}

// readLive reads live-line JSONL and resolves each line's channel.
func readLive(r io.Reader, name string) ([]LiveLine, []chunk.Channel, error) {
	lines, err := scanJSONL[LiveLine](r, name)
	if err != nil {
		return nil, nil, err
	}
	channels := make([]chunk.Channel, len(lines))
	for i, l := range lines {
		if l.Channel == "" {
			channels[i] = chunk.ChannelClient
			continue
		}
		ch, err := chunk.ParseChannel(l.Channel)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: entry %d: %w", name, i+1, err)
		}
		channels[i] = ch
	}
	return lines, channels, nil
}
