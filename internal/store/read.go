package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/engine"
)

var _ engine.Retriever = (*Store)(nil)

// FetchChunks returns the stored history for a dialog channel.
// It implements engine.Retriever.
//
// from is exclusive: only chunks with seq > from are returned, and chunks
// without a sequence id are omitted. A nil from returns everything.
// Results are ordered by seq ASC, id ASC; unsequenced chunks sort first.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FetchChunks(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error) {
	var fromArg any
	if from != nil {
		fromArg = *from
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload
		FROM chunks
		WHERE dialog_id = ? AND channel = ?
		  AND (? IS NULL OR seq > ?)
		ORDER BY seq ASC, id ASC
	`, dialogID, string(ch), fromArg, fromArg)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []chunk.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	return chunks, nil
}

// DialogSummary describes the stored history of one dialog channel.
type DialogSummary struct {
	DialogID string        `json:"dialog_id"`
	Channel  chunk.Channel `json:"channel"`
	Chunks   int           `json:"chunks"`
	LastSeq  *int64        `json:"last_seq,omitempty"`
}

// ListDialogs summarizes every stored dialog channel.
// Results are ordered by dialog id, then channel, byte-wise.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListDialogs(ctx context.Context) ([]DialogSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dialog_id, channel, COUNT(*), MAX(seq)
		FROM chunks
		GROUP BY dialog_id, channel
		ORDER BY dialog_id COLLATE BINARY ASC, channel COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dialogs: %w", err)
	}
	defer rows.Close()

	out := []DialogSummary{}
	for rows.Next() {
		var (
			d       DialogSummary
			channel string
			lastSeq sql.NullInt64
		)
		if err := rows.Scan(&d.DialogID, &channel, &d.Chunks, &lastSeq); err != nil {
			return nil, fmt.Errorf("scan dialog: %w", err)
		}
		d.Channel = chunk.Channel(channel)
		if lastSeq.Valid {
			d.LastSeq = chunk.Seq(lastSeq.Int64)
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}

	return out, nil
}

// scanChunk scans one chunk row. The seq column is authoritative over
// any sequence id inside the payload.
func scanChunk(rows *sql.Rows) (chunk.Chunk, error) {
	var (
		seq     sql.NullInt64
		payload string
	)
	if err := rows.Scan(&seq, &payload); err != nil {
		return chunk.Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}

	c, err := unmarshalChunk(payload)
	if err != nil {
		return chunk.Chunk{}, err
	}
	c.SequenceID = nil
	if seq.Valid {
		c.SequenceID = chunk.Seq(seq.Int64)
	}
	return c, nil
}
