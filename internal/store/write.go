package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// WriteResult describes one WriteChunks call.
type WriteResult struct {
	BatchID   string `json:"batch_id"`
	Submitted int    `json:"submitted"`
	Inserted  int    `json:"inserted"`
}

// Duplicates returns the number of submitted chunks that were already
// stored.
func (r WriteResult) Duplicates() int {
	return r.Submitted - r.Inserted
}

// WriteChunks appends chunks to a dialog channel's history in one
// transaction.
//
// Uses ON CONFLICT(dialog_id, channel, dedup_key) DO NOTHING for idempotency:
// a chunk whose dedup key is already stored for the channel is silently
// skipped. All rows written by one call share a batch id.
func (s *Store) WriteChunks(ctx context.Context, dialogID string, ch chunk.Channel, chunks []chunk.Chunk) (WriteResult, error) {
	if dialogID == "" {
		return WriteResult{}, errors.New("write chunks: empty dialog id")
	}
	if ch == "" {
		return WriteResult{}, errors.New("write chunks: empty channel")
	}

	res := WriteResult{BatchID: s.ids.Generate(), Submitted: len(chunks)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WriteResult{}, fmt.Errorf("write chunks: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
		(dialog_id, channel, seq, kind, dedup_key, payload, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dialog_id, channel, dedup_key) DO NOTHING
	`)
	if err != nil {
		return WriteResult{}, fmt.Errorf("write chunks: prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		payload, err := marshalChunk(c)
		if err != nil {
			return WriteResult{}, fmt.Errorf("write chunks: chunk %d: %w", i, err)
		}

		var seq any
		if c.SequenceID != nil {
			seq = *c.SequenceID
		}

		result, err := stmt.ExecContext(ctx,
			dialogID,
			string(ch),
			seq,
			string(c.Kind),
			chunk.DedupKey(ch, c),
			payload,
			res.BatchID,
		)
		if err != nil {
			return WriteResult{}, fmt.Errorf("write chunks: chunk %d: %w", i, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return WriteResult{}, fmt.Errorf("write chunks: rows affected: %w", err)
		}
		res.Inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return WriteResult{}, fmt.Errorf("write chunks: commit: %w", err)
	}

	return res, nil
}
