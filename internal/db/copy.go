package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/cdrload/internal/model"
)

// ChunkSource implements pgx.CopyFromSource over the records of one chunk.
type ChunkSource struct {
	chunk model.Chunk
	pos   int
}

// NewChunkSource creates a CopyFromSource backed by a chunk.
func NewChunkSource(chunk model.Chunk) *ChunkSource {
	return &ChunkSource{chunk: chunk, pos: -1}
}

// Next advances to the next record. Returns false after the last one.
func (s *ChunkSource) Next() bool {
	s.pos++
	return s.pos < len(s.chunk.Records)
}

// Values returns the current record's values in COPY column order.
func (s *ChunkSource) Values() ([]any, error) {
	return s.chunk.Records[s.pos].CopyValues(s.chunk.BatchID, s.chunk.Seq), nil
}

// Err always returns nil; the chunk is fully materialized.
func (s *ChunkSource) Err() error {
	return nil
}

// Compile-time check that ChunkSource satisfies the interface.
var _ pgx.CopyFromSource = (*ChunkSource)(nil)
