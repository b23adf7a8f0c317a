package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/cdrload/internal/db"
	"github.com/gyeh/cdrload/internal/model"
	embedsql "github.com/gyeh/cdrload/internal/sql"
)

var recordsTable = pgx.Identifier{"cdr", "call_detail_records"}

// Postgres writes records with the COPY protocol and keeps the audit log in
// cdr.ingestion_logs.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Pool exposes the underlying pool for migrations.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// BulkInsert COPY-loads the chunk.
func (p *Postgres) BulkInsert(ctx context.Context, chunk model.Chunk) error {
	n, err := p.pool.CopyFrom(ctx, recordsTable, model.RecordColumns(), db.NewChunkSource(chunk))
	if err != nil {
		return fmt.Errorf("copy chunk %d: %w", chunk.Seq, err)
	}
	if n != int64(chunk.Len()) {
		return fmt.Errorf("copy chunk %d: wrote %d of %d rows", chunk.Seq, n, chunk.Len())
	}
	return nil
}

// CreateLog inserts the opening audit row and stores the generated id in e.ID.
func (p *Postgres) CreateLog(ctx context.Context, e *model.IngestionLogEntry) (int64, error) {
	err := p.pool.QueryRow(ctx, embedsql.CreateIngestionLog,
		e.BatchID,
		e.FileName,
		e.FileSHA256,
		e.FileSize,
		e.StartedAt,
		e.SuccessfulRecords,
		e.FailedRecords,
		e.Status,
	).Scan(&e.ID)
	if err != nil {
		return 0, fmt.Errorf("create ingestion log: %w", err)
	}
	return e.ID, nil
}

// UpdateLog writes the final state of an audit row.
func (p *Postgres) UpdateLog(ctx context.Context, e *model.IngestionLogEntry) error {
	tag, err := p.pool.Exec(ctx, embedsql.UpdateIngestionLog,
		e.ID,
		e.EndedAt,
		e.SuccessfulRecords,
		e.FailedRecords,
		e.RejectedLines,
		e.Chunks,
		e.FailedChunks,
		e.Status,
		e.LastError,
		e.RelocatedTo,
	)
	if err != nil {
		return fmt.Errorf("update ingestion log %d: %w", e.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update ingestion log %d: no such row", e.ID)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
