package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gyeh/cdrload/internal/model"
)

// sqliteInsertBatch keeps a multi-row INSERT under SQLite's bound-variable limit.
const sqliteInsertBatch = 200

// recordRow is the SQLite shape of a persisted record.
type recordRow struct {
	ID            uint   `gorm:"primaryKey"`
	IngestBatchID string `gorm:"column:ingest_batch_id;index;size:36"`
	ChunkSeq      int    `gorm:"column:chunk_seq"`

	model.CallDetailRecord `gorm:"embedded"`
}

func (recordRow) TableName() string { return "call_detail_records" }

// SQLite is a single-file backend for both records and the audit log.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates its schema.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; concurrent chunk writes queue on the connection.
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&recordRow{}, &model.IngestionLogEntry{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &SQLite{db: gdb}, nil
}

// DB exposes the gorm handle for queries.
func (s *SQLite) DB() *gorm.DB { return s.db }

// BulkInsert inserts the chunk in one transaction.
func (s *SQLite) BulkInsert(ctx context.Context, chunk model.Chunk) error {
	if chunk.Len() == 0 {
		return nil
	}
	rows := make([]recordRow, chunk.Len())
	batchID := chunk.BatchID.String()
	for i := range chunk.Records {
		rows[i] = recordRow{
			IngestBatchID:    batchID,
			ChunkSeq:         chunk.Seq,
			CallDetailRecord: chunk.Records[i],
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, sqliteInsertBatch).Error
	})
	if err != nil {
		return fmt.Errorf("insert chunk %d: %w", chunk.Seq, err)
	}
	return nil
}

// CreateLog inserts the opening audit row and stores the generated id in e.ID.
func (s *SQLite) CreateLog(ctx context.Context, e *model.IngestionLogEntry) (int64, error) {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return 0, fmt.Errorf("create ingestion log: %w", err)
	}
	return e.ID, nil
}

// UpdateLog writes the final state of an audit row.
func (s *SQLite) UpdateLog(ctx context.Context, e *model.IngestionLogEntry) error {
	res := s.db.WithContext(ctx).Model(&model.IngestionLogEntry{}).
		Where("id = ?", e.ID).
		Updates(map[string]any{
			"upload_end_time":    e.EndedAt,
			"successful_records": e.SuccessfulRecords,
			"failed_records":     e.FailedRecords,
			"rejected_lines":     e.RejectedLines,
			"chunks":             e.Chunks,
			"failed_chunks":      e.FailedChunks,
			"status":             e.Status,
			"last_error":         e.LastError,
			"relocated_to":       e.RelocatedTo,
		})
	if res.Error != nil {
		return fmt.Errorf("update ingestion log %d: %w", e.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("update ingestion log %d: no such row", e.ID)
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
