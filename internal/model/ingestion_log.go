package model

import (
	"time"

	"github.com/google/uuid"
)

// Ingestion log statuses.
const (
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// IngestionLogEntry is the audit row for one file-processing attempt. It is
// written twice: once when the attempt opens and once when it is finalized.
//
// SuccessfulRecords and FailedRecords keep whole-file granularity: a processed
// file reports the records queued for persistence and 0 failures; a failed file
// reports 0 and 1. RejectedLines, Chunks and FailedChunks carry the detailed view.
type IngestionLogEntry struct {
	ID                int64      `gorm:"primaryKey;column:id"`
	BatchID           uuid.UUID  `gorm:"column:ingest_batch_id;type:text;index"`
	FileName          string     `gorm:"column:file_name;size:255;not null;index"`
	FileSHA256        string     `gorm:"column:file_sha256;size:64"`
	FileSize          int64      `gorm:"column:file_size"`
	StartedAt         time.Time  `gorm:"column:upload_start_time;not null"`
	EndedAt           *time.Time `gorm:"column:upload_end_time"`
	SuccessfulRecords int        `gorm:"column:successful_records;not null"`
	FailedRecords     int        `gorm:"column:failed_records;not null"`
	RejectedLines     int        `gorm:"column:rejected_lines"`
	Chunks            int        `gorm:"column:chunks"`
	FailedChunks      int        `gorm:"column:failed_chunks"`
	Status            string     `gorm:"column:status;size:16;index"`
	LastError         string     `gorm:"column:last_error;type:text"`
	RelocatedTo       string     `gorm:"column:relocated_to;size:1024"`
}

// TableName pins the table name shared with the Postgres schema.
func (IngestionLogEntry) TableName() string { return "ingestion_logs" }

// Finished reports whether the entry has been finalized.
func (e *IngestionLogEntry) Finished() bool { return e.EndedAt != nil }
