package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/cdrload/internal/model"
)

// ArchiveRow is the Parquet layout of an archived record. Timestamps are Unix
// microseconds in UTC.
type ArchiveRow struct {
	IngestBatchID  string `parquet:"ingest_batch_id"`
	ChunkSeq       int32  `parquet:"chunk_seq"`
	RecordTimeUS   int64  `parquet:"record_time_us"`
	LocalSPC       int32  `parquet:"l_spc"`
	LocalSSN       int32  `parquet:"l_ssn"`
	LocalRI        int32  `parquet:"l_ri"`
	LocalGTI       int32  `parquet:"l_gt_i"`
	LocalGTDigits  string `parquet:"l_gt_digits"`
	RemoteSPC      int32  `parquet:"r_spc"`
	RemoteSSN      int32  `parquet:"r_ssn"`
	RemoteRI       int32  `parquet:"r_ri"`
	RemoteGTI      int32  `parquet:"r_gt_i"`
	RemoteGTDigits string `parquet:"r_gt_digits"`
	ServiceCode    string `parquet:"service_code"`
	OrigNature     int32  `parquet:"or_nature"`
	OrigPlan       int32  `parquet:"or_plan"`
	OrigDigits     string `parquet:"or_digits"`
	DestNature     int32  `parquet:"de_nature"`
	DestPlan       int32  `parquet:"de_plan"`
	DestDigits     string `parquet:"de_digits"`
	ISDNNature     int32  `parquet:"isdn_nature"`
	ISDNPlan       int32  `parquet:"isdn_plan"`
	MSISDN         string `parquet:"msisdn"`
	VLRNature      int32  `parquet:"vlr_nature"`
	VLRPlan        int32  `parquet:"vlr_plan"`
	IMSI           string `parquet:"imsi"`
	VLRDigits      string `parquet:"vlr_digits"`
	Status         string `parquet:"status"`
	Type           string `parquet:"type"`
	TstampUS       int64  `parquet:"tstamp_us"`
	LocalDialogID  int64  `parquet:"local_dialog_id"`
	RemoteDialogID int64  `parquet:"remote_dialog_id"`
	DialogDuration int64  `parquet:"dialog_duration"`
	USSDString     string `parquet:"ussd_string"`
}

func toArchiveRow(batchID string, seq int, r *model.CallDetailRecord) ArchiveRow {
	return ArchiveRow{
		IngestBatchID:  batchID,
		ChunkSeq:       int32(seq),
		RecordTimeUS:   r.RecordTime.UnixMicro(),
		LocalSPC:       r.LocalSPC,
		LocalSSN:       r.LocalSSN,
		LocalRI:        r.LocalRI,
		LocalGTI:       r.LocalGTI,
		LocalGTDigits:  r.LocalGTDigits,
		RemoteSPC:      r.RemoteSPC,
		RemoteSSN:      r.RemoteSSN,
		RemoteRI:       r.RemoteRI,
		RemoteGTI:      r.RemoteGTI,
		RemoteGTDigits: r.RemoteGTDigits,
		ServiceCode:    r.ServiceCode,
		OrigNature:     r.OrigNature,
		OrigPlan:       r.OrigPlan,
		OrigDigits:     r.OrigDigits,
		DestNature:     r.DestNature,
		DestPlan:       r.DestPlan,
		DestDigits:     r.DestDigits,
		ISDNNature:     r.ISDNNature,
		ISDNPlan:       r.ISDNPlan,
		MSISDN:         r.MSISDN,
		VLRNature:      r.VLRNature,
		VLRPlan:        r.VLRPlan,
		IMSI:           r.IMSI,
		VLRDigits:      r.VLRDigits,
		Status:         r.Status,
		Type:           r.Type,
		TstampUS:       r.Tstamp.UnixMicro(),
		LocalDialogID:  r.LocalDialogID,
		RemoteDialogID: r.RemoteDialogID,
		DialogDuration: r.DialogDuration,
		USSDString:     r.USSDString,
	}
}

// ParquetArchive writes every chunk to its own Parquet file named
// <batch id>-<seq>.parquet.
type ParquetArchive struct {
	dir string
}

// NewParquetArchive creates dir if needed.
func NewParquetArchive(dir string) (*ParquetArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet archive dir: %w", err)
	}
	return &ParquetArchive{dir: dir}, nil
}

// ChunkPath returns the archive file for a chunk.
func (a *ParquetArchive) ChunkPath(chunk model.Chunk) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s-%05d.parquet", chunk.BatchID, chunk.Seq))
}

// BulkInsert writes the chunk to a temporary file and renames it into place.
func (a *ParquetArchive) BulkInsert(ctx context.Context, chunk model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batchID := chunk.BatchID.String()
	rows := make([]ArchiveRow, chunk.Len())
	for i := range chunk.Records {
		rows[i] = toArchiveRow(batchID, chunk.Seq, &chunk.Records[i])
	}

	dst := a.ChunkPath(chunk)
	tmp := dst + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("archive chunk %d: %w", chunk.Seq, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("archive chunk %d: %w", chunk.Seq, err)
	}
	return nil
}
