package ingest

import (
	"context"
	"fmt"

	"github.com/gyeh/cdrload/internal/model"
)

// finalize writes the end time and final counts of the attempt. It runs for
// every opened attempt, including failed ones.
//
// Counts keep whole-file granularity: success reports the queued records and
// no failures; any processing error reports 0 and 1. Rejected lines and chunk
// counts are recorded alongside.
func (in *Ingester) finalize(ctx context.Context, att *Attempt, res *processResult, procErr error, relocatedTo string, mvErr error) error {
	e := &att.Entry
	end := in.now()
	e.EndedAt = &end
	e.RejectedLines = int(res.LinesRejected)
	e.Chunks = res.Chunks
	e.FailedChunks = res.FailedChunks
	e.RelocatedTo = relocatedTo

	if procErr != nil {
		e.Status = model.StatusFailed
		e.SuccessfulRecords = 0
		e.FailedRecords = 1
		e.LastError = procErr.Error()
	} else {
		e.Status = model.StatusProcessed
		e.SuccessfulRecords = int(res.RecordsQueued)
		e.FailedRecords = 0
	}
	if mvErr != nil {
		if e.LastError != "" {
			e.LastError += "; "
		}
		e.LastError += fmt.Sprintf("relocate: %v", mvErr)
	}

	if err := in.audit.UpdateLog(ctx, e); err != nil {
		att.log.Error().Err(err).Msg("finalize ingestion log failed")
		return fmt.Errorf("finalize ingestion log: %w", err)
	}

	att.log.Info().
		Str("status", e.Status).
		Int("successful_records", e.SuccessfulRecords).
		Int("failed_records", e.FailedRecords).
		Int("rejected_lines", e.RejectedLines).
		Dur("elapsed", end.Sub(e.StartedAt)).
		Msg("ingestion finalized")
	return nil
}
