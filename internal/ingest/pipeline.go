package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cdrload/internal/config"
	"github.com/gyeh/cdrload/internal/model"
	"github.com/gyeh/cdrload/internal/normalize"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ErrBusy is returned by Tick when the previous tick is still running.
var ErrBusy = errors.New("previous tick still running")

// RecordSink persists one chunk of records in a single bulk write. It must
// tolerate concurrent calls.
type RecordSink interface {
	BulkInsert(ctx context.Context, chunk model.Chunk) error
}

// AuditSink stores ingestion log entries. CreateLog assigns e.ID.
type AuditSink interface {
	CreateLog(ctx context.Context, e *model.IngestionLogEntry) (int64, error)
	UpdateLog(ctx context.Context, e *model.IngestionLogEntry) error
}

// Ingester runs the intake cycle: select a file, open its audit entry, parse and
// persist it, move it to the processed or error directory, finalize the entry.
type Ingester struct {
	cfg     *config.Config
	parser  *normalize.Parser
	pool    *Pool
	records RecordSink
	audit   AuditSink
	log     zerolog.Logger
	running atomic.Bool

	now      func() time.Time
	relocate func(srcPath, dstDir string) (string, error)
}

// New returns an Ingester. pool is shared by every tick.
func New(cfg *config.Config, pool *Pool, records RecordSink, audit AuditSink, log zerolog.Logger) *Ingester {
	return &Ingester{
		cfg:      cfg,
		parser:   normalize.NewParser(cfg.TimestampLayouts()),
		pool:     pool,
		records:  records,
		audit:    audit,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		relocate: MoveFileToDir,
	}
}

// Tick processes at most one file. It returns (nil, nil) when no file is
// waiting and ErrBusy when another tick has not finished yet. A file failure is
// reported as a *PipelineError together with the summary of the attempt.
//
// Once a file is selected, cancelling ctx no longer interrupts it.
func (in *Ingester) Tick(ctx context.Context) (*model.TickSummary, error) {
	if !in.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer in.running.Store(false)

	path, ok := SelectFile(in.cfg.InputDir, in.cfg.Include, in.cfg.ExcludePattern())
	if !ok {
		in.log.Debug().Str("dir", in.cfg.InputDir).Msg("no file to process")
		return nil, nil
	}

	ctx = context.WithoutCancel(ctx)
	totalStart := time.Now()

	// Phase 1: open the audit entry
	att, err := in.open(ctx, path)
	if err != nil {
		return nil, &PipelineError{Phase: "open", Err: err}
	}

	// Phase 2: parse, dispatch, wait for every chunk
	res, procErr := in.process(ctx, att)
	if procErr != nil {
		att.log.Error().Err(procErr).Msg("file processing failed")
	}

	// Phase 3: relocate
	dstDir := in.cfg.ProcessedDir
	if procErr != nil {
		dstDir = in.cfg.ErrorDir
	}
	dst, mvErr := in.relocate(path, dstDir)
	if mvErr != nil {
		att.log.Error().Err(mvErr).Str("dir", dstDir).Msg("relocate failed (non-fatal)")
	} else {
		att.log.Info().Str("to", dst).Msg("file relocated")
	}

	// Phase 4: finalize the audit entry, whatever happened above
	finErr := in.finalize(ctx, att, res, procErr, dst, mvErr)

	summary := &model.TickSummary{
		FilePath:      path,
		LogID:         att.Entry.ID,
		BatchID:       att.Entry.BatchID.String(),
		Status:        att.Entry.Status,
		LinesRead:     res.LinesRead,
		RecordsQueued: res.RecordsQueued,
		LinesRejected: res.LinesRejected,
		Chunks:        res.Chunks,
		FailedChunks:  res.FailedChunks,
		RelocatedTo:   dst,
		DurationParse: res.Duration,
		DurationTotal: time.Since(totalStart),
	}

	if procErr != nil {
		return summary, &PipelineError{Phase: "process", Err: procErr}
	}
	if finErr != nil {
		return summary, &PipelineError{Phase: "finalize", Err: finErr}
	}
	return summary, nil
}
