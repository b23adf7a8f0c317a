package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gyeh/cdrload/internal/normalize"
)

const (
	maxLineBytes = 1 << 20
	maxLoggedRaw = 200
)

// processResult holds metrics from streaming one file.
type processResult struct {
	LinesRead     int64
	RecordsQueued int64
	LinesRejected int64
	Chunks        int
	FailedChunks  int
	Duration      time.Duration
}

// process streams the file line by line through the parser and the dispatcher,
// then blocks until every submitted chunk has finished. Rejected lines,
// including lines over maxLineBytes, are logged and skipped. A failed chunk
// write stops reading and is returned once the remaining chunks have settled.
func (in *Ingester) process(ctx context.Context, att *Attempt) (*processResult, error) {
	start := time.Now()
	res := &processResult{}

	f, err := os.Open(att.Path)
	if err != nil {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	batch := in.pool.NewBatch(ctx)
	d := NewDispatcher(batch, in.records, att.Entry.BatchID, in.cfg.ChunkSize, att.log)

	lr := normalize.NewLineReader(f, maxLineBytes)
	var readErr error
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil && !errors.Is(err, normalize.ErrLineTooLong) {
			readErr = err
			break
		}
		res.LinesRead++
		if err != nil {
			res.LinesRejected++
			att.log.Warn().
				Err(err).
				Int64("line", res.LinesRead).
				Int("limit", maxLineBytes).
				Msg("line rejected")
			continue
		}
		rec, err := in.parser.ParseLine(line)
		if err != nil {
			res.LinesRejected++
			att.log.Warn().
				Err(err).
				Int64("line", res.LinesRead).
				Str("raw", truncate(line, maxLoggedRaw)).
				Msg("line rejected")
			continue
		}
		if err := d.Add(rec); err != nil {
			att.log.Warn().Int64("line", res.LinesRead).Msg("chunk write failed, stopping read")
			break
		}
	}
	if readErr == nil {
		_ = d.Flush()
	}

	// Completion barrier: nothing is relocated before every chunk settles.
	waitErr := batch.Wait()

	res.RecordsQueued = d.Queued()
	res.Chunks = d.Chunks()
	res.FailedChunks = batch.Failed()
	res.Duration = time.Since(start)

	if waitErr != nil {
		return res, fmt.Errorf("persist chunks: %w", waitErr)
	}
	if readErr != nil {
		return res, fmt.Errorf("read input at line %d: %w", res.LinesRead+1, readErr)
	}

	att.log.Info().
		Int64("lines_read", res.LinesRead).
		Int64("records_queued", res.RecordsQueued).
		Int64("lines_rejected", res.LinesRejected).
		Int("chunks", res.Chunks).
		Str("duration", res.Duration.String()).
		Float64("lines_per_sec", float64(res.LinesRead)/res.Duration.Seconds()).
		Msg("file processed")
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
