package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gyeh/cdrload/internal/model"
)

func TestTick_NoFile(t *testing.T) {
	cfg := testConfig(t)
	audit := &memAudit{}
	in := newTestIngester(cfg, &memSink{}, audit)

	summary, err := in.Tick(context.Background())
	if err != nil || summary != nil {
		t.Fatalf("Tick = %v, %v; want nil, nil", summary, err)
	}
	if audit.creates != 0 {
		t.Errorf("creates = %d, want 0", audit.creates)
	}
}

func TestTick_RejectedLineSkipped(t *testing.T) {
	cfg := testConfig(t)
	sink, audit := &memSink{}, &memAudit{}
	in := newTestIngester(cfg, sink, audit)
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1), shortLine(), cdrLine(3))

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !summary.Succeeded() {
		t.Errorf("status = %s", summary.Status)
	}
	if summary.LinesRead != 3 || summary.RecordsQueued != 2 || summary.LinesRejected != 1 {
		t.Errorf("read=%d queued=%d rejected=%d", summary.LinesRead, summary.RecordsQueued, summary.LinesRejected)
	}
	if sink.records() != 2 {
		t.Errorf("persisted %d records, want 2", sink.records())
	}
	if exists(filepath.Join(cfg.InputDir, "calls.cdr")) {
		t.Error("file still in input dir")
	}
	if !exists(filepath.Join(cfg.ProcessedDir, "calls.cdr")) {
		t.Error("file not in processed dir")
	}

	e := audit.entry(summary.LogID)
	if e.SuccessfulRecords != 2 || e.FailedRecords != 0 || e.RejectedLines != 1 {
		t.Errorf("entry counts = %d/%d/%d", e.SuccessfulRecords, e.FailedRecords, e.RejectedLines)
	}
	if e.Status != model.StatusProcessed || e.EndedAt == nil {
		t.Errorf("entry status=%s ended=%v", e.Status, e.EndedAt)
	}
	if e.FileName != "calls.cdr" || e.FileSHA256 == "" || e.FileSize == 0 {
		t.Errorf("entry file fields = %q %q %d", e.FileName, e.FileSHA256, e.FileSize)
	}
	if audit.creates != 1 || audit.updates != 1 {
		t.Errorf("audit writes = %d creates, %d updates; want 1 and 1", audit.creates, audit.updates)
	}
}

func TestTick_ChunkFailureMovesToErrorDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChunkSize = 2
	boom := errors.New("copy failed")
	sink := &memSink{fail: func(c model.Chunk) error {
		if c.Seq == 1 {
			return boom
		}
		return nil
	}}
	audit := &memAudit{}
	in := newTestIngester(cfg, sink, audit)

	var lines []string
	for i := 0; i < 6; i++ {
		lines = append(lines, cdrLine(i))
	}
	writeLines(t, cfg.InputDir, "calls.cdr", lines...)

	summary, err := in.Tick(context.Background())
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != "process" {
		t.Fatalf("Tick err = %v, want process PipelineError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err does not wrap sink error: %v", err)
	}
	if summary.Succeeded() {
		t.Error("summary reports success")
	}
	if !exists(filepath.Join(cfg.ErrorDir, "calls.cdr")) {
		t.Error("file not in error dir")
	}
	if exists(filepath.Join(cfg.ProcessedDir, "calls.cdr")) {
		t.Error("file in processed dir")
	}

	e := audit.entry(summary.LogID)
	if e.SuccessfulRecords != 0 || e.FailedRecords != 1 {
		t.Errorf("entry counts = %d/%d, want 0/1", e.SuccessfulRecords, e.FailedRecords)
	}
	if e.Status != model.StatusFailed || !strings.Contains(e.LastError, "copy failed") {
		t.Errorf("entry status=%s last_error=%q", e.Status, e.LastError)
	}
	if e.FailedChunks < 1 {
		t.Errorf("failed chunks = %d", e.FailedChunks)
	}
}

func TestTick_WaitsForEveryChunkBeforeRelocating(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChunkSize = 2
	cfg.Workers = 2
	sink := &memSink{delay: 20 * time.Millisecond}
	in := newTestIngester(cfg, sink, &memAudit{})

	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, cdrLine(i))
	}
	writeLines(t, cfg.InputDir, "calls.cdr", lines...)

	var completedAtMove int64 = -1
	in.relocate = func(src, dstDir string) (string, error) {
		completedAtMove = sink.completed.Load()
		return MoveFileToDir(src, dstDir)
	}

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if summary.Chunks != 5 {
		t.Errorf("chunks = %d, want 5", summary.Chunks)
	}
	if completedAtMove != 5 {
		t.Errorf("chunks completed before relocation = %d, want 5", completedAtMove)
	}
	if p := sink.peak.Load(); p > 2 {
		t.Errorf("peak concurrent writes = %d, want <= 2", p)
	}
}

func TestTick_OneFilePerTickInNameOrder(t *testing.T) {
	cfg := testConfig(t)
	in := newTestIngester(cfg, &memSink{}, &memAudit{})
	writeLines(t, cfg.InputDir, "b.cdr", cdrLine(2))
	writeLines(t, cfg.InputDir, "a.cdr", cdrLine(1))

	for _, want := range []string{"a.cdr", "b.cdr"} {
		summary, err := in.Tick(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got := filepath.Base(summary.FilePath); got != want {
			t.Errorf("processed %s, want %s", got, want)
		}
	}
	if summary, _ := in.Tick(context.Background()); summary != nil {
		t.Errorf("third tick processed %s", summary.FilePath)
	}
}

func TestTick_Busy(t *testing.T) {
	cfg := testConfig(t)
	in := newTestIngester(cfg, &memSink{}, &memAudit{})
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1))

	in.running.Store(true)
	if _, err := in.Tick(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Tick = %v, want ErrBusy", err)
	}
	if !exists(filepath.Join(cfg.InputDir, "calls.cdr")) {
		t.Error("busy tick touched the file")
	}
}

func TestTick_OpenFailureLeavesFile(t *testing.T) {
	cfg := testConfig(t)
	sink := &memSink{}
	in := newTestIngester(cfg, sink, &memAudit{createErr: errors.New("db down")})
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1))

	_, err := in.Tick(context.Background())
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != "open" {
		t.Fatalf("Tick err = %v, want open PipelineError", err)
	}
	if !exists(filepath.Join(cfg.InputDir, "calls.cdr")) {
		t.Error("file moved after open failure")
	}
	if sink.completed.Load() != 0 {
		t.Error("records written after open failure")
	}
}

func TestTick_RelocationFailureStillFinalizes(t *testing.T) {
	cfg := testConfig(t)
	audit := &memAudit{}
	in := newTestIngester(cfg, &memSink{}, audit)
	in.relocate = func(string, string) (string, error) { return "", errors.New("disk full") }
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1))

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	e := audit.entry(summary.LogID)
	if audit.updates != 1 || e.EndedAt == nil {
		t.Fatalf("entry not finalized: updates=%d", audit.updates)
	}
	if e.SuccessfulRecords != 1 || !strings.Contains(e.LastError, "relocate: disk full") {
		t.Errorf("entry = %d records, last_error %q", e.SuccessfulRecords, e.LastError)
	}
	if e.RelocatedTo != "" {
		t.Errorf("relocated_to = %q", e.RelocatedTo)
	}
}

func TestTick_EmptyFileSucceeds(t *testing.T) {
	cfg := testConfig(t)
	audit := &memAudit{}
	in := newTestIngester(cfg, &memSink{}, audit)
	writeLines(t, cfg.InputDir, "empty.cdr")

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !summary.Succeeded() || summary.Chunks != 0 {
		t.Errorf("status=%s chunks=%d", summary.Status, summary.Chunks)
	}
	if !exists(filepath.Join(cfg.ProcessedDir, "empty.cdr")) {
		t.Error("empty file not in processed dir")
	}
}

func TestTick_CancelledContextStillCompletesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChunkSize = 1
	sink := &memSink{delay: 5 * time.Millisecond}
	in := newTestIngester(cfg, sink, &memAudit{})
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1), cdrLine(2), cdrLine(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := in.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if summary.RecordsQueued != 3 || sink.records() != 3 {
		t.Errorf("queued=%d persisted=%d, want 3", summary.RecordsQueued, sink.records())
	}
}

func TestTick_FinalizeFailure(t *testing.T) {
	cfg := testConfig(t)
	audit := &memAudit{}
	in := newTestIngester(cfg, &memSink{}, audit)
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1))

	// drop the entry after open so UpdateLog finds nothing
	in.relocate = func(src, dstDir string) (string, error) {
		audit.mu.Lock()
		clear(audit.entries)
		audit.mu.Unlock()
		return MoveFileToDir(src, dstDir)
	}

	_, err := in.Tick(context.Background())
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != "finalize" {
		t.Fatalf("Tick err = %v, want finalize PipelineError", err)
	}
	if !exists(filepath.Join(cfg.ProcessedDir, "calls.cdr")) {
		t.Error("file not relocated")
	}
}

func TestTick_OverlongLineRejectedNotFatal(t *testing.T) {
	cfg := testConfig(t)
	sink, audit := &memSink{}, &memAudit{}
	in := newTestIngester(cfg, sink, audit)
	writeLines(t, cfg.InputDir, "calls.cdr", cdrLine(1), strings.Repeat("x", 2*maxLineBytes), cdrLine(3))

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if summary.LinesRead != 3 || summary.RecordsQueued != 2 || summary.LinesRejected != 1 {
		t.Errorf("read=%d queued=%d rejected=%d", summary.LinesRead, summary.RecordsQueued, summary.LinesRejected)
	}
	if sink.records() != 2 {
		t.Errorf("persisted %d records, want 2", sink.records())
	}
	if !exists(filepath.Join(cfg.ProcessedDir, "calls.cdr")) {
		t.Error("file not in processed dir")
	}
	if e := audit.entry(summary.LogID); e.RejectedLines != 1 || e.Status != model.StatusProcessed {
		t.Errorf("entry rejected=%d status=%s", e.RejectedLines, e.Status)
	}
}

func TestTick_WatchSkipsFilesBeingWritten(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch = true
	in := newTestIngester(cfg, &memSink{}, &memAudit{})
	partial := writeLines(t, cfg.InputDir, "a.cdr.tmp", cdrLine(1))
	writeLines(t, cfg.InputDir, "b.cdr", cdrLine(2))

	summary, err := in.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(summary.FilePath); got != "b.cdr" {
		t.Errorf("processed %s, want b.cdr", got)
	}
	if summary, _ := in.Tick(context.Background()); summary != nil {
		t.Errorf("picked up %s", summary.FilePath)
	}
	if !exists(partial) {
		t.Error("temp file was moved")
	}
}
