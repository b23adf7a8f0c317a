package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cdrload/internal/config"
	"github.com/gyeh/cdrload/internal/model"
)

// cdrLine builds a well-formed 32-field line whose local dialog id is i.
func cdrLine(i int) string {
	fields := []string{
		"2024-03-01 10:15:30.123",
		"1201", "8", "0", "4", "491720000001",
		"2202", "6", "1", "4", "491720000002",
		"SRI",
		"4", "1", "491711111111",
		"4", "1", "491722222222",
		"1", "1", fmt.Sprintf("4917%08d", i),
		"4", "1", "262011234567890", "491744444444",
		"OK", "BEGIN",
		"2024-03-01 10:15:31,456",
		fmt.Sprint(i), "9002", "1500", "*100#",
	}
	return strings.Join(fields, "|")
}

// shortLine has 29 fields.
func shortLine() string {
	return strings.Join(strings.Split(cdrLine(0), "|")[:29], "|")
}

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.InputDir = filepath.Join(root, "in")
	cfg.ProcessedDir = filepath.Join(root, "processed")
	cfg.ErrorDir = filepath.Join(root, "error")
	if err := os.MkdirAll(cfg.InputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// memSink records chunks in memory. fail, when set, decides per chunk whether
// the write errors.
type memSink struct {
	mu        sync.Mutex
	chunks    []model.Chunk
	delay     time.Duration
	fail      func(model.Chunk) error
	inflight  atomic.Int64
	peak      atomic.Int64
	completed atomic.Int64
}

func (s *memSink) BulkInsert(ctx context.Context, chunk model.Chunk) error {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	defer s.completed.Add(1)
	if s.fail != nil {
		if err := s.fail(chunk); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
	return nil
}

func (s *memSink) records() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		n += c.Len()
	}
	return n
}

// memAudit keeps the latest version of every entry and counts writes.
type memAudit struct {
	mu        sync.Mutex
	entries   map[int64]model.IngestionLogEntry
	creates   int
	updates   int
	createErr error
	nextID    int64
}

func (a *memAudit) CreateLog(ctx context.Context, e *model.IngestionLogEntry) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.createErr != nil {
		return 0, a.createErr
	}
	if a.entries == nil {
		a.entries = make(map[int64]model.IngestionLogEntry)
	}
	a.nextID++
	a.creates++
	e.ID = a.nextID
	a.entries[e.ID] = *e
	return e.ID, nil
}

func (a *memAudit) UpdateLog(ctx context.Context, e *model.IngestionLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[e.ID]; !ok {
		return fmt.Errorf("no entry %d", e.ID)
	}
	a.updates++
	a.entries[e.ID] = *e
	return nil
}

func (a *memAudit) entry(id int64) model.IngestionLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[id]
}

func newTestIngester(cfg *config.Config, sink RecordSink, audit AuditSink) *Ingester {
	return New(cfg, NewPool(cfg.Workers), sink, audit, zerolog.Nop())
}
