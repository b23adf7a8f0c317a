// Package store holds the persistence backends for parsed records and the
// ingestion audit log.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/cdrload/internal/config"
	"github.com/gyeh/cdrload/internal/db"
	"github.com/gyeh/cdrload/internal/model"
)

// RecordWriter persists one chunk of records in a single bulk write.
type RecordWriter interface {
	BulkInsert(ctx context.Context, chunk model.Chunk) error
}

// AuditWriter stores ingestion log entries. CreateLog assigns e.ID.
type AuditWriter interface {
	CreateLog(ctx context.Context, e *model.IngestionLogEntry) (int64, error)
	UpdateLog(ctx context.Context, e *model.IngestionLogEntry) error
}

// Store bundles the configured record and audit backends.
type Store struct {
	Records RecordWriter
	Audit   AuditWriter
	closers []func() error
}

// Close releases every backend, returning the joined errors.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects the backend selected by cfg.Store and, when configured, tees
// records into a Parquet archive.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	s := &Store{}
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.Store.DSN, cfg.Workers+1)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := NewPostgres(pool)
		s.Records, s.Audit = pg, pg
		s.closers = append(s.closers, pg.Close)
		log.Info().Str("driver", cfg.Store.Driver).Msg("store opened")
	case config.DriverSQLite:
		lite, err := OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s.Records, s.Audit = lite, lite
		s.closers = append(s.closers, lite.Close)
		log.Info().Str("driver", cfg.Store.Driver).Str("path", cfg.Store.SQLitePath).Msg("store opened")
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Archive.ParquetDir != "" {
		archive, err := NewParquetArchive(cfg.Archive.ParquetDir)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Records = Tee(s.Records, archive)
		log.Info().Str("dir", cfg.Archive.ParquetDir).Msg("parquet archive enabled")
	}
	return s, nil
}

type tee struct {
	writers []RecordWriter
}

// Tee returns a RecordWriter that writes each chunk to every writer in order,
// stopping at the first failure.
func Tee(writers ...RecordWriter) RecordWriter {
	return &tee{writers: writers}
}

func (t *tee) BulkInsert(ctx context.Context, chunk model.Chunk) error {
	for _, w := range t.writers {
		if err := w.BulkInsert(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
