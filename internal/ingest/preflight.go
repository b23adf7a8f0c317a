package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/cdrload/internal/model"
	"github.com/gyeh/cdrload/internal/normalize"
)

// Attempt is the handle for one file-processing attempt. open creates it with
// a persisted audit entry; finalize writes the entry's final state.
type Attempt struct {
	// Path is the selected file in the input directory.
	Path string
	// Entry is the audit row; Entry.ID is set once open returns.
	Entry model.IngestionLogEntry

	log zerolog.Logger
}

// open records the start of an attempt before any line is parsed. The file
// hash is informational: if the file cannot be read here, processing will
// fail and report it.
func (in *Ingester) open(ctx context.Context, path string) (*Attempt, error) {
	att := &Attempt{
		Path: path,
		Entry: model.IngestionLogEntry{
			BatchID:   uuid.New(),
			FileName:  filepath.Base(path),
			StartedAt: in.now(),
			Status:    model.StatusProcessing,
		},
	}

	sha, size, err := normalize.FileHash(path)
	if err != nil {
		in.log.Warn().Err(err).Str("file", att.Entry.FileName).Msg("hash failed")
	} else {
		att.Entry.FileSHA256 = sha
		att.Entry.FileSize = size
	}

	if _, err := in.audit.CreateLog(ctx, &att.Entry); err != nil {
		return nil, fmt.Errorf("create ingestion log for %s: %w", att.Entry.FileName, err)
	}

	att.log = in.log.With().
		Str("file", att.Entry.FileName).
		Str("batch_id", att.Entry.BatchID.String()).
		Int64("log_id", att.Entry.ID).
		Logger()

	att.log.Info().
		Str("sha256", att.Entry.FileSHA256).
		Int64("size", att.Entry.FileSize).
		Msg("ingestion opened")
	return att, nil
}
