package ingest

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/cdrload/internal/model"
)

// Dispatcher accumulates one file's parsed records into chunks of at most size
// records and submits every full chunk to its Batch as a single bulk write.
// It is not safe for concurrent use; the chunks it submits are.
type Dispatcher struct {
	batch   *Batch
	sink    RecordSink
	batchID uuid.UUID
	size    int
	buf     []model.CallDetailRecord
	seq     int
	queued  int64
	log     zerolog.Logger
}

// NewDispatcher returns a Dispatcher writing to sink through batch.
func NewDispatcher(batch *Batch, sink RecordSink, batchID uuid.UUID, size int, log zerolog.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		batch:   batch,
		sink:    sink,
		batchID: batchID,
		size:    size,
		buf:     make([]model.CallDetailRecord, 0, size),
		log:     log,
	}
}

// Add buffers rec and flushes when the buffer is full. After a submitted chunk
// has failed it returns the batch error so the caller can stop reading.
func (d *Dispatcher) Add(rec model.CallDetailRecord) error {
	d.buf = append(d.buf, rec)
	if len(d.buf) >= d.size {
		return d.Flush()
	}
	return nil
}

// Flush submits the buffered records, if any, as one chunk and resets the
// buffer. Call it once more at end of input.
func (d *Dispatcher) Flush() error {
	if len(d.buf) == 0 {
		return nil
	}
	if err := d.batch.Err(); err != nil {
		return err
	}

	chunk := model.Chunk{
		BatchID: d.batchID,
		Seq:     d.seq,
		Records: slices.Clone(d.buf),
	}
	d.seq++
	d.queued += int64(chunk.Len())
	d.buf = d.buf[:0]

	d.log.Debug().Int("chunk", chunk.Seq).Int("records", chunk.Len()).Msg("chunk submitted")
	d.batch.Go(func(ctx context.Context) error {
		return d.sink.BulkInsert(ctx, chunk)
	})
	return nil
}

// Queued returns the number of records submitted so far.
func (d *Dispatcher) Queued() int64 { return d.queued }

// Chunks returns the number of chunks submitted so far.
func (d *Dispatcher) Chunks() int { return d.seq }
