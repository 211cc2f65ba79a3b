package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// ChunkStore is the slice of the store the writer needs.
type ChunkStore interface {
	Put(ctx context.Context, rec *store.Record) error
}

// Writer flushes the buffer's unpersisted tail to the store as chunk
// records. Each flush snapshots the pending samples, writes them as one
// chunk, and advances the watermark only after the write succeeds. A
// failed write leaves the watermark alone so the same samples ride along
// in the next attempt.
type Writer struct {
	recordingID string
	buf         *Buffer
	st          ChunkStore
	sampleRate  int
	interval    time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	chunks int
}

// NewWriter returns a writer producing chunks for the given recording.
// interval 0 disables the periodic timer; the final flush still runs.
func NewWriter(recordingID string, buf *Buffer, st ChunkStore, sampleRate int, interval time.Duration, log zerolog.Logger) *Writer {
	return &Writer{
		recordingID: recordingID,
		buf:         buf,
		st:          st,
		sampleRate:  sampleRate,
		interval:    interval,
		log:         log.With().Str("recording_id", recordingID).Logger(),
	}
}

// Run flushes on every interval tick until ctx is cancelled. Flush errors
// are logged and retried on the next tick, not returned.
func (w *Writer) Run(ctx context.Context) {
	if w.interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.log.Error().Err(err).Msg("periodic chunk flush failed")
			}
		}
	}
}

// Flush writes all pending samples as one chunk. A flush with nothing
// pending is a no-op. Concurrent calls are serialized so chunk numbers
// stay contiguous.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := w.buf.Pending()
	if len(pending) == 0 {
		return nil
	}

	chunk := &store.Record{
		ID:          fmt.Sprintf("%s.%d", w.recordingID, w.chunks),
		Source:      store.SourceChunk,
		CreatedAt:   time.Now(),
		ParentID:    w.recordingID,
		ChunkNumber: w.chunks,
		SampleCount: int64(len(pending)),
		SampleRate:  w.sampleRate,
		Channels:    1,
		SizeBytes:   int64(len(pending) * audio.BytesPerSample),
		Payload: audio.Payload{
			Format: audio.FormatPCM16,
			Data:   audio.EncodePCM16(pending),
		},
	}
	if err := w.st.Put(ctx, chunk); err != nil {
		observability.ChunkWriteErrors.Inc()
		return fmt.Errorf("write chunk %s: %w", chunk.ID, err)
	}

	w.buf.MarkFlushed(len(pending))
	w.chunks++
	observability.ChunksWritten.Inc()
	w.log.Debug().
		Str("chunk_id", chunk.ID).
		Int64("samples", chunk.SampleCount).
		Msg("chunk flushed")
	return nil
}

// ChunksWritten returns how many chunks have been persisted.
func (w *Writer) ChunksWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chunks
}
