// Package segment turns a recording's chunk sequence into fixed-duration,
// rate-normalized audio segments. Segment boundaries are independent of
// how chunks were originally split, and chunks are loaded one at a time so
// a long recording never sits in memory whole.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// ChunkCatalog is the slice of the store the reader needs.
type ChunkCatalog interface {
	ChunksByParent(ctx context.Context, parentID string) ([]*store.Record, error)
	Get(ctx context.Context, id string) (*store.Record, error)
}

// Options controls how segments are cut.
type Options struct {
	// SegmentSeconds is the window length in seconds of source audio.
	// Every segment except possibly the last holds exactly
	// SegmentSeconds * sourceRate source samples.
	SegmentSeconds int
	// TargetRate resamples each emitted segment to this rate. 0 keeps
	// the source rate.
	TargetRate int
}

// Segment is one transient slice of a recording's audio.
type Segment struct {
	Number     int
	Samples    []float32
	SampleRate int
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Reader emits a recording's segments in order. Chunk payloads are pulled
// from the catalog lazily as the rolling window needs them.
type Reader struct {
	cat chunkLoader
	log zerolog.Logger

	chunks   []*store.Record
	chunkIdx int

	buf        []float32
	perSegment int
	srcRate    int
	targetRate int
	number     int
	total      int64
	corrupted  bool
}

type chunkLoader interface {
	Get(ctx context.Context, id string) (*store.Record, error)
}

// NewReader builds a segment reader over a recording's persisted chunks.
// A hole in the chunk numbering cuts the stream at the contiguous prefix
// and marks the reader corrupted; no samples are ever fabricated.
func NewReader(ctx context.Context, cat ChunkCatalog, recordingID string, opts Options, log zerolog.Logger) (*Reader, error) {
	if opts.SegmentSeconds <= 0 {
		return nil, errors.New("segment: SegmentSeconds must be positive")
	}
	chunks, err := cat.ChunksByParent(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("segment: list chunks of %q: %w", recordingID, err)
	}

	prefix := chunks[:0:0]
	corrupted := false
	for i, chunk := range chunks {
		if chunk.ChunkNumber != i {
			corrupted = true
			break
		}
		prefix = append(prefix, chunk)
	}
	if corrupted {
		log.Warn().
			Str("recording_id", recordingID).
			Int("usable_chunks", len(prefix)).
			Int("stored_chunks", len(chunks)).
			Msg("chunk sequence has a hole, segmenting the contiguous prefix only")
	}

	srcRate := 0
	var total int64
	for _, chunk := range prefix {
		total += chunk.SampleCount
	}
	if len(prefix) > 0 {
		srcRate = prefix[0].SampleRate
		if srcRate <= 0 {
			return nil, fmt.Errorf("segment: recording %q has invalid sample rate %d", recordingID, srcRate)
		}
	}

	return &Reader{
		cat:        cat,
		log:        log,
		chunks:     prefix,
		perSegment: opts.SegmentSeconds * srcRate,
		srcRate:    srcRate,
		targetRate: opts.TargetRate,
		total:      total,
		corrupted:  corrupted,
	}, nil
}

// NewMemoryReader builds a segment reader over samples already in memory,
// used for uploads and single-payload records.
func NewMemoryReader(samples []float32, srcRate int, opts Options) (*Reader, error) {
	if opts.SegmentSeconds <= 0 {
		return nil, errors.New("segment: SegmentSeconds must be positive")
	}
	if srcRate <= 0 {
		return nil, fmt.Errorf("segment: invalid sample rate %d", srcRate)
	}
	buf := make([]float32, len(samples))
	copy(buf, samples)
	return &Reader{
		buf:        buf,
		perSegment: opts.SegmentSeconds * srcRate,
		srcRate:    srcRate,
		targetRate: opts.TargetRate,
		total:      int64(len(samples)),
	}, nil
}

// Count returns the number of segments the reader will emit:
// ceil(totalSamples / samplesPerSegment) over the usable chunk prefix.
func (r *Reader) Count() int {
	if r.total == 0 || r.perSegment == 0 {
		return 0
	}
	return int((r.total + int64(r.perSegment) - 1) / int64(r.perSegment))
}

// Corrupted reports whether a chunk-numbering hole truncated the stream.
func (r *Reader) Corrupted() bool {
	return r.corrupted
}

// SourceRate returns the recording's sample rate, 0 for an empty stream.
func (r *Reader) SourceRate() int {
	return r.srcRate
}

// Next returns the next segment in order, or io.EOF after the last. The
// final segment may be shorter than the configured window.
func (r *Reader) Next(ctx context.Context) (*Segment, error) {
	for len(r.buf) < r.perSegment && r.chunkIdx < len(r.chunks) {
		meta := r.chunks[r.chunkIdx]
		chunk, err := r.cat.Get(ctx, meta.ID)
		if err != nil {
			return nil, fmt.Errorf("segment: load chunk %q: %w", meta.ID, err)
		}
		samples, err := chunk.Payload.Samples()
		if err != nil {
			return nil, fmt.Errorf("segment: decode chunk %q: %w", meta.ID, err)
		}
		r.buf = append(r.buf, samples...)
		r.chunkIdx++
	}

	if len(r.buf) == 0 {
		return nil, io.EOF
	}

	take := r.perSegment
	if take > len(r.buf) {
		take = len(r.buf)
	}
	samples := make([]float32, take)
	copy(samples, r.buf[:take])
	rest := make([]float32, len(r.buf)-take)
	copy(rest, r.buf[take:])
	r.buf = rest

	rate := r.srcRate
	if r.targetRate > 0 && r.targetRate != r.srcRate {
		samples = audio.Resample(samples, r.srcRate, r.targetRate)
		rate = r.targetRate
	}

	seg := &Segment{
		Number:     r.number,
		Samples:    samples,
		SampleRate: rate,
	}
	r.number++
	return seg, nil
}
