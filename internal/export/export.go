// Package export assembles a recording's stored chunks into one WAV file,
// optionally resampled to a requested rate. Uploads export their single
// payload the same way.
package export

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// Catalog is the subset of the record store the exporter reads from.
type Catalog interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	ChunksByParent(ctx context.Context, parentID string) ([]*store.Record, error)
}

// Exporter renders stored audio as WAV bytes.
type Exporter struct {
	cat Catalog
	log zerolog.Logger
}

func New(cat Catalog, log zerolog.Logger) *Exporter {
	return &Exporter{cat: cat, log: log}
}

// WAV concatenates the recording's chunks in order and wraps them in a WAV
// container. targetRate 0 keeps the source rate. Chunk numbering gaps are
// tolerated: surviving chunks are concatenated and the gap is logged.
func (e *Exporter) WAV(ctx context.Context, recordingID string, targetRate int) ([]byte, error) {
	if targetRate < 0 {
		return nil, fmt.Errorf("invalid target rate %d", targetRate)
	}

	chunks, err := e.cat.ChunksByParent(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return e.exportSinglePayload(ctx, recordingID, targetRate)
	}

	srcRate := chunks[0].SampleRate
	if srcRate <= 0 {
		return nil, fmt.Errorf("recording %s has no sample rate", recordingID)
	}
	channels := chunks[0].Channels
	if channels < 1 {
		channels = 1
	}
	outRate := targetRate
	if outRate == 0 {
		outRate = srcRate
	}

	var pcm []byte
	for i, meta := range chunks {
		if meta.ChunkNumber != i {
			e.log.Warn().
				Str("recording_id", recordingID).
				Int("expected", i).
				Int("got", meta.ChunkNumber).
				Msg("chunk sequence has holes, exporting surviving chunks")
		}
		chunk, err := e.cat.Get(ctx, meta.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunk %d: %w", meta.ChunkNumber, err)
		}
		samples, err := chunk.Payload.Samples()
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", meta.ChunkNumber, err)
		}
		rate := chunk.SampleRate
		if rate <= 0 {
			rate = srcRate
		}
		if rate != outRate {
			samples = resampleFrames(samples, channels, rate, outRate)
		}
		pcm = append(pcm, audio.EncodePCM16(samples)...)
	}

	return audio.EncodeWAV(pcm, outRate, channels), nil
}

func (e *Exporter) exportSinglePayload(ctx context.Context, id string, targetRate int) ([]byte, error) {
	rec, err := e.cat.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if !rec.Payload.Valid() {
		return nil, fmt.Errorf("record %s has no audio to export", id)
	}
	if rec.SampleRate <= 0 {
		return nil, fmt.Errorf("record %s has no sample rate", id)
	}
	channels := rec.Channels
	if channels < 1 {
		channels = 1
	}

	samples, err := rec.Payload.Samples()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	outRate := rec.SampleRate
	if targetRate != 0 && targetRate != outRate {
		samples = resampleFrames(samples, channels, outRate, targetRate)
		outRate = targetRate
	}
	return audio.EncodeWAV(audio.EncodePCM16(samples), outRate, channels), nil
}

// resampleFrames resamples interleaved audio channel by channel so that
// interpolation never blends neighboring channels.
func resampleFrames(samples []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 1 {
		return audio.Resample(samples, srcRate, dstRate)
	}

	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := 0; c < channels; c++ {
		plane := make([]float32, frames)
		for f := 0; f < frames; f++ {
			plane[f] = samples[f*channels+c]
		}
		out[c] = audio.Resample(plane, srcRate, dstRate)
	}

	outFrames := len(out[0])
	merged := make([]float32, outFrames*channels)
	for c := 0; c < channels; c++ {
		for f := 0; f < len(out[c]) && f < outFrames; f++ {
			merged[f*channels+c] = out[c][f]
		}
	}
	return merged
}
