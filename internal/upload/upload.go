// Package upload imports external WAV files as upload records. Imports are
// de-duplicated by a blake3 hash of the PCM payload, so bringing in the
// same audio twice returns the record that already exists.
package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"lukechampine.com/blake3"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// Catalog is the subset of the record store the importer uses.
type Catalog interface {
	Put(ctx context.Context, rec *store.Record) error
	ListBySource(ctx context.Context, src store.Source) ([]*store.Record, error)
}

// Importer turns WAV files into upload records.
type Importer struct {
	cat Catalog
	log zerolog.Logger
}

func New(cat Catalog, log zerolog.Logger) *Importer {
	return &Importer{cat: cat, log: log}
}

// ImportFile reads a WAV file from disk and imports it.
func (i *Importer) ImportFile(ctx context.Context, path string) (*store.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return i.Import(ctx, data)
}

// Import stores WAV bytes as an upload record, or returns the existing
// record when the same audio was imported before.
func (i *Importer) Import(ctx context.Context, wav []byte) (*store.Record, error) {
	w, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if len(w.PCM) == 0 {
		return nil, fmt.Errorf("wav contains no audio data")
	}

	hash, err := pcmHash(w.PCM)
	if err != nil {
		return nil, err
	}

	existing, err := i.cat.ListBySource(ctx, store.SourceUpload)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	for _, rec := range existing {
		if rec.Hash == hash {
			i.log.Info().Str("id", rec.ID).Msg("audio already imported, reusing record")
			return rec, nil
		}
	}

	frames := len(w.PCM) / (audio.BytesPerSample * w.Channels)
	rec := &store.Record{
		ID:          "upl-" + uuid.NewString(),
		Source:      store.SourceUpload,
		CreatedAt:   time.Now(),
		SampleCount: int64(frames),
		SampleRate:  w.SampleRate,
		Channels:    w.Channels,
		SizeBytes:   int64(len(w.PCM)),
		Duration:    int64(frames / w.SampleRate),
		Hash:        hash,
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: w.PCM},
	}
	if err := i.cat.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	i.log.Info().
		Str("id", rec.ID).
		Int64("samples", rec.SampleCount).
		Int("sample_rate", rec.SampleRate).
		Int("channels", rec.Channels).
		Msg("audio imported")
	return rec, nil
}

func pcmHash(pcm []byte) (string, error) {
	h := blake3.New(32, nil)
	if _, err := h.Write(pcm); err != nil {
		return "", fmt.Errorf("hash audio payload: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
