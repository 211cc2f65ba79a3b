// Package recovery reconstructs recording rows from orphaned chunks left
// behind by an abnormal termination.
package recovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// Catalog is the slice of the store the engine needs.
type Catalog interface {
	ListBySource(ctx context.Context, src store.Source) ([]*store.Record, error)
	Put(ctx context.Context, rec *store.Record) error
}

// Engine scans for chunks whose parent recording never got finalized and
// writes the missing recording row from the chunks' aggregate metadata.
type Engine struct {
	cat Catalog
	log zerolog.Logger
}

// New returns an engine reading and repairing through cat.
func New(cat Catalog, log zerolog.Logger) *Engine {
	return &Engine{cat: cat, log: log}
}

// Run performs one recovery pass and returns how many recordings were
// reconstructed. Reconstruction failures are isolated per group: one bad
// group is logged and skipped, the rest still recover. Only listing
// failures abort the pass.
func (e *Engine) Run(ctx context.Context) (int, error) {
	recordings, err := e.cat.ListBySource(ctx, store.SourceRecording)
	if err != nil {
		return 0, fmt.Errorf("list recordings: %w", err)
	}
	chunks, err := e.cat.ListBySource(ctx, store.SourceChunk)
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}

	known := make(map[string]bool, len(recordings))
	for _, rec := range recordings {
		known[rec.ID] = true
	}

	groups := make(map[string][]*store.Record)
	for _, chunk := range chunks {
		if chunk.ParentID == "" || known[chunk.ParentID] {
			continue
		}
		groups[chunk.ParentID] = append(groups[chunk.ParentID], chunk)
	}

	recovered := 0
	for parentID, group := range groups {
		rec, contiguous := rebuild(parentID, group)
		if !contiguous {
			e.log.Warn().
				Str("recording_id", parentID).
				Int("chunks", len(group)).
				Msg("chunk sequence has holes, reconstructing from surviving chunks")
		}
		if err := e.cat.Put(ctx, rec); err != nil {
			e.log.Error().Err(err).
				Str("recording_id", parentID).
				Int("chunks", len(group)).
				Msg("failed to reconstruct recording")
			continue
		}
		recovered++
		observability.RecordingsRecovered.Inc()
		e.log.Info().
			Str("recording_id", parentID).
			Int("chunks", len(group)).
			Int64("duration_seconds", rec.Duration).
			Msg("recovered recording from orphaned chunks")
	}
	return recovered, nil
}

// rebuild derives a recording row from its orphaned chunks. The second
// return reports whether the chunk numbers form the expected 0..N-1 run.
func rebuild(parentID string, group []*store.Record) (*store.Record, bool) {
	sort.Slice(group, func(i, j int) bool {
		return group[i].ChunkNumber < group[j].ChunkNumber
	})

	first := group[0]
	startedAt := first.CreatedAt
	contiguous := true
	var totalSamples, totalBytes int64
	for i, chunk := range group {
		totalSamples += chunk.SampleCount
		if chunk.SizeBytes > 0 {
			totalBytes += chunk.SizeBytes
		} else {
			totalBytes += chunk.SampleCount * audio.BytesPerSample
		}
		if chunk.CreatedAt.Before(startedAt) {
			startedAt = chunk.CreatedAt
		}
		if chunk.ChunkNumber != i {
			contiguous = false
		}
	}

	var duration int64
	if first.SampleRate > 0 {
		duration = totalSamples / int64(first.SampleRate)
	}
	return &store.Record{
		ID:          parentID,
		Source:      store.SourceRecording,
		CreatedAt:   startedAt,
		SampleCount: totalSamples,
		SampleRate:  first.SampleRate,
		Channels:    first.Channels,
		SizeBytes:   totalBytes,
		Duration:    duration,
		ChunkCount:  len(group),
		Recovered:   true,
	}, contiguous
}
