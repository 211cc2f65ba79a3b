package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func ramp(n int, scale float32) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = scale * float32(i) / float32(n)
	}
	return samples
}

func putChunk(t *testing.T, st *store.Store, parent string, number, rate int, samples []float32) {
	t.Helper()
	err := st.Put(context.Background(), &store.Record{
		ID:          fmt.Sprintf("%s.%d", parent, number),
		Source:      store.SourceChunk,
		CreatedAt:   time.Now(),
		ParentID:    parent,
		ChunkNumber: number,
		SampleCount: int64(len(samples)),
		SampleRate:  rate,
		Channels:    1,
		SizeBytes:   int64(len(samples) * audio.BytesPerSample),
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: audio.EncodePCM16(samples)},
	})
	if err != nil {
		t.Fatalf("put chunk %d: %v", number, err)
	}
}

func putRecording(t *testing.T, st *store.Store, id string, rate int, chunkCount int, total int64) {
	t.Helper()
	err := st.Put(context.Background(), &store.Record{
		ID:          id,
		Source:      store.SourceRecording,
		CreatedAt:   time.Now(),
		SampleCount: total,
		SampleRate:  rate,
		Channels:    1,
		ChunkCount:  chunkCount,
		Duration:    total / int64(rate),
	})
	if err != nil {
		t.Fatalf("put recording: %v", err)
	}
}

func TestExportConcatenatesChunks(t *testing.T) {
	st := newTestStore(t)
	c0, c1, c2 := ramp(1000, 0.3), ramp(800, 0.6), ramp(500, 0.9)
	putChunk(t, st, "rec-1", 0, 1000, c0)
	putChunk(t, st, "rec-1", 1, 1000, c1)
	putChunk(t, st, "rec-1", 2, 1000, c2)
	putRecording(t, st, "rec-1", 1000, 3, 2300)

	data, err := New(st, zerolog.Nop()).WAV(context.Background(), "rec-1", 0)
	if err != nil {
		t.Fatalf("WAV() error = %v", err)
	}

	wav, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("exported bytes are not a valid WAV: %v", err)
	}
	if wav.SampleRate != 1000 {
		t.Errorf("sample rate = %d, want 1000", wav.SampleRate)
	}
	if wav.Channels != 1 {
		t.Errorf("channels = %d, want 1", wav.Channels)
	}

	var want []byte
	for _, c := range [][]float32{c0, c1, c2} {
		want = append(want, audio.EncodePCM16(c)...)
	}
	if !bytes.Equal(wav.PCM, want) {
		t.Errorf("PCM length %d, want chunks back to back (%d bytes)", len(wav.PCM), len(want))
	}
}

func TestExportResamplesToTargetRate(t *testing.T) {
	st := newTestStore(t)
	putChunk(t, st, "rec-2", 0, 1000, ramp(1000, 0.5))
	putChunk(t, st, "rec-2", 1, 1000, ramp(800, 0.5))
	putRecording(t, st, "rec-2", 1000, 2, 1800)

	data, err := New(st, zerolog.Nop()).WAV(context.Background(), "rec-2", 500)
	if err != nil {
		t.Fatalf("WAV() error = %v", err)
	}

	wav, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if wav.SampleRate != 500 {
		t.Errorf("sample rate = %d, want 500", wav.SampleRate)
	}
	// chunks resample independently: 1000 -> 500 and 800 -> 400 samples
	if got := len(wav.PCM) / audio.BytesPerSample; got != 900 {
		t.Errorf("resampled sample count = %d, want 900", got)
	}
}

func TestExportToleratesChunkGap(t *testing.T) {
	st := newTestStore(t)
	putChunk(t, st, "rec-3", 0, 1000, ramp(1000, 0.5))
	putChunk(t, st, "rec-3", 2, 1000, ramp(500, 0.8))
	putRecording(t, st, "rec-3", 1000, 3, 2000)

	data, err := New(st, zerolog.Nop()).WAV(context.Background(), "rec-3", 0)
	if err != nil {
		t.Fatalf("WAV() error = %v, gaps must not fail the export", err)
	}

	wav, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(wav.PCM) / audio.BytesPerSample; got != 1500 {
		t.Errorf("sample count = %d, want the 1500 surviving samples", got)
	}
}

func TestExportUploadPayload(t *testing.T) {
	st := newTestStore(t)
	samples := ramp(1500, 0.5)
	err := st.Put(context.Background(), &store.Record{
		ID:          "upl-1",
		Source:      store.SourceUpload,
		CreatedAt:   time.Now(),
		SampleCount: 1500,
		SampleRate:  1000,
		Channels:    1,
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: audio.EncodePCM16(samples)},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := New(st, zerolog.Nop()).WAV(context.Background(), "upl-1", 0)
	if err != nil {
		t.Fatalf("WAV() error = %v", err)
	}
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wav.PCM, audio.EncodePCM16(samples)) {
		t.Error("upload payload should export unchanged at its source rate")
	}
}

func TestExportStereoResamplesPerChannel(t *testing.T) {
	st := newTestStore(t)
	// constant left 0.5, right -0.5: any cross-channel bleed shows up as
	// values between the two
	frames := 1000
	samples := make([]float32, frames*2)
	for f := 0; f < frames; f++ {
		samples[f*2] = 0.5
		samples[f*2+1] = -0.5
	}
	err := st.Put(context.Background(), &store.Record{
		ID:          "upl-2",
		Source:      store.SourceUpload,
		CreatedAt:   time.Now(),
		SampleCount: int64(frames),
		SampleRate:  1000,
		Channels:    2,
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: audio.EncodePCM16(samples)},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := New(st, zerolog.Nop()).WAV(context.Background(), "upl-2", 500)
	if err != nil {
		t.Fatalf("WAV() error = %v", err)
	}
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if wav.Channels != 2 {
		t.Fatalf("channels = %d, want 2", wav.Channels)
	}

	decoded, err := audio.DecodePCM16(wav.PCM)
	if err != nil {
		t.Fatal(err)
	}
	for f := 0; f < len(decoded)/2; f++ {
		if math.Abs(float64(decoded[f*2])-0.5) > 0.001 {
			t.Fatalf("left sample %d = %v, want 0.5", f, decoded[f*2])
		}
		if math.Abs(float64(decoded[f*2+1])+0.5) > 0.001 {
			t.Fatalf("right sample %d = %v, want -0.5", f, decoded[f*2+1])
		}
	}
}

func TestExportUnknownRecording(t *testing.T) {
	st := newTestStore(t)
	_, err := New(st, zerolog.Nop()).WAV(context.Background(), "rec-missing", 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("WAV() error = %v, want ErrNotFound", err)
	}
}

func TestExportRecordingWithoutAudio(t *testing.T) {
	st := newTestStore(t)
	putRecording(t, st, "rec-4", 1000, 0, 0)
	if _, err := New(st, zerolog.Nop()).WAV(context.Background(), "rec-4", 0); err == nil {
		t.Fatal("expected error for a recording with no chunks and no payload")
	}
}
