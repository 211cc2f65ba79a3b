package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func testWAV(n int, rate, channels int, scale float32) []byte {
	samples := make([]float32, n*channels)
	for i := range samples {
		samples[i] = scale * float32(i) / float32(len(samples))
	}
	return audio.EncodeWAV(audio.EncodePCM16(samples), rate, channels)
}

func TestImportStoresUploadRecord(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	wav := testWAV(1500, 1000, 1, 0.5)
	rec, err := imp.Import(context.Background(), wav)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if !strings.HasPrefix(rec.ID, "upl-") {
		t.Errorf("id = %q, want upl- prefix", rec.ID)
	}
	if rec.Source != store.SourceUpload {
		t.Errorf("source = %q, want upload", rec.Source)
	}
	if rec.SampleCount != 1500 {
		t.Errorf("SampleCount = %d, want 1500", rec.SampleCount)
	}
	if rec.SampleRate != 1000 {
		t.Errorf("SampleRate = %d, want 1000", rec.SampleRate)
	}
	if rec.Duration != 1 {
		t.Errorf("Duration = %d, want 1", rec.Duration)
	}
	if rec.Hash == "" {
		t.Error("imported record must carry a content hash")
	}

	stored, err := st.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.Payload.Valid() {
		t.Error("stored payload invalid")
	}
	w, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored.Payload.Data, w.PCM) {
		t.Error("stored payload should be the WAV's PCM data")
	}
}

func TestImportDeduplicatesByContent(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	wav := testWAV(1000, 1000, 1, 0.5)
	first, err := imp.Import(context.Background(), wav)
	if err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	second, err := imp.Import(context.Background(), wav)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate import created a new record: %q vs %q", second.ID, first.ID)
	}

	uploads, err := st.ListBySource(context.Background(), store.SourceUpload)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 {
		t.Errorf("uploads stored = %d, want 1", len(uploads))
	}

	// different audio gets its own record
	other, err := imp.Import(context.Background(), testWAV(1000, 1000, 1, 0.9))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("different audio must not deduplicate")
	}
}

func TestImportStereoCountsFrames(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	rec, err := imp.Import(context.Background(), testWAV(2000, 1000, 2, 0.5))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if rec.SampleCount != 2000 {
		t.Errorf("SampleCount = %d, want 2000 frames", rec.SampleCount)
	}
	if rec.Channels != 2 {
		t.Errorf("Channels = %d, want 2", rec.Channels)
	}
	if rec.Duration != 2 {
		t.Errorf("Duration = %d, want 2", rec.Duration)
	}
}

func TestImportRejectsNonWAV(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	if _, err := imp.Import(context.Background(), []byte("definitely not audio")); err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}

func TestImportRejectsEmptyAudio(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	if _, err := imp.Import(context.Background(), audio.EncodeWAV(nil, 1000, 1)); err == nil {
		t.Fatal("expected error for a WAV with no samples")
	}
}

func TestImportFile(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, testWAV(500, 1000, 1, 0.5), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if rec.SampleCount != 500 {
		t.Errorf("SampleCount = %d, want 500", rec.SampleCount)
	}

	if _, err := imp.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
