package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChunk(parent string, n int, samples []float32, rate int) *Record {
	pcm := audio.EncodePCM16(samples)
	return &Record{
		ID:          chunkID(parent, n),
		Source:      SourceChunk,
		CreatedAt:   time.Now(),
		ParentID:    parent,
		ChunkNumber: n,
		SampleCount: int64(len(samples)),
		SampleRate:  rate,
		Channels:    1,
		SizeBytes:   int64(len(pcm)),
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: pcm},
	}
}

func chunkID(parent string, n int) string {
	return parent + "." + string(rune('0'+n))
}

func TestPutGetChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunk := testChunk("rec-1", 0, []float32{0.1, -0.1, 0.5}, 48000)
	if err := s.Put(ctx, chunk); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Source != SourceChunk || got.ParentID != "rec-1" || got.ChunkNumber != 0 {
		t.Errorf("chunk metadata mismatch: %+v", got)
	}
	if got.SampleCount != 3 || got.SampleRate != 48000 {
		t.Errorf("chunk audio metadata mismatch: %+v", got)
	}
	if got.Payload.Format != audio.FormatPCM16 || len(got.Payload.Data) != 6 {
		t.Errorf("payload not round-tripped: format=%q len=%d", got.Payload.Format, len(got.Payload.Data))
	}
}

func TestPutRejectsInvalidPayload(t *testing.T) {
	s := newTestStore(t)

	bad := testChunk("rec-1", 0, []float32{0.1}, 48000)
	bad.Payload = audio.Payload{Format: "opus", Data: []byte{1, 2}}
	if err := s.Put(context.Background(), bad); err == nil {
		t.Error("expected error for unknown payload format")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBySourceExcludesPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testChunk("rec-1", 0, make([]float32, 100), 48000)); err != nil {
		t.Fatalf("put chunk: %v", err)
	}
	if err := s.Put(ctx, &Record{ID: "rec-1", Source: SourceRecording, CreatedAt: time.Now(), SampleRate: 48000, Channels: 1, ChunkCount: 1}); err != nil {
		t.Fatalf("put recording: %v", err)
	}

	chunks, err := s.ListBySource(ctx, SourceChunk)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Payload.Data) != 0 {
		t.Error("list must not load payloads")
	}

	recs, err := s.ListBySource(ctx, SourceRecording)
	if err != nil {
		t.Fatalf("list recordings: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-1" {
		t.Errorf("unexpected recordings: %+v", recs)
	}
}

func TestChunksByParentOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// insert out of order
	for _, n := range []int{2, 0, 1} {
		if err := s.Put(ctx, testChunk("rec-1", n, []float32{0}, 48000)); err != nil {
			t.Fatalf("put chunk %d: %v", n, err)
		}
	}
	if err := s.Put(ctx, testChunk("rec-2", 0, []float32{0}, 48000)); err != nil {
		t.Fatalf("put other chunk: %v", err)
	}

	chunks, err := s.ChunksByParent(ctx, "rec-1")
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkNumber != i {
			t.Errorf("position %d holds chunk number %d", i, c.ChunkNumber)
		}
	}
}

func TestDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, &Record{ID: "rec-1", Source: SourceRecording, CreatedAt: time.Now(), SampleRate: 48000, Channels: 1, ChunkCount: 2}); err != nil {
		t.Fatalf("put recording: %v", err)
	}
	for n := 0; n < 2; n++ {
		if err := s.Put(ctx, testChunk("rec-1", n, []float32{0}, 48000)); err != nil {
			t.Fatalf("put chunk: %v", err)
		}
	}
	if err := s.SaveState(ctx, &TranscriptionState{RecordingID: "rec-1", LastCompleted: 0, Segments: []string{"hi"}, FailedSegment: -1, StartedAt: time.Now(), UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("save state: %v", err)
	}

	if err := s.Delete(ctx, "rec-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.Get(ctx, "rec-1"); !errors.Is(err, ErrNotFound) {
		t.Error("recording should be gone")
	}
	chunks, err := s.ChunksByParent(ctx, "rec-1")
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks after delete, got %d", len(chunks))
	}
	if ok, _ := s.HasState(ctx, "rec-1"); ok {
		t.Error("state should be gone after delete")
	}
}

func TestDeleteMissing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetTranscriptAndVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, &Record{ID: "rec-1", Source: SourceRecording, CreatedAt: time.Now(), SampleRate: 48000, Channels: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := s.SetTranscript(ctx, "rec-1", "hello world"); err != nil {
		t.Fatalf("set transcript: %v", err)
	}
	if err := s.SetVariant(ctx, "rec-1", "cleanup", "Hello, world."); err != nil {
		t.Fatalf("set variant: %v", err)
	}
	if err := s.SetVariant(ctx, "rec-1", "summary", "Greeting."); err != nil {
		t.Fatalf("set second variant: %v", err)
	}

	got, err := s.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Transcript != "hello world" {
		t.Errorf("transcript = %q", got.Transcript)
	}
	if got.Variants["cleanup"] != "Hello, world." || got.Variants["summary"] != "Greeting." {
		t.Errorf("variants = %+v", got.Variants)
	}

	if err := s.SetTranscript(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTranscriptionStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if ok, err := s.HasState(ctx, "rec-1"); err != nil || ok {
		t.Fatalf("fresh store should have no state (ok=%v err=%v)", ok, err)
	}
	if _, err := s.GetState(ctx, "rec-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	st := &TranscriptionState{
		RecordingID:   "rec-1",
		LastCompleted: 1,
		Segments:      []string{"one", "two"},
		LastError:     "segment 2: boom",
		FailedSegment: 2,
		StartedAt:     time.Now().Add(-time.Minute),
		UpdatedAt:     time.Now(),
	}
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetState(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastCompleted != 1 || len(got.Segments) != 2 || got.Segments[1] != "two" {
		t.Errorf("state mismatch: %+v", got)
	}
	if got.FailedSegment != 2 || got.LastError == "" {
		t.Errorf("failure fields lost: %+v", got)
	}

	// clearing the failure marker persists as NULL and reads back as -1
	st.FailedSegment = -1
	st.LastError = ""
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err = s.GetState(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get after resave: %v", err)
	}
	if got.FailedSegment != -1 || got.LastError != "" {
		t.Errorf("failure fields should be cleared: %+v", got)
	}

	if err := s.DeleteState(ctx, "rec-1"); err != nil {
		t.Fatalf("delete state: %v", err)
	}
	if ok, _ := s.HasState(ctx, "rec-1"); ok {
		t.Error("state should be gone")
	}
	// deleting again is fine
	if err := s.DeleteState(ctx, "rec-1"); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}
