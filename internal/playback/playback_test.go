package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
	"github.com/fernandocchaves/tabtalk/internal/testutil"
)

var (
	_ Sink = (*PipeWireSink)(nil)
	_ Sink = (*memorySink)(nil)
)

// memorySink consumes the stream instantly, or one Write per gate token
// when gated. A closed gate lets everything through.
type memorySink struct {
	gate chan struct{}

	mu       sync.Mutex
	ctx      context.Context
	started  bool
	rate     int
	channels int
	data     []byte
	writes   int
}

func (m *memorySink) Start(ctx context.Context, sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	m.started = true
	m.rate = sampleRate
	m.channels = channels
	return nil
}

func (m *memorySink) Write(pcm []byte) error {
	if m.gate != nil {
		m.mu.Lock()
		ctx := m.ctx
		m.mu.Unlock()
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, pcm...)
	m.writes++
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *memorySink) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memorySink) bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

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

// seedChunks stores a recording and one chunk row per sample slice. When
// withCounts is false the chunk rows carry no sample count, forcing the
// player to fall back to its duration estimate.
func seedChunks(t *testing.T, st *store.Store, id string, rate int, withCounts bool, chunks ...[]float32) [][]byte {
	t.Helper()
	var total int64
	stored := make([][]byte, len(chunks))
	for i, samples := range chunks {
		pcm := audio.EncodePCM16(samples)
		stored[i] = pcm
		count := int64(len(samples))
		if !withCounts {
			count = 0
		}
		err := st.Put(context.Background(), &store.Record{
			ID:          fmt.Sprintf("%s.%d", id, i),
			Source:      store.SourceChunk,
			CreatedAt:   time.Now(),
			ParentID:    id,
			ChunkNumber: i,
			SampleCount: count,
			SampleRate:  rate,
			Channels:    1,
			SizeBytes:   int64(len(pcm)),
			Payload:     audio.Payload{Format: audio.FormatPCM16, Data: pcm},
		})
		if err != nil {
			t.Fatalf("put chunk %d: %v", i, err)
		}
		total += int64(len(samples))
	}
	err := st.Put(context.Background(), &store.Record{
		ID:          id,
		Source:      store.SourceRecording,
		CreatedAt:   time.Now(),
		SampleCount: total,
		SampleRate:  rate,
		Channels:    1,
		ChunkCount:  len(chunks),
		Duration:    total / int64(rate),
	})
	if err != nil {
		t.Fatalf("put recording: %v", err)
	}
	return stored
}

func waitDone(t *testing.T, p *Player) {
	t.Helper()
	testutil.WaitForCondition(t, func() bool {
		s := p.Position()
		return !s.Playing && !s.Paused
	}, 5*time.Second)
}

func TestPlayerPlaysAllChunksInOrder(t *testing.T) {
	st := newTestStore(t)
	stored := seedChunks(t, st, "rec-1", 1000, true,
		ramp(1000, 0.3), ramp(800, 0.6), ramp(500, 0.9))

	sink := &memorySink{}
	p := NewPlayer(st, sink, "rec-1", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, p)

	want := bytes.Join(stored, nil)
	if !bytes.Equal(sink.bytes(), want) {
		t.Errorf("played %d bytes, want the three chunks back to back (%d bytes)", len(sink.bytes()), len(want))
	}

	status := p.Position()
	if status.Chunk != 3 {
		t.Errorf("final chunk index = %d, want 3", status.Chunk)
	}
	if math.Abs(status.PositionSecs-2.3) > 1e-9 {
		t.Errorf("final position = %v, want 2.3", status.PositionSecs)
	}
	if math.Abs(status.DurationSecs-2.3) > 1e-9 {
		t.Errorf("duration = %v, want 2.3", status.DurationSecs)
	}

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestPlayerSeekFindsChunkAndOffset(t *testing.T) {
	st := newTestStore(t)
	// durations 58.0s, 61.5s, 40.0s at 1kHz
	stored := seedChunks(t, st, "rec-2", 1000, true,
		ramp(58000, 0.3), ramp(61500, 0.6), ramp(40000, 0.9))

	sink := &memorySink{gate: make(chan struct{})}
	p := NewPlayer(st, sink, "rec-2", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sink.gate <- struct{}{}
	testutil.WaitForCondition(t, func() bool { return sink.writeCount() == 1 }, 2*time.Second)

	// 100.0s lands 42.0s into the second chunk (58.0 + 42.0)
	if err := p.Seek(context.Background(), 100.0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}

	status := p.Position()
	if status.Chunk != 1 {
		t.Errorf("chunk after seek = %d, want 1", status.Chunk)
	}
	if math.Abs(status.PositionSecs-100.0) > 1e-9 {
		t.Errorf("position after seek = %v, want 100.0", status.PositionSecs)
	}

	close(sink.gate)
	waitDone(t, p)

	// Everything after the seek plays from 42.0s of chunk 1 onward.
	tail := append(append([]byte(nil), stored[1][42000*audio.BytesPerSample:]...), stored[2]...)
	if !bytes.HasSuffix(sink.bytes(), tail) {
		t.Error("stream after seek should continue from 42.0s of chunk 1")
	}

	final := p.Position()
	if math.Abs(final.PositionSecs-159.5) > 1e-9 {
		t.Errorf("final position = %v, want 159.5", final.PositionSecs)
	}
}

func TestPlayerSeekClampsNearEnd(t *testing.T) {
	st := newTestStore(t)
	seedChunks(t, st, "rec-3", 1000, true, ramp(1000, 0.5), ramp(2000, 0.8))

	sink := &memorySink{gate: make(chan struct{})}
	p := NewPlayer(st, sink, "rec-3", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// far past the end: lands in the last chunk, 10ms short of its end
	if err := p.Seek(context.Background(), 500.0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}

	status := p.Position()
	if status.Chunk != 1 {
		t.Errorf("chunk after seek = %d, want 1", status.Chunk)
	}
	want := 1.0 + 2.0 - 0.010
	if math.Abs(status.PositionSecs-want) > 1e-9 {
		t.Errorf("position after clamped seek = %v, want %v", status.PositionSecs, want)
	}

	close(sink.gate)
	waitDone(t, p)
}

func TestPlayerPauseHoldsPosition(t *testing.T) {
	st := newTestStore(t)
	stored := seedChunks(t, st, "rec-4", 1000, true, ramp(1000, 0.5))

	sink := &memorySink{gate: make(chan struct{})}
	p := NewPlayer(st, sink, "rec-4", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sink.gate <- struct{}{}
	sink.gate <- struct{}{}
	testutil.WaitForCondition(t, func() bool { return sink.writeCount() == 2 }, 2*time.Second)

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	// let the loop settle, then hold: two 200-sample blocks were written
	testutil.WaitForCondition(t, func() bool {
		a := p.Position().PositionSecs
		time.Sleep(25 * time.Millisecond)
		return p.Position().PositionSecs == a
	}, 2*time.Second)
	pos1 := p.Position()
	if pos1.PositionSecs != 0.2 {
		t.Errorf("paused position = %v, want 0.2", pos1.PositionSecs)
	}
	if pos1.Playing || !pos1.Paused {
		t.Errorf("paused player reports playing=%v paused=%v", pos1.Playing, pos1.Paused)
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	close(sink.gate)
	waitDone(t, p)

	if !bytes.Equal(sink.bytes(), stored[0]) {
		t.Error("pause/resume must play every sample exactly once")
	}
}

func TestPlayerEstimateRefinedToMeasured(t *testing.T) {
	st := newTestStore(t)
	// chunk rows without sample counts: durations start as estimates
	seedChunks(t, st, "rec-5", 1000, false, ramp(1000, 0.5), ramp(500, 0.8))

	sink := &memorySink{gate: make(chan struct{})}
	p := NewPlayer(st, sink, "rec-5", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// first chunk loaded: its estimate is replaced, the other remains
	testutil.WaitForCondition(t, sink.isStarted, 2*time.Second)
	status := p.Position()
	if math.Abs(status.DurationSecs-61.0) > 1e-9 {
		t.Errorf("duration with one chunk measured = %v, want 61.0", status.DurationSecs)
	}

	close(sink.gate)
	waitDone(t, p)

	final := p.Position()
	if math.Abs(final.DurationSecs-1.5) > 1e-9 {
		t.Errorf("duration after full playback = %v, want 1.5", final.DurationSecs)
	}
}

func TestPlayerPlaysUploadPayload(t *testing.T) {
	st := newTestStore(t)
	samples := ramp(1500, 0.5)
	pcm := audio.EncodePCM16(samples)
	err := st.Put(context.Background(), &store.Record{
		ID:          "upl-1",
		Source:      store.SourceUpload,
		CreatedAt:   time.Now(),
		SampleCount: 1500,
		SampleRate:  1000,
		Channels:    1,
		SizeBytes:   int64(len(pcm)),
		Payload:     audio.Payload{Format: audio.FormatPCM16, Data: pcm},
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := &memorySink{}
	p := NewPlayer(st, sink, "upl-1", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, p)

	if !bytes.Equal(sink.bytes(), pcm) {
		t.Error("upload payload should play as a single track")
	}
	status := p.Position()
	if status.ChunkCount != 1 {
		t.Errorf("ChunkCount = %d, want 1", status.ChunkCount)
	}
	if math.Abs(status.DurationSecs-1.5) > 1e-9 {
		t.Errorf("duration = %v, want 1.5", status.DurationSecs)
	}
}

func TestPlayerResamplesRateMismatch(t *testing.T) {
	st := newTestStore(t)
	var total int64
	for i, c := range []struct {
		samples []float32
		rate    int
	}{
		{ramp(1000, 0.5), 1000},
		{ramp(500, 0.8), 500},
	} {
		pcm := audio.EncodePCM16(c.samples)
		err := st.Put(context.Background(), &store.Record{
			ID:          fmt.Sprintf("rec-6.%d", i),
			Source:      store.SourceChunk,
			CreatedAt:   time.Now(),
			ParentID:    "rec-6",
			ChunkNumber: i,
			SampleCount: int64(len(c.samples)),
			SampleRate:  c.rate,
			Channels:    1,
			SizeBytes:   int64(len(pcm)),
			Payload:     audio.Payload{Format: audio.FormatPCM16, Data: pcm},
		})
		if err != nil {
			t.Fatal(err)
		}
		total += int64(len(c.samples))
	}
	err := st.Put(context.Background(), &store.Record{
		ID: "rec-6", Source: store.SourceRecording, CreatedAt: time.Now(),
		SampleCount: total, SampleRate: 1000, Channels: 1, ChunkCount: 2, Duration: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	sink := &memorySink{}
	p := NewPlayer(st, sink, "rec-6", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, p)

	if sink.rate != 1000 {
		t.Errorf("sink rate = %d, want the first chunk's 1000", sink.rate)
	}
	// second chunk resampled 500 -> 1000: 1000 frames, same 1.0s duration
	if got := len(sink.bytes()); got != (1000+1000)*audio.BytesPerSample {
		t.Errorf("played bytes = %d, want %d", got, (1000+1000)*audio.BytesPerSample)
	}
	final := p.Position()
	if math.Abs(final.DurationSecs-2.0) > 1e-9 {
		t.Errorf("duration = %v, want 2.0", final.DurationSecs)
	}
}

func TestPlayerStartUnknownRecording(t *testing.T) {
	st := newTestStore(t)
	p := NewPlayer(st, &memorySink{}, "rec-missing", 60, zerolog.Nop())
	if err := p.Start(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Start() error = %v, want ErrNotFound", err)
	}
}

func TestPlayerStartRecordingWithoutAudio(t *testing.T) {
	st := newTestStore(t)
	err := st.Put(context.Background(), &store.Record{
		ID: "rec-7", Source: store.SourceRecording, CreatedAt: time.Now(),
		SampleRate: 1000, Channels: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	p := NewPlayer(st, &memorySink{}, "rec-7", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail for a recording with no chunks and no payload")
	}
}

func TestPlayerControlsBeforeStart(t *testing.T) {
	st := newTestStore(t)
	p := NewPlayer(st, &memorySink{}, "rec-8", 60, zerolog.Nop())

	if err := p.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause() error = %v, want ErrNotPlaying", err)
	}
	if err := p.Resume(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Resume() error = %v, want ErrNotPlaying", err)
	}
	if err := p.Seek(context.Background(), 1.0); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Seek() error = %v, want ErrNotPlaying", err)
	}

	// Stop on a never-started player is a no-op
	p.Stop()
}

func TestPlayerStopWhileSinkBlocked(t *testing.T) {
	st := newTestStore(t)
	seedChunks(t, st, "rec-9", 1000, true, ramp(1000, 0.5))

	sink := &memorySink{gate: make(chan struct{})}
	p := NewPlayer(st, sink, "rec-9", 60, zerolog.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	testutil.WaitForCondition(t, sink.isStarted, 2*time.Second)

	p.Stop()

	status := p.Position()
	if status.Playing || status.Paused {
		t.Error("stopped player must report not playing")
	}

	// controls after stop are rejected
	if err := p.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause() after stop error = %v, want ErrNotPlaying", err)
	}
}
