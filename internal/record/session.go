package record

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/capture"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("recording session already started")
	// ErrNotStarted is returned when Stop is called on an idle session.
	ErrNotStarted = errors.New("recording session not started")
)

type sessionPhase int

const (
	sessionIdle sessionPhase = iota
	sessionRunning
	sessionStopped
)

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	SampleRate    int       `json:"sample_rate"`
	SampleCount   int       `json:"sample_count"`
	FlushedCount  int       `json:"flushed_count"`
	ChunksWritten int       `json:"chunks_written"`
}

// Session captures audio from one source into durable chunks. Frames are
// folded to mono on arrival so every persisted sample count divides
// cleanly by the sample rate. Stopping drains the source, flushes the
// tail, and finalizes the recording row from what actually got persisted.
type Session struct {
	id     string
	src    capture.Source
	st     ChunkStore
	buf    *Buffer
	writer *Writer
	log    zerolog.Logger
	done   chan struct{}

	mu        sync.Mutex
	phase     sessionPhase
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSession builds a session around src. flushInterval 0 disables the
// periodic chunk timer; samples then persist only on Stop.
func NewSession(src capture.Source, st ChunkStore, flushInterval time.Duration, log zerolog.Logger) *Session {
	id := fmt.Sprintf("rec-%d", time.Now().UnixMilli())
	buf := NewBuffer()
	return &Session{
		id:     id,
		src:    src,
		st:     st,
		buf:    buf,
		writer: NewWriter(id, buf, st, src.SampleRate(), flushInterval, log),
		log:    log.With().Str("recording_id", id).Logger(),
		done:   make(chan struct{}),
	}
}

// ID returns the recording identifier this session persists under.
func (s *Session) ID() string {
	return s.id
}

// Start begins capturing. It returns once the source is running; frames
// flow on background goroutines until Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != sessionIdle {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The session must outlive the request that started it, so the run
	// context is detached from the caller's.
	runCtx, cancel := context.WithCancel(context.Background())
	frames, errs, err := s.src.Start(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("start capture source: %w", err)
	}

	s.phase = sessionRunning
	s.cancel = cancel
	s.startedAt = time.Now()
	observability.RecordingActive.Set(1)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.consume(frames, errs)
	}()
	go func() {
		defer s.wg.Done()
		s.writer.Run(runCtx)
	}()

	s.log.Info().
		Int("sample_rate", s.src.SampleRate()).
		Int("channels", s.src.Channels()).
		Msg("recording started")
	return nil
}

// consume folds incoming frames to mono and appends them to the buffer.
// It exits when the source closes its frame channel.
func (s *Session) consume(frames <-chan capture.Frame, errs <-chan error) {
	defer close(s.done)
	channels := s.src.Channels()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			samples := frame.Samples
			if channels > 1 {
				samples = audio.Downmix(samples, channels)
			}
			s.buf.Append(samples)
			observability.FramesCaptured.Inc()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warn().Err(err).Msg("capture error")
		}
	}
}

// Stop ends the session: the source drains, the writer performs a final
// flush, and the recording row is written from the flushed totals. The
// returned record is valid even when err is non-nil, describing whatever
// audio made it to the store.
func (s *Session) Stop(ctx context.Context) (*store.Record, error) {
	s.mu.Lock()
	if s.phase != sessionRunning {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	s.phase = sessionStopped
	cancel := s.cancel
	s.mu.Unlock()

	observability.RecordingActive.Set(0)

	if err := s.src.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("capture source stop")
	}
	<-s.done
	cancel()
	s.wg.Wait()

	flushErr := s.writer.Flush(ctx)
	if flushErr != nil {
		lost := s.buf.Len() - s.buf.Flushed()
		s.log.Error().Err(flushErr).
			Int("samples_lost", lost).
			Msg("final chunk flush failed")
	}

	rec := s.finalRecord()
	if err := s.st.Put(ctx, rec); err != nil {
		return rec, fmt.Errorf("finalize recording %s: %w", s.id, err)
	}
	s.log.Info().
		Int64("duration_seconds", rec.Duration).
		Int("chunks", rec.ChunkCount).
		Msg("recording stopped")

	if flushErr != nil {
		return rec, fmt.Errorf("final flush: %w", flushErr)
	}
	return rec, nil
}

// finalRecord builds the recording row from the flushed watermark, never
// from samples that failed to persist.
func (s *Session) finalRecord() *store.Record {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	flushed := int64(s.buf.Flushed())
	rate := s.src.SampleRate()
	var duration int64
	if rate > 0 {
		duration = flushed / int64(rate)
	}
	return &store.Record{
		ID:          s.id,
		Source:      store.SourceRecording,
		CreatedAt:   startedAt,
		SampleCount: flushed,
		SampleRate:  rate,
		Channels:    1,
		SizeBytes:   flushed * audio.BytesPerSample,
		Duration:    duration,
		ChunkCount:  s.writer.ChunksWritten(),
	}
}

// Status reports the session's current progress.
func (s *Session) Status() Status {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	return Status{
		ID:            s.id,
		StartedAt:     startedAt,
		SampleRate:    s.src.SampleRate(),
		SampleCount:   s.buf.Len(),
		FlushedCount:  s.buf.Flushed(),
		ChunksWritten: s.writer.ChunksWritten(),
	}
}
