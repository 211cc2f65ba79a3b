package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/observability"
	"github.com/fernandocchaves/tabtalk/internal/segment"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

// OrchestratorConfig tunes the segment loop.
type OrchestratorConfig struct {
	// SegmentSeconds is the window each external call covers.
	SegmentSeconds int
	// TargetRate resamples segments before upload. 0 keeps the source rate.
	TargetRate int
	// MinInterval is the floor between consecutive call starts, dictated
	// by the provider's requests-per-minute ceiling. 0 disables pacing.
	MinInterval time.Duration
}

// Orchestrator drives segment-by-segment transcription with persisted
// progress. Segments go out strictly in order, one call at a time per
// recording, paced to the provider's rate limit. A failed segment halts
// the run with everything before it checkpointed for resume.
type Orchestrator struct {
	st      *store.Store
	factory func() (Service, error)
	cfg     OrchestratorConfig
	log     zerolog.Logger

	mu       sync.Mutex
	service  Service
	inflight map[string]bool
}

// NewOrchestrator wires the orchestrator to the store and a provider
// factory. The factory runs lazily on first use and again after a
// credential rejection, so it should read current configuration.
func NewOrchestrator(st *store.Store, factory func() (Service, error), cfg OrchestratorConfig, log zerolog.Logger) *Orchestrator {
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 60
	}
	return &Orchestrator{
		st:       st,
		factory:  factory,
		cfg:      cfg,
		log:      log,
		inflight: make(map[string]bool),
	}
}

// Transcribe runs a fresh transcription of the recording. It rejects
// synchronously when partial progress already exists (use Resume) or when
// a run for this recording is in flight.
func (o *Orchestrator) Transcribe(ctx context.Context, recordingID string) (string, error) {
	rec, err := o.st.Get(ctx, recordingID)
	if err != nil {
		return "", fmt.Errorf("load recording %q: %w", recordingID, err)
	}

	if !o.acquire(recordingID) {
		return "", ErrRunInFlight
	}
	defer o.release(recordingID)

	has, err := o.st.HasState(ctx, recordingID)
	if err != nil {
		return "", err
	}
	if has {
		return "", ErrStateExists
	}

	now := time.Now()
	state := &store.TranscriptionState{
		RecordingID:   recordingID,
		LastCompleted: -1,
		FailedSegment: -1,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	return o.run(ctx, rec, state)
}

// Resume continues a halted transcription from the last completed
// segment. It rejects synchronously when no saved state exists.
func (o *Orchestrator) Resume(ctx context.Context, recordingID string) (string, error) {
	rec, err := o.st.Get(ctx, recordingID)
	if err != nil {
		return "", fmt.Errorf("load recording %q: %w", recordingID, err)
	}

	if !o.acquire(recordingID) {
		return "", ErrRunInFlight
	}
	defer o.release(recordingID)

	state, err := o.st.GetState(ctx, recordingID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNothingToResume
	}
	if err != nil {
		return "", err
	}
	return o.run(ctx, rec, state)
}

// HasIncompleteTranscription reports whether partial progress exists for
// the recording.
func (o *Orchestrator) HasIncompleteTranscription(ctx context.Context, recordingID string) (bool, error) {
	return o.st.HasState(ctx, recordingID)
}

// ClearState discards saved progress so the next Transcribe starts fresh.
func (o *Orchestrator) ClearState(ctx context.Context, recordingID string) error {
	return o.st.DeleteState(ctx, recordingID)
}

// run is the segment loop. state reflects progress so far and is saved
// after every segment result, success or failure.
func (o *Orchestrator) run(ctx context.Context, rec *store.Record, state *store.TranscriptionState) (string, error) {
	reader, err := o.newReader(ctx, rec)
	if err != nil {
		return "", err
	}
	if reader.Corrupted() {
		o.log.Warn().
			Str("recording_id", rec.ID).
			Msg("recording has missing chunks, transcribing the usable prefix")
	}
	total := reader.Count()

	var svc Service
	var lastCallStart time.Time
	for {
		seg, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if seg.Number <= state.LastCompleted {
			continue
		}

		// Rate floor, measured call start to call start, so a slow call
		// consumes part of its own cool-down.
		if !lastCallStart.IsZero() {
			if wait := o.cfg.MinInterval - time.Since(lastCallStart); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return "", ctx.Err()
				case <-timer.C:
				}
			}
		}

		if svc == nil {
			svc, err = o.getService()
			if err != nil {
				return "", o.halt(state, seg.Number, err)
			}
		}

		lastCallStart = time.Now()
		result, err := svc.Transcribe(ctx, segmentWAV(seg))
		observability.TranscriptionCallSeconds.Observe(time.Since(lastCallStart).Seconds())
		if err != nil {
			observability.TranscriptionCalls.WithLabelValues("error").Inc()
			if IsAuthError(err) {
				o.invalidateService()
			}
			return "", o.halt(state, seg.Number, err)
		}
		outcome := "ok"
		if result.Truncated {
			outcome = "truncated"
			o.log.Warn().
				Str("recording_id", rec.ID).
				Int("segment", seg.Number).
				Msg("segment transcript truncated by provider output limit, accepting partial text")
		}
		observability.TranscriptionCalls.WithLabelValues(outcome).Inc()

		state.Segments = append(state.Segments, collapseRepeats(result.Text))
		state.LastCompleted = seg.Number
		state.FailedSegment = -1
		state.LastError = ""
		state.UpdatedAt = time.Now()
		if err := o.st.SaveState(ctx, state); err != nil {
			return "", fmt.Errorf("persist progress after segment %d: %w", seg.Number, err)
		}
		o.log.Info().
			Str("recording_id", rec.ID).
			Int("segment", seg.Number).
			Int("total", total).
			Msg("segment transcribed")
	}

	transcript := joinSegments(state.Segments)
	if err := o.st.SetTranscript(ctx, rec.ID, transcript); err != nil {
		return "", fmt.Errorf("commit transcript: %w", err)
	}
	if err := o.st.DeleteState(ctx, rec.ID); err != nil {
		return "", fmt.Errorf("clear transcription state: %w", err)
	}
	o.log.Info().
		Str("recording_id", rec.ID).
		Int("segments", total).
		Msg("transcription complete")
	return transcript, nil
}

// halt checkpoints the failure and wraps it with the failing segment. The
// save runs on a detached context: cancellation must never lose progress.
func (o *Orchestrator) halt(state *store.TranscriptionState, segNumber int, cause error) error {
	state.FailedSegment = segNumber
	state.LastError = cause.Error()
	state.UpdatedAt = time.Now()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.st.SaveState(saveCtx, state); err != nil {
		o.log.Error().Err(err).
			Str("recording_id", state.RecordingID).
			Msg("failed to persist halted transcription state")
	}
	return &SegmentError{RecordingID: state.RecordingID, Segment: segNumber, Err: cause}
}

func (o *Orchestrator) newReader(ctx context.Context, rec *store.Record) (*segment.Reader, error) {
	opts := segment.Options{
		SegmentSeconds: o.cfg.SegmentSeconds,
		TargetRate:     o.cfg.TargetRate,
	}
	if rec.Source == store.SourceUpload {
		samples, err := rec.Payload.Samples()
		if err != nil {
			return nil, fmt.Errorf("decode upload %q: %w", rec.ID, err)
		}
		// Uploads keep their original channel count; fold to mono so
		// segment boundaries count frames, not interleaved samples.
		samples = audio.Downmix(samples, rec.Channels)
		return segment.NewMemoryReader(samples, rec.SampleRate, opts)
	}
	return segment.NewReader(ctx, o.st, rec.ID, opts, o.log)
}

func (o *Orchestrator) getService() (Service, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.service != nil {
		return o.service, nil
	}
	svc, err := o.factory()
	if err != nil {
		return nil, err
	}
	o.service = svc
	return svc, nil
}

// invalidateService drops the cached client after an auth failure so the
// next run rebuilds it from current configuration.
func (o *Orchestrator) invalidateService() {
	o.mu.Lock()
	o.service = nil
	o.mu.Unlock()
}

func (o *Orchestrator) acquire(recordingID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[recordingID] {
		return false
	}
	o.inflight[recordingID] = true
	return true
}

func (o *Orchestrator) release(recordingID string) {
	o.mu.Lock()
	delete(o.inflight, recordingID)
	o.mu.Unlock()
}

// segmentWAV encodes one segment as a standalone WAV file for upload.
func segmentWAV(seg *segment.Segment) []byte {
	return audio.EncodeWAV(audio.EncodePCM16(seg.Samples), seg.SampleRate, 1)
}

// joinSegments space-joins per-segment texts in order, skipping segments
// that transcribed to nothing.
func joinSegments(segments []string) string {
	parts := segments[:0:0]
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
