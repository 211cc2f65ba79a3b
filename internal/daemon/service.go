package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/bus"
	"github.com/fernandocchaves/tabtalk/internal/capture"
	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/export"
	"github.com/fernandocchaves/tabtalk/internal/llm"
	"github.com/fernandocchaves/tabtalk/internal/notify"
	"github.com/fernandocchaves/tabtalk/internal/playback"
	"github.com/fernandocchaves/tabtalk/internal/record"
	"github.com/fernandocchaves/tabtalk/internal/recovery"
	"github.com/fernandocchaves/tabtalk/internal/store"
	"github.com/fernandocchaves/tabtalk/internal/transcribe"
	"github.com/fernandocchaves/tabtalk/internal/upload"
)

var (
	// ErrCaptureActive rejects a second start while a session runs.
	ErrCaptureActive = errors.New("another capture is active")
	// ErrNoCapture rejects stop with no session running.
	ErrNoCapture = errors.New("no capture in progress")
	// ErrNothingPlaying rejects playback control with no player.
	ErrNothingPlaying = errors.New("nothing is playing")

	errIDRequired = errors.New("recording id required")
)

// Service executes control commands against the store and the live
// capture and playback state. It is the single owner of the capture
// session and the player handle; every query reads them under the mutex
// instead of trusting copies taken before a suspension point.
type Service struct {
	st    *store.Store
	cfg   *config.Manager
	log   zerolog.Logger
	notif notify.Notifier

	version   string
	startedAt time.Time
	runCtx    context.Context

	orch     *transcribe.Orchestrator
	importer *upload.Importer
	exporter *export.Exporter
	recovery *recovery.Engine

	// Swappable for tests.
	newSource         func() (capture.Source, error)
	newSink           func(device string) playback.Sink
	transcribeFactory func() (transcribe.Service, error)

	mu      sync.Mutex
	ws      *capture.Websocket
	session *record.Session
	player  *playback.Player
}

// NewService wires the facade. runCtx bounds background work (playback,
// capture) to the daemon lifetime rather than to the connection that
// started it.
func NewService(runCtx context.Context, st *store.Store, cfgm *config.Manager, notifier notify.Notifier, version string, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	cfg := cfgm.GetConfig()

	s := &Service{
		st:        st,
		cfg:       cfgm,
		log:       log,
		notif:     notifier,
		version:   version,
		startedAt: time.Now(),
		runCtx:    runCtx,
		importer:  upload.New(st, log),
		exporter:  export.New(st, log),
		recovery:  recovery.New(st, log),
		// The ingest endpoint exists even when pipewire is the configured
		// source, so a reload that switches to websocket needs no restart.
		ws: capture.NewWebsocket(cfg.ToWebsocketConfig(), log),
	}
	s.transcribeFactory = func() (transcribe.Service, error) {
		return transcribe.NewService(s.cfg.GetConfig().ToTranscribeConfig())
	}
	s.orch = transcribe.NewOrchestrator(st, func() (transcribe.Service, error) {
		return s.transcribeFactory()
	}, cfg.ToOrchestratorConfig(), log)
	s.newSource = s.configuredSource
	s.newSink = func(device string) playback.Sink {
		return playback.NewPipeWireSink(device, log)
	}
	return s
}

// IngestHandler serves /ingest for websocket publishers.
func (s *Service) IngestHandler() http.Handler {
	return s.ws.Handler()
}

func (s *Service) configuredSource() (capture.Source, error) {
	cfg := s.cfg.GetConfig()
	switch cfg.Audio.Source {
	case "pipewire":
		return capture.NewPipeWire(cfg.ToPipeWireConfig(), s.log), nil
	case "websocket":
		return s.ws, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Audio.Source)
	}
}

// StartCapture begins a new recording session.
func (s *Service) StartCapture(ctx context.Context) (*bus.CaptureInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil, ErrCaptureActive
	}

	src, err := s.newSource()
	if err != nil {
		return nil, err
	}
	sess := record.NewSession(src, s.st, s.cfg.GetConfig().FlushInterval(), s.log)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	s.session = sess

	go s.notif.RecordingStarted()
	info := captureInfo(sess.Status())
	return &info, nil
}

// StopCapture finalizes the active session and returns the stored
// recording row.
func (s *Service) StopCapture(ctx context.Context) (*bus.RecordingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNoCapture
	}
	sess := s.session
	s.session = nil

	rec, err := sess.Stop(ctx)
	if rec != nil {
		go s.notif.RecordingStopped(rec.ID, rec.Duration)
	}
	if err != nil {
		return nil, err
	}
	info := recordInfo(rec, false)
	return &info, nil
}

// Status reports the daemon, capture, playback, and checkpoint state.
func (s *Service) Status(ctx context.Context) (*bus.StatusInfo, error) {
	cfg := s.cfg.GetConfig()
	info := &bus.StatusInfo{
		Version:     s.version,
		AudioSource: cfg.Audio.Source,
		UptimeSecs:  time.Since(s.startedAt).Seconds(),
	}

	s.mu.Lock()
	if s.session != nil {
		ci := captureInfo(s.session.Status())
		info.Recording = &ci
	}
	info.Playback = s.playerSnapshot()
	s.mu.Unlock()

	ids, err := s.st.StateIDs(ctx)
	if err != nil {
		return nil, err
	}
	info.IncompleteTranscriptions = ids
	return info, nil
}

// List returns recordings and uploads newest first, with the active
// session shown as an in-progress placeholder ahead of the stored rows.
func (s *Service) List(ctx context.Context) ([]bus.RecordingInfo, error) {
	recs, err := s.st.ListBySource(ctx, store.SourceRecording)
	if err != nil {
		return nil, err
	}
	ups, err := s.st.ListBySource(ctx, store.SourceUpload)
	if err != nil {
		return nil, err
	}
	stateIDs, err := s.st.StateIDs(ctx)
	if err != nil {
		return nil, err
	}
	hasState := make(map[string]bool, len(stateIDs))
	for _, id := range stateIDs {
		hasState[id] = true
	}

	rows := make([]bus.RecordingInfo, 0, len(recs)+len(ups)+1)

	s.mu.Lock()
	if s.session != nil {
		rows = append(rows, liveRow(s.session.Status()))
	}
	s.mu.Unlock()

	for _, r := range mergeNewestFirst(recs, ups) {
		rows = append(rows, recordInfo(r, hasState[r.ID]))
	}
	return rows, nil
}

// Chunks returns the chunk metadata of one recording in number order.
func (s *Service) Chunks(ctx context.Context, id string) ([]bus.ChunkInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}
	if _, err := s.st.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("load recording %q: %w", id, err)
	}
	chunks, err := s.st.ChunksByParent(ctx, id)
	if err != nil {
		return nil, err
	}
	infos := make([]bus.ChunkInfo, len(chunks))
	for i, c := range chunks {
		infos[i] = bus.ChunkInfo{
			ID:          c.ID,
			ChunkNumber: c.ChunkNumber,
			CreatedAt:   c.CreatedAt,
			SampleCount: c.SampleCount,
			SizeBytes:   c.SizeBytes,
		}
	}
	return infos, nil
}

// Transcribe runs a fresh transcription of the recording.
func (s *Service) Transcribe(ctx context.Context, id string) (*bus.TranscribeInfo, error) {
	return s.runTranscription(ctx, id, s.orch.Transcribe)
}

// Resume continues a halted transcription from its checkpoint.
func (s *Service) Resume(ctx context.Context, id string) (*bus.TranscribeInfo, error) {
	return s.runTranscription(ctx, id, s.orch.Resume)
}

func (s *Service) runTranscription(ctx context.Context, id string, run func(context.Context, string) (string, error)) (*bus.TranscribeInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}
	text, err := run(ctx, id)
	if err != nil {
		if !isPrecondition(err) {
			go s.notif.TranscriptionFailed(id, err)
		}
		return nil, err
	}
	go s.notif.TranscriptionDone(id)
	return &bus.TranscribeInfo{
		ID:         id,
		Segments:   s.segmentCount(ctx, id),
		Transcript: text,
	}, nil
}

// isPrecondition separates synchronous rejections from failures of the
// run itself; only the latter are worth a desktop notification.
func isPrecondition(err error) bool {
	return errors.Is(err, transcribe.ErrStateExists) ||
		errors.Is(err, transcribe.ErrNothingToResume) ||
		errors.Is(err, transcribe.ErrRunInFlight)
}

func (s *Service) segmentCount(ctx context.Context, id string) int {
	rec, err := s.st.Get(ctx, id)
	if err != nil || rec.SampleRate <= 0 {
		return 0
	}
	segSamples := int64(rec.SampleRate) * int64(s.cfg.GetConfig().Transcription.SegmentSeconds)
	if segSamples <= 0 {
		return 0
	}
	return int((rec.SampleCount + segSamples - 1) / segSamples)
}

// Transcript returns the stored transcript and its variants.
func (s *Service) Transcript(ctx context.Context, id string) (*bus.TranscriptInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}
	rec, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load recording %q: %w", id, err)
	}
	if rec.Transcript == "" {
		if ok, _ := s.st.HasState(ctx, id); ok {
			return nil, fmt.Errorf("transcription of %s is incomplete, resume or clear it", id)
		}
		return nil, fmt.Errorf("recording %s has no transcript", id)
	}
	return &bus.TranscriptInfo{ID: id, Transcript: rec.Transcript, Variants: rec.Variants}, nil
}

// ClearTranscription discards the transcription checkpoint.
func (s *Service) ClearTranscription(ctx context.Context, id string) error {
	if id == "" {
		return errIDRequired
	}
	if _, err := s.st.Get(ctx, id); err != nil {
		return fmt.Errorf("load recording %q: %w", id, err)
	}
	return s.orch.ClearState(ctx, id)
}

// Export renders the recording as WAV at the requested rate (0 keeps the
// stored rate) and writes it to out.
func (s *Service) Export(ctx context.Context, id string, rate int, out string) (*bus.ExportInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}
	if out == "" {
		return nil, errors.New("output path required")
	}
	wav, err := s.exporter.WAV(ctx, id, rate)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, wav, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	meta, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("inspect exported wav: %w", err)
	}
	return &bus.ExportInfo{
		ID:         id,
		Path:       out,
		SampleRate: meta.SampleRate,
		Samples:    int64(len(meta.PCM)) / int64(audio.BytesPerSample*meta.Channels),
	}, nil
}

// Play starts playback of the recording, replacing whatever was playing.
func (s *Service) Play(ctx context.Context, id string) (*bus.PlayInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		s.player.Stop()
		s.player = nil
	}

	cfg := s.cfg.GetConfig()
	player := playback.NewPlayer(s.st, s.newSink(cfg.Playback.Device), id,
		float64(cfg.Recording.FlushIntervalSeconds), s.log)
	if err := player.Start(s.runCtx); err != nil {
		return nil, err
	}
	s.player = player

	pi := playInfo(player.Position())
	return &pi, nil
}

// TogglePause pauses a playing player and resumes a paused one.
func (s *Service) TogglePause(ctx context.Context) (*bus.PlayInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return nil, ErrNothingPlaying
	}
	var err error
	if s.player.Position().Paused {
		err = s.player.Resume()
	} else {
		err = s.player.Pause()
	}
	if err != nil {
		return nil, err
	}
	pi := playInfo(s.player.Position())
	return &pi, nil
}

// Seek moves playback to an absolute position in seconds.
func (s *Service) Seek(ctx context.Context, seconds float64) (*bus.PlayInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return nil, ErrNothingPlaying
	}
	if err := s.player.Seek(ctx, seconds); err != nil {
		return nil, err
	}
	pi := playInfo(s.player.Position())
	return &pi, nil
}

// Position reports playback state; with nothing playing it returns a
// stopped snapshot rather than an error.
func (s *Service) Position(ctx context.Context) (*bus.PlayInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pi := s.playerSnapshot(); pi != nil {
		return pi, nil
	}
	return &bus.PlayInfo{}, nil
}

// playerSnapshot reads the player under the caller's lock and drops the
// handle once playback has finished on its own.
func (s *Service) playerSnapshot() *bus.PlayInfo {
	if s.player == nil {
		return nil
	}
	st := s.player.Position()
	if !st.Playing && !st.Paused {
		s.player = nil
		return nil
	}
	pi := playInfo(st)
	return &pi
}

// Delete removes a recording, its chunks, and any checkpoint. The active
// session cannot be deleted; an actively playing recording stops first.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errIDRequired
	}

	s.mu.Lock()
	if s.session != nil && s.session.ID() == id {
		s.mu.Unlock()
		return fmt.Errorf("recording %s is in progress, stop it first", id)
	}
	if s.player != nil && s.player.RecordingID() == id {
		s.player.Stop()
		s.player = nil
	}
	s.mu.Unlock()

	if err := s.st.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// Import stores a WAV file as an upload record.
func (s *Service) Import(ctx context.Context, path string) (*bus.RecordingInfo, error) {
	if path == "" {
		return nil, errors.New("file path required")
	}
	rec, err := s.importer.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	info := recordInfo(rec, false)
	return &info, nil
}

// Recover runs a manual recovery pass. It is rejected while a capture is
// active: the session's chunks belong to a recording that is still being
// written, not to a crashed one.
func (s *Service) Recover(ctx context.Context) (*bus.RecoverInfo, error) {
	s.mu.Lock()
	active := s.session != nil
	s.mu.Unlock()
	if active {
		return nil, errors.New("recovery unavailable while a capture is active")
	}

	n, err := s.recovery.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &bus.RecoverInfo{Recovered: n}, nil
}

// Polish produces a transcript variant from a named prompt and stores it
// on the recording.
func (s *Service) Polish(ctx context.Context, id, promptName string) (*bus.PolishInfo, error) {
	if id == "" {
		return nil, errIDRequired
	}
	if promptName == "" {
		return nil, errors.New("prompt name required")
	}

	cfg := s.cfg.GetConfig()
	if !cfg.IsLLMEnabled() {
		return nil, errors.New("llm post-processing is disabled in config")
	}
	adapter, err := llm.NewAdapter(cfg.ToLLMConfig())
	if err != nil {
		return nil, err
	}
	text, err := llm.NewPolisher(s.st, adapter, cfg.LLM.Prompts, s.log).Polish(ctx, id, promptName)
	if err != nil {
		return nil, err
	}
	return &bus.PolishInfo{ID: id, Prompt: promptName, Variant: text}, nil
}

// Shutdown stops playback and finalizes the active session so buffered
// audio is flushed before the process exits.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sess := s.session
	player := s.player
	s.session = nil
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Stop()
	}
	if sess != nil {
		rec, err := sess.Stop(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("finalize recording during shutdown")
		}
		if rec != nil {
			go s.notif.RecordingStopped(rec.ID, rec.Duration)
		}
	}
}

func captureInfo(st record.Status) bus.CaptureInfo {
	return bus.CaptureInfo{
		ID:            st.ID,
		StartedAt:     st.StartedAt,
		ElapsedSecs:   time.Since(st.StartedAt).Seconds(),
		SampleRate:    st.SampleRate,
		SampleCount:   st.SampleCount,
		FlushedCount:  st.FlushedCount,
		ChunksWritten: st.ChunksWritten,
	}
}

func playInfo(st playback.Status) bus.PlayInfo {
	return bus.PlayInfo{
		RecordingID:  st.RecordingID,
		Playing:      st.Playing,
		Paused:       st.Paused,
		PositionSecs: st.PositionSecs,
		DurationSecs: st.DurationSecs,
		Chunk:        st.Chunk,
		ChunkCount:   st.ChunkCount,
	}
}

func recordInfo(r *store.Record, incomplete bool) bus.RecordingInfo {
	return bus.RecordingInfo{
		ID:                      r.ID,
		Source:                  string(r.Source),
		CreatedAt:               r.CreatedAt,
		DurationSecs:            r.Duration,
		SampleRate:              r.SampleRate,
		Channels:                r.Channels,
		SampleCount:             r.SampleCount,
		ChunkCount:              r.ChunkCount,
		Recovered:               r.Recovered,
		HasTranscript:           r.Transcript != "",
		IncompleteTranscription: incomplete,
	}
}

// liveRow presents the active session in listings before any recording
// row exists for it.
func liveRow(st record.Status) bus.RecordingInfo {
	var duration int64
	if st.SampleRate > 0 {
		duration = int64(st.SampleCount / st.SampleRate)
	}
	return bus.RecordingInfo{
		ID:           st.ID,
		Source:       string(store.SourceRecording),
		CreatedAt:    st.StartedAt,
		DurationSecs: duration,
		SampleRate:   st.SampleRate,
		Channels:     1,
		SampleCount:  int64(st.SampleCount),
		ChunkCount:   st.ChunksWritten,
		InProgress:   true,
	}
}

// mergeNewestFirst merges two lists that are each sorted newest first.
func mergeNewestFirst(a, b []*store.Record) []*store.Record {
	out := make([]*store.Record, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].CreatedAt.After(b[j].CreatedAt) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
