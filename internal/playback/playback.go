// Package playback reconstructs continuous play, pause and seek semantics
// over the discrete stored chunks of one recording. A Player is an owned,
// swappable handle; the daemon replaces it to play something else.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
	"github.com/fernandocchaves/tabtalk/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("playback already started")
	ErrNotPlaying     = errors.New("nothing is playing")
)

// seekEpsilon keeps in-chunk seek targets short of the chunk end to avoid
// end-of-media edge cases. Tuning constant, 10ms.
const seekEpsilonSecs = 0.010

// ChunkCatalog is the subset of the record store playback reads from.
type ChunkCatalog interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	ChunksByParent(ctx context.Context, parentID string) ([]*store.Record, error)
}

// Status is a snapshot of playback state for status and position queries.
type Status struct {
	RecordingID  string  `json:"recording_id"`
	Playing      bool    `json:"playing"`
	Paused       bool    `json:"paused"`
	PositionSecs float64 `json:"position_secs"`
	DurationSecs float64 `json:"duration_secs"`
	Chunk        int     `json:"chunk"`
	ChunkCount   int     `json:"chunk_count"`
}

type playerPhase int

const (
	playerIdle playerPhase = iota
	playerPlaying
	playerPaused
	playerDone
)

// track is one playable unit: a chunk row, or the single payload of an
// upload record.
type track struct {
	id       string
	frames   int64 // per-channel samples, 0 when the row carries no count
	rate     int
	channels int
}

// loadedChunk is a track's decoded payload being streamed to the sink.
type loadedChunk struct {
	index    int
	pcm      []byte
	rate     int
	channels int
	pos      int // frames already handed to the sink
}

func (c *loadedChunk) bytesPerFrame() int {
	return audio.BytesPerSample * c.channels
}

func (c *loadedChunk) exhausted() bool {
	return c.pos*c.bytesPerFrame() >= len(c.pcm)
}

// Player streams one recording to a Sink. Position reflects samples handed
// to the sink, which may run slightly ahead of audible output by the sink's
// buffer depth.
type Player struct {
	cat      ChunkCatalog
	sink     Sink
	id       string
	estimate float64 // seconds assumed per track until its duration is known
	log      zerolog.Logger

	mu        sync.Mutex
	phase     playerPhase
	tracks    []track
	durations []float64
	measured  []bool
	chunk     int
	offset    int // frames played within the current chunk
	rate      int // sample rate of the current chunk
	sinkOn    bool
	sinkRate  int
	resumeCh  chan struct{} // non-nil while paused, closed to resume
	pending   *loadedChunk  // seek target waiting for the loop to pick up
	cancel    context.CancelFunc

	done chan struct{}
}

// NewPlayer prepares a player for one recording or upload. estimateSecs is
// the assumed duration of a chunk whose sample count is unknown, refined to
// the measured value as the chunk loads.
func NewPlayer(cat ChunkCatalog, sink Sink, recordingID string, estimateSecs float64, log zerolog.Logger) *Player {
	if estimateSecs <= 0 {
		estimateSecs = 60
	}
	return &Player{
		cat:      cat,
		sink:     sink,
		id:       recordingID,
		estimate: estimateSecs,
		log:      log.With().Str("recording_id", recordingID).Logger(),
		done:     make(chan struct{}),
	}
}

// RecordingID returns the id this player was built for.
func (p *Player) RecordingID() string { return p.id }

// Start begins sequential playback from the first chunk. The playback loop
// outlives the request that started it; use Stop to end it early.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.phase != playerIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.mu.Unlock()

	tracks, err := p.prepare(ctx)
	if err != nil {
		if cerr := p.sink.Close(); cerr != nil {
			p.log.Warn().Err(cerr).Msg("close playback sink")
		}
		return err
	}

	p.mu.Lock()
	if p.phase != playerIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.tracks = tracks
	p.durations = make([]float64, len(tracks))
	p.measured = make([]bool, len(tracks))
	for i, tr := range tracks {
		if tr.frames > 0 && tr.rate > 0 {
			p.durations[i] = float64(tr.frames) / float64(tr.rate)
			p.measured[i] = true
		} else {
			p.durations[i] = p.estimate
		}
	}
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.phase = playerPlaying
	p.mu.Unlock()

	p.log.Debug().Int("chunks", len(tracks)).Msg("playback started")
	go p.loop(runCtx)
	return nil
}

// Pause halts playback at the current position. Idempotent while paused.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case playerPlaying:
		p.resumeCh = make(chan struct{})
		p.phase = playerPaused
		return nil
	case playerPaused:
		return nil
	default:
		return ErrNotPlaying
	}
}

// Resume continues a paused player. Idempotent while playing.
func (p *Player) Resume() error {
	p.mu.Lock()
	switch p.phase {
	case playerPaused:
		ch := p.resumeCh
		p.resumeCh = nil
		p.phase = playerPlaying
		p.mu.Unlock()
		close(ch)
		return nil
	case playerPlaying:
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
		return ErrNotPlaying
	}
}

// Seek jumps to an absolute position in seconds and resumes playback. The
// target chunk is always loaded fresh; its measured duration replaces any
// estimate before the in-chunk offset is clamped to [0, duration-epsilon].
func (p *Player) Seek(ctx context.Context, seconds float64) error {
	p.mu.Lock()
	if p.phase != playerPlaying && p.phase != playerPaused {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	if seconds < 0 {
		seconds = 0
	}
	target, within := 0, seconds
	for i, d := range p.durations {
		target = i
		if within < d || i == len(p.durations)-1 {
			break
		}
		within -= d
	}
	tr := p.tracks[target]
	sinkOn, sinkRate := p.sinkOn, p.sinkRate
	p.mu.Unlock()

	pcm, rate, channels, err := p.loadTrack(ctx, tr, sinkOn, sinkRate)
	if err != nil {
		return fmt.Errorf("seek to chunk %d: %w", target, err)
	}
	frames := len(pcm) / (audio.BytesPerSample * channels)

	offset := int(within * float64(rate))
	maxOffset := frames - int(seekEpsilonSecs*float64(rate))
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}

	p.mu.Lock()
	if p.phase != playerPlaying && p.phase != playerPaused {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	p.durations[target] = float64(frames) / float64(rate)
	p.measured[target] = true
	p.pending = &loadedChunk{index: target, pcm: pcm, rate: rate, channels: channels, pos: offset}
	p.chunk = target
	p.offset = offset
	p.rate = rate
	resume := p.resumeCh
	p.resumeCh = nil
	p.phase = playerPlaying
	p.mu.Unlock()

	if resume != nil {
		close(resume)
	}
	p.log.Debug().Float64("seconds", seconds).Int("chunk", target).Msg("seek applied")
	return nil
}

// Stop ends playback and waits for the loop to exit. Safe to call more
// than once and on a player that never started.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.phase == playerIdle {
		p.phase = playerDone
		p.mu.Unlock()
		if err := p.sink.Close(); err != nil {
			p.log.Warn().Err(err).Msg("close playback sink")
		}
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-p.done
}

// Position reports the current playback snapshot. Elapsed time is the sum
// of known durations of prior chunks plus the offset within the current
// one, so it tightens as estimates are replaced by measurements.
func (p *Player) Position() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	var elapsed, total float64
	for i, d := range p.durations {
		if i < p.chunk {
			elapsed += d
		}
		total += d
	}
	if p.chunk < len(p.durations) && p.rate > 0 {
		elapsed += float64(p.offset) / float64(p.rate)
	}

	return Status{
		RecordingID:  p.id,
		Playing:      p.phase == playerPlaying,
		Paused:       p.phase == playerPaused,
		PositionSecs: elapsed,
		DurationSecs: total,
		Chunk:        p.chunk,
		ChunkCount:   len(p.tracks),
	}
}

// prepare resolves the list of playable tracks: the recording's chunks, or
// the record's own payload when it has no chunks (uploads).
func (p *Player) prepare(ctx context.Context) ([]track, error) {
	chunks, err := p.cat.ChunksByParent(ctx, p.id)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) > 0 {
		tracks := make([]track, len(chunks))
		for i, c := range chunks {
			tracks[i] = track{id: c.ID, frames: c.SampleCount, rate: c.SampleRate, channels: normChannels(c.Channels)}
		}
		return tracks, nil
	}

	rec, err := p.cat.Get(ctx, p.id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if !rec.Payload.Valid() {
		return nil, fmt.Errorf("record %s has no audio to play", p.id)
	}
	return []track{{id: rec.ID, frames: rec.SampleCount, rate: rec.SampleRate, channels: normChannels(rec.Channels)}}, nil
}

// loadTrack reads one track's payload as PCM16 bytes, resampling to the
// sink's rate when the sink is already running at a different one.
func (p *Player) loadTrack(ctx context.Context, tr track, sinkOn bool, sinkRate int) (pcm []byte, rate, channels int, err error) {
	rec, err := p.cat.Get(ctx, tr.id)
	if err != nil {
		return nil, 0, 0, err
	}

	rate = rec.SampleRate
	channels = normChannels(rec.Channels)
	if rate <= 0 {
		return nil, 0, 0, fmt.Errorf("record %s has no sample rate", tr.id)
	}

	if rec.Payload.Format == audio.FormatPCM16 && (!sinkOn || rate == sinkRate) {
		return rec.Payload.Data, rate, channels, nil
	}

	samples, err := rec.Payload.Samples()
	if err != nil {
		return nil, 0, 0, err
	}
	if sinkOn && rate != sinkRate {
		samples = audio.Resample(samples, rate, sinkRate)
		rate = sinkRate
	}
	return audio.EncodePCM16(samples), rate, channels, nil
}

var errPastEnd = errors.New("past last chunk")

func (p *Player) loop(ctx context.Context) {
	defer func() {
		if err := p.sink.Close(); err != nil && ctx.Err() == nil {
			p.log.Warn().Err(err).Msg("close playback sink")
		}
		p.mu.Lock()
		p.phase = playerDone
		p.mu.Unlock()
		close(p.done)
	}()

	var cur *loadedChunk
	for {
		if err := p.gate(ctx); err != nil {
			return
		}
		if req := p.takeSeek(); req != nil {
			cur = req
		}
		if cur == nil {
			next, err := p.loadNext(ctx)
			if errors.Is(err, errPastEnd) {
				p.log.Debug().Msg("playback finished")
				return
			}
			if err != nil {
				p.log.Error().Err(err).Msg("playback halted")
				return
			}
			cur = next
		}

		if err := p.writeBlock(ctx, cur); err != nil {
			if ctx.Err() == nil {
				p.log.Error().Err(err).Msg("playback halted")
			}
			return
		}
		if cur.exhausted() {
			p.advance(cur)
			cur = nil
		}
	}
}

// gate parks the loop while paused and reports context cancellation.
func (p *Player) gate(ctx context.Context) error {
	p.mu.Lock()
	ch := p.resumeCh
	p.mu.Unlock()
	if ch == nil {
		return ctx.Err()
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) takeSeek() *loadedChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	req := p.pending
	p.pending = nil
	return req
}

// loadNext loads the current chunk index and records its measured duration.
func (p *Player) loadNext(ctx context.Context) (*loadedChunk, error) {
	p.mu.Lock()
	idx := p.chunk
	if idx >= len(p.tracks) {
		p.mu.Unlock()
		return nil, errPastEnd
	}
	tr := p.tracks[idx]
	sinkOn, sinkRate := p.sinkOn, p.sinkRate
	p.mu.Unlock()

	pcm, rate, channels, err := p.loadTrack(ctx, tr, sinkOn, sinkRate)
	if err != nil {
		return nil, fmt.Errorf("load chunk %d: %w", idx, err)
	}
	frames := len(pcm) / (audio.BytesPerSample * channels)

	p.mu.Lock()
	if p.pending == nil && p.chunk == idx {
		p.durations[idx] = float64(frames) / float64(rate)
		p.measured[idx] = true
		p.rate = rate
	}
	p.mu.Unlock()

	return &loadedChunk{index: idx, pcm: pcm, rate: rate, channels: channels}, nil
}

// writeBlock streams the next 100ms of the chunk. The block size bounds
// how long pause and seek wait for the loop to react.
func (p *Player) writeBlock(ctx context.Context, cur *loadedChunk) error {
	if err := p.ensureSink(ctx, cur); err != nil {
		return err
	}

	bpf := cur.bytesPerFrame()
	blockFrames := cur.rate / 10
	if blockFrames < 1 {
		blockFrames = 1
	}
	start := cur.pos * bpf
	end := start + blockFrames*bpf
	if end > len(cur.pcm) {
		end = len(cur.pcm)
	}
	if start >= end {
		return nil
	}

	if err := p.sink.Write(cur.pcm[start:end]); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sink write: %w", err)
	}
	cur.pos += (end - start) / bpf

	p.mu.Lock()
	// a seek may have retargeted the player while this block was writing
	if p.pending == nil && p.chunk == cur.index {
		p.offset = cur.pos
	}
	p.mu.Unlock()
	return nil
}

func (p *Player) advance(cur *loadedChunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil || p.chunk != cur.index {
		return
	}
	p.chunk++
	p.offset = 0
}

func (p *Player) ensureSink(ctx context.Context, cur *loadedChunk) error {
	p.mu.Lock()
	on := p.sinkOn
	p.mu.Unlock()
	if on {
		return nil
	}
	if err := p.sink.Start(ctx, cur.rate, cur.channels); err != nil {
		return fmt.Errorf("start playback sink: %w", err)
	}
	p.mu.Lock()
	p.sinkOn = true
	p.sinkRate = cur.rate
	p.mu.Unlock()
	return nil
}

func normChannels(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
