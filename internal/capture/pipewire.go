package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

// PipeWireConfig configures the pw-record subprocess source. Capture is
// always 32-bit float little-endian; the chunk pipeline owns quantization.
type PipeWireConfig struct {
	SampleRate        int
	Channels          int
	Device            string // pw-record --target, empty for default
	BufferSize        int    // stdout read size in bytes
	ChannelBufferSize int    // frame channel capacity
}

// DefaultPipeWireConfig returns capture defaults.
func DefaultPipeWireConfig() PipeWireConfig {
	return PipeWireConfig{
		SampleRate:        48000,
		Channels:          1,
		BufferSize:        8192,
		ChannelBufferSize: 32,
	}
}

// PipeWire captures audio by running pw-record and reading raw f32le
// samples from its stdout.
type PipeWire struct {
	config PipeWireConfig
	log    zerolog.Logger

	capturing atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewPipeWire returns an idle pw-record source.
func NewPipeWire(config PipeWireConfig, log zerolog.Logger) *PipeWire {
	return &PipeWire{config: config, log: log}
}

func (p *PipeWire) SampleRate() int { return p.config.SampleRate }
func (p *PipeWire) Channels() int   { return p.config.Channels }

// Capturing reports whether a capture loop is running.
func (p *PipeWire) Capturing() bool { return p.capturing.Load() }

func (p *PipeWire) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if p.capturing.Load() {
		return nil, nil, fmt.Errorf("already capturing")
	}

	if err := p.validateConfig(); err != nil {
		return nil, nil, err
	}

	if err := CheckPipeWireAvailable(ctx); err != nil {
		return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan Frame, p.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.capturing.Store(true)
	p.wg.Add(1)
	go p.captureLoop(captureCtx, frameCh, errCh)

	return frameCh, errCh, nil
}

func (p *PipeWire) Stop() error {
	if !p.capturing.Load() {
		return nil
	}

	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until the capture loop has fully exited.
func (p *PipeWire) Wait() {
	p.wg.Wait()
}

func (p *PipeWire) captureLoop(ctx context.Context, frameCh chan<- Frame, errCh chan<- error) {
	defer func() {
		close(frameCh)
		close(errCh)
		p.capturing.Store(false)

		// Ensure any child process is reaped.
		p.mu.Lock()
		if p.cmd != nil {
			_ = p.cmd.Wait()
			p.cmd = nil
		}
		p.cancel = nil
		p.mu.Unlock()

		p.wg.Done()
	}()

	args := p.buildPwRecordArgs()
	cmd := exec.CommandContext(ctx, "pw-record", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.emitErr(errCh, fmt.Errorf("create stdout pipe: %w", err))
		p.requestCancel()
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.emitErr(errCh, fmt.Errorf("create stderr pipe: %w", err))
		p.requestCancel()
		return
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	if err := cmd.Start(); err != nil {
		p.emitErr(errCh, fmt.Errorf("start pw-record: %w", err))
		p.requestCancel()
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.log.Debug().Str("stream", "pw-record").Msg(scanner.Text())
		}
	}()

	buffer := make([]byte, p.config.BufferSize)
	var rem []byte // bytes left over from a read not aligned to sample size
	var droppedCount int
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			rem = append(rem, buffer[:n]...)
			aligned := len(rem) - len(rem)%4
			if aligned > 0 {
				samples, err := audio.DecodeFloat32(rem[:aligned])
				if err != nil {
					p.emitErr(errCh, fmt.Errorf("decode captured audio: %w", err))
					p.requestCancel()
					return
				}
				rem = append(rem[:0], rem[aligned:]...)

				frame := Frame{Samples: samples, Timestamp: time.Now()}
				select {
				case frameCh <- frame:
				case <-ctx.Done():
					return
				default:
					droppedCount++
					if time.Since(lastDropLog) > time.Second {
						p.log.Warn().Int("dropped", droppedCount).Msg("capture backpressure, dropping frames")
						lastDropLog = time.Now()
						droppedCount = 0
					}
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			p.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			p.requestCancel()
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *PipeWire) requestCancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *PipeWire) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
		// best-effort, never block the capture loop
	}
	p.log.Error().Err(err).Msg("capture error")
}

func (p *PipeWire) buildPwRecordArgs() []string {
	args := []string{
		"--format", "f32",
		"--rate", strconv.Itoa(p.config.SampleRate),
		"--channels", strconv.Itoa(p.config.Channels),
		"-", // stdout
	}
	if p.config.Device != "" {
		args = append(args, "--target", p.config.Device)
	}
	return args
}

// CheckPipeWireAvailable verifies pw-record exists and the PipeWire daemon
// answers.
func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-utils)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

func (p *PipeWire) validateConfig() error {
	if p.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", p.config.SampleRate)
	}
	if p.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", p.config.Channels)
	}
	if p.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", p.config.BufferSize)
	}
	if p.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", p.config.ChannelBufferSize)
	}
	return nil
}
