package playback

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Sink consumes a PCM16 little-endian stream at a fixed rate. Write is
// expected to block at roughly playback speed once the sink's buffer is
// full; that backpressure is the player's pacing.
type Sink interface {
	Start(ctx context.Context, sampleRate, channels int) error
	Write(pcm []byte) error
	Close() error
}

// PipeWireSink plays audio by piping samples into a pw-cat subprocess.
type PipeWireSink struct {
	device string
	log    zerolog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewPipeWireSink returns an idle pw-cat sink. device is the PipeWire
// target, empty for the default output.
func NewPipeWireSink(device string, log zerolog.Logger) *PipeWireSink {
	return &PipeWireSink{device: device, log: log}
}

func (s *PipeWireSink) Start(ctx context.Context, sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return fmt.Errorf("sink already started")
	}
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid stream format: rate %d, channels %d", sampleRate, channels)
	}
	if _, err := exec.LookPath("pw-cat"); err != nil {
		return fmt.Errorf("pw-cat not found: %w (install pipewire-utils)", err)
	}

	args := []string{
		"--playback",
		"--format", "s16",
		"--rate", strconv.Itoa(sampleRate),
		"--channels", strconv.Itoa(channels),
	}
	if s.device != "" {
		args = append(args, "--target", s.device)
	}
	args = append(args, "-") // stdin

	cmd := exec.CommandContext(ctx, "pw-cat", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pw-cat: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.Debug().Str("stream", "pw-cat").Msg(scanner.Text())
		}
	}()

	s.cmd = cmd
	s.stdin = stdin
	return nil
}

func (s *PipeWireSink) Write(pcm []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("sink not started")
	}
	if _, err := stdin.Write(pcm); err != nil {
		return fmt.Errorf("write to pw-cat: %w", err)
	}
	return nil
}

// Close ends the stream and reaps the subprocess. pw-cat drains whatever
// it has buffered before exiting.
func (s *PipeWireSink) Close() error {
	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	s.cmd = nil
	s.stdin = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("pw-cat exited: %w", err)
	}
	return nil
}
