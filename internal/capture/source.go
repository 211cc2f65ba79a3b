// Package capture provides audio capture sources. A source emits a
// continuous stream of float frames at a fixed sample rate and channel
// count; everything downstream (buffering, chunking, persistence) is
// format-agnostic.
package capture

import (
	"context"
	"time"
)

// Frame is one batch of captured samples, interleaved when multi-channel.
type Frame struct {
	Samples   []float32
	Timestamp time.Time
}

// Source produces audio frames between Start and Stop. Implementations
// close both channels when capture ends, after draining pending frames.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, <-chan error, error)
	Stop() error
	SampleRate() int
	Channels() int
}
