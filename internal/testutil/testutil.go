// Package testutil provides shared mocks and helpers for package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fernandocchaves/tabtalk/internal/capture"
)

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// RampSamples returns n samples ramping linearly from 0 toward 1
func RampSamples(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i) / float32(n)
	}
	return samples
}

// MockSource implements capture.Source for testing. It emits the
// configured frames, then keeps the channels open until stopped.
type MockSource struct {
	Frames     []capture.Frame
	Rate       int
	Chans      int
	StartError error

	mu      sync.Mutex
	stopCh  chan struct{}
	running atomic.Bool
}

// NewMockSource creates a mock source emitting the given sample slices
// as one frame each.
func NewMockSource(rate, channels int, frames ...[]float32) *MockSource {
	m := &MockSource{Rate: rate, Chans: channels}
	for _, samples := range frames {
		m.Frames = append(m.Frames, capture.Frame{Samples: samples, Timestamp: time.Now()})
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) (<-chan capture.Frame, <-chan error, error) {
	if m.StartError != nil {
		return nil, nil, m.StartError
	}

	m.mu.Lock()
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.running.Store(true)

	frameCh := make(chan capture.Frame, len(m.Frames)+1)
	errCh := make(chan error, 1)

	go func() {
		defer close(frameCh)
		defer close(errCh)

		for _, frame := range m.Frames {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case frameCh <- frame:
			}
		}

		// keep channel open until stopped
		select {
		case <-ctx.Done():
		case <-stopCh:
		}
	}()

	return frameCh, errCh, nil
}

func (m *MockSource) Stop() error {
	if !m.running.Load() {
		return nil
	}
	m.running.Store(false)

	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.mu.Unlock()
	return nil
}

func (m *MockSource) SampleRate() int { return m.Rate }

func (m *MockSource) Channels() int { return m.Chans }

func (m *MockSource) IsRunning() bool { return m.running.Load() }
