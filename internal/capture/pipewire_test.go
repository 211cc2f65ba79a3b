package capture

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultPipeWireConfig(t *testing.T) {
	config := DefaultPipeWireConfig()

	if config.SampleRate != 48000 {
		t.Errorf("default sample rate should be 48000, got %d", config.SampleRate)
	}
	if config.Channels != 1 {
		t.Errorf("default channels should be 1, got %d", config.Channels)
	}
	if config.BufferSize != 8192 {
		t.Errorf("default buffer size should be 8192, got %d", config.BufferSize)
	}
	if config.Device != "" {
		t.Errorf("default device should be empty, got %s", config.Device)
	}
	if config.ChannelBufferSize != 32 {
		t.Errorf("default channel buffer size should be 32, got %d", config.ChannelBufferSize)
	}
}

func TestPipeWireValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      PipeWireConfig
		expectError bool
	}{
		{
			name:        "valid default config",
			config:      DefaultPipeWireConfig(),
			expectError: false,
		},
		{
			name:        "zero sample rate",
			config:      PipeWireConfig{SampleRate: 0, Channels: 1, BufferSize: 8192, ChannelBufferSize: 32},
			expectError: true,
		},
		{
			name:        "negative sample rate",
			config:      PipeWireConfig{SampleRate: -1, Channels: 1, BufferSize: 8192, ChannelBufferSize: 32},
			expectError: true,
		},
		{
			name:        "zero channels",
			config:      PipeWireConfig{SampleRate: 48000, Channels: 0, BufferSize: 8192, ChannelBufferSize: 32},
			expectError: true,
		},
		{
			name:        "zero buffer size",
			config:      PipeWireConfig{SampleRate: 48000, Channels: 1, BufferSize: 0, ChannelBufferSize: 32},
			expectError: true,
		},
		{
			name:        "zero channel buffer size",
			config:      PipeWireConfig{SampleRate: 48000, Channels: 1, BufferSize: 8192, ChannelBufferSize: 0},
			expectError: true,
		},
		{
			name:        "stereo config",
			config:      PipeWireConfig{SampleRate: 44100, Channels: 2, BufferSize: 4096, ChannelBufferSize: 16},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeWire(tt.config, zerolog.Nop())
			err := p.validateConfig()

			if tt.expectError && err == nil {
				t.Errorf("expected error for config %+v", tt.config)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for config %+v: %v", tt.config, err)
			}
		})
	}
}

func TestPipeWireBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		config   PipeWireConfig
		expected []string
	}{
		{
			name:   "default config",
			config: DefaultPipeWireConfig(),
			expected: []string{
				"--format", "f32",
				"--rate", "48000",
				"--channels", "1",
				"-",
			},
		},
		{
			name: "with device",
			config: PipeWireConfig{
				SampleRate:        44100,
				Channels:          2,
				Device:            "alsa_input.pci-0000_00_1f.3.analog-stereo",
				BufferSize:        4096,
				ChannelBufferSize: 16,
			},
			expected: []string{
				"--format", "f32",
				"--rate", "44100",
				"--channels", "2",
				"-",
				"--target", "alsa_input.pci-0000_00_1f.3.analog-stereo",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeWire(tt.config, zerolog.Nop())
			args := p.buildPwRecordArgs()

			if len(args) != len(tt.expected) {
				t.Fatalf("args length mismatch: got %v, expected %v", args, tt.expected)
			}
			for i, arg := range args {
				if arg != tt.expected[i] {
					t.Errorf("arg[%d] mismatch: got %q, expected %q", i, arg, tt.expected[i])
				}
			}
		})
	}
}

func TestPipeWireLifecycle(t *testing.T) {
	p := NewPipeWire(DefaultPipeWireConfig(), zerolog.Nop())

	t.Run("initial state", func(t *testing.T) {
		if p.Capturing() {
			t.Error("source should not be capturing initially")
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		if err := p.Stop(); err != nil {
			t.Errorf("stop should not error when idle: %v", err)
		}
	})

	t.Run("double start rejected", func(t *testing.T) {
		p.capturing.Store(true)
		defer p.capturing.Store(false)

		_, _, err := p.Start(context.Background())
		if err == nil {
			t.Error("Start should error when already capturing")
		}
	})
}

func TestPipeWireRejectsInvalidConfigOnStart(t *testing.T) {
	p := NewPipeWire(PipeWireConfig{SampleRate: -1}, zerolog.Nop())
	if _, _, err := p.Start(context.Background()); err == nil {
		t.Error("Start should error with invalid config")
	}
}
