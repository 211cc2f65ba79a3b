package config

import (
	"github.com/BurntSushi/toml"

	"github.com/fernandocchaves/tabtalk/internal/provider"
)

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Source:     "pipewire",
			SampleRate: 48000,
			Channels:   1,
			Device:     "",
		},
		Recording: RecordingConfig{
			FlushIntervalSeconds: 60,
		},
		Transcription: TranscriptionConfig{
			Provider:                  provider.ProviderOpenAI,
			Model:                     "gpt-4o-audio-preview",
			Language:                  "",
			SegmentSeconds:            60,
			TargetSampleRate:          16000,
			MinRequestIntervalSeconds: 5,
			Instruction:               "Transcribe the audio verbatim.",
		},
		Providers: make(map[string]ProviderConfig),
		LLM: LLMConfig{
			Enabled:  false,
			Provider: provider.ProviderOpenAI,
			Model:    "gpt-4o-mini",
		},
		Playback: PlaybackConfig{},
		Server: ServerConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8844",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// applyDefaults fills fields a partial config file left unset. Metadata
// distinguishes an absent key from an explicit zero where zero means
// something (disabled flush timer, no rate floor, opt-out booleans).
func (c *Config) applyDefaults(meta toml.MetaData) {
	def := DefaultConfig()

	if c.Audio.Source == "" {
		c.Audio.Source = def.Audio.Source
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = def.Audio.Channels
	}

	if !meta.IsDefined("recording", "flush_interval_seconds") {
		c.Recording.FlushIntervalSeconds = def.Recording.FlushIntervalSeconds
	}

	if c.Transcription.Provider == "" {
		c.Transcription.Provider = def.Transcription.Provider
	}
	if c.Transcription.Model == "" {
		if p := provider.GetProvider(c.Transcription.Provider); p != nil {
			c.Transcription.Model = p.DefaultModel(provider.Transcription)
		}
	}
	if c.Transcription.SegmentSeconds == 0 {
		c.Transcription.SegmentSeconds = def.Transcription.SegmentSeconds
	}
	if !meta.IsDefined("transcription", "target_sample_rate") {
		c.Transcription.TargetSampleRate = def.Transcription.TargetSampleRate
	}
	if !meta.IsDefined("transcription", "min_request_interval_seconds") {
		c.Transcription.MinRequestIntervalSeconds = def.Transcription.MinRequestIntervalSeconds
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}

	if c.LLM.Enabled {
		if c.LLM.Provider == "" {
			c.LLM.Provider = def.LLM.Provider
		}
		if c.LLM.Model == "" {
			if p := provider.GetProvider(c.LLM.Provider); p != nil {
				c.LLM.Model = p.DefaultModel(provider.LLM)
			}
		}
	}

	if !meta.IsDefined("server", "enabled") {
		c.Server.Enabled = def.Server.Enabled
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}

	if !meta.IsDefined("notifications", "enabled") {
		c.Notifications.Enabled = def.Notifications.Enabled
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if !meta.IsDefined("log", "pretty") {
		c.Log.Pretty = def.Log.Pretty
	}
}
