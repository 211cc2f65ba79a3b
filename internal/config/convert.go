package config

import (
	"os"
	"time"

	"github.com/fernandocchaves/tabtalk/internal/capture"
	"github.com/fernandocchaves/tabtalk/internal/language"
	"github.com/fernandocchaves/tabtalk/internal/llm"
	"github.com/fernandocchaves/tabtalk/internal/provider"
	"github.com/fernandocchaves/tabtalk/internal/transcribe"
)

func (c *Config) ToPipeWireConfig() capture.PipeWireConfig {
	pw := capture.DefaultPipeWireConfig()
	pw.SampleRate = c.Audio.SampleRate
	pw.Channels = c.Audio.Channels
	pw.Device = c.Audio.Device
	return pw
}

func (c *Config) ToWebsocketConfig() capture.WebsocketConfig {
	ws := capture.DefaultWebsocketConfig()
	ws.SampleRate = c.Audio.SampleRate
	ws.Channels = c.Audio.Channels
	return ws
}

// FlushInterval returns the chunk cadence. Zero disables timed flushes.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Recording.FlushIntervalSeconds) * time.Second
}

func (c *Config) ToTranscribeConfig() transcribe.Config {
	return transcribe.Config{
		Provider:    c.Transcription.Provider,
		APIKey:      c.resolveAPIKeyForProvider(c.Transcription.Provider),
		Model:       c.Transcription.Model,
		Language:    language.ToProviderFormat(c.Transcription.Language, c.Transcription.Provider),
		Instruction: c.Transcription.Instruction,
	}
}

func (c *Config) ToOrchestratorConfig() transcribe.OrchestratorConfig {
	return transcribe.OrchestratorConfig{
		SegmentSeconds: c.Transcription.SegmentSeconds,
		TargetRate:     c.Transcription.TargetSampleRate,
		MinInterval:    time.Duration(c.Transcription.MinRequestIntervalSeconds) * time.Second,
	}
}

// ToLLMConfig returns the polish adapter configuration
func (c *Config) ToLLMConfig() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.resolveAPIKeyForProvider(c.LLM.Provider),
		Model:    c.LLM.Model,
	}
}

// IsLLMEnabled returns true if transcript post-processing is enabled and configured
func (c *Config) IsLLMEnabled() bool {
	return c.LLM.Enabled && c.LLM.Provider != "" && c.LLM.Model != ""
}

// resolveAPIKeyForProvider returns the API key for a provider: the config
// file wins, the environment is the fallback.
func (c *Config) resolveAPIKeyForProvider(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}

	if envVar := provider.EnvVarForProvider(providerName); envVar != "" {
		return os.Getenv(envVar)
	}

	return ""
}
