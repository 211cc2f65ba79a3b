package config

import (
	"fmt"

	"github.com/fernandocchaves/tabtalk/internal/language"
	"github.com/fernandocchaves/tabtalk/internal/provider"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "fatal": true, "panic": true,
}

func (c *Config) Validate() error {
	switch c.Audio.Source {
	case "pipewire", "websocket":
	default:
		return fmt.Errorf("invalid audio.source: %s (must be pipewire or websocket)", c.Audio.Source)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid audio.sample_rate: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("invalid audio.channels: %d", c.Audio.Channels)
	}
	if c.Audio.Source == "websocket" && !c.Server.Enabled {
		return fmt.Errorf("audio.source = websocket requires server.enabled = true (frames arrive on the /ingest endpoint)")
	}

	if c.Recording.FlushIntervalSeconds < 0 {
		return fmt.Errorf("invalid recording.flush_interval_seconds: %d", c.Recording.FlushIntervalSeconds)
	}

	if c.Transcription.Provider == "" {
		return fmt.Errorf("invalid transcription.provider: empty")
	}
	p := provider.GetProvider(c.Transcription.Provider)
	if p == nil {
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai, groq, or deepgram)", c.Transcription.Provider)
	}

	apiKey := c.resolveAPIKeyForProvider(c.Transcription.Provider)
	if apiKey == "" {
		envVar := provider.EnvVarForProvider(c.Transcription.Provider)
		return fmt.Errorf("%s API key required: not found in config (providers.%s.api_key) or environment variable (%s)",
			c.Transcription.Provider, c.Transcription.Provider, envVar)
	}

	if !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	// groq and deepgram serve closed catalogs; openai accepts models we
	// have not listed yet
	if c.Transcription.Provider != provider.ProviderOpenAI {
		if err := provider.ValidateModelLanguage(c.Transcription.Provider, c.Transcription.Model, c.Transcription.Language); err != nil {
			return fmt.Errorf("invalid transcription.model: %w", err)
		}
	}

	if c.Transcription.SegmentSeconds <= 0 {
		return fmt.Errorf("invalid transcription.segment_seconds: %d", c.Transcription.SegmentSeconds)
	}
	if c.Transcription.TargetSampleRate < 0 {
		return fmt.Errorf("invalid transcription.target_sample_rate: %d", c.Transcription.TargetSampleRate)
	}
	if c.Transcription.MinRequestIntervalSeconds < 0 {
		return fmt.Errorf("invalid transcription.min_request_interval_seconds: %d", c.Transcription.MinRequestIntervalSeconds)
	}

	if c.LLM.Enabled {
		if c.LLM.Provider == "" {
			return fmt.Errorf("llm.provider required when llm.enabled = true")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model required when llm.enabled = true")
		}

		validLLMProviders := map[string]bool{provider.ProviderOpenAI: true, provider.ProviderGroq: true}
		if !validLLMProviders[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider: %s (must be openai or groq)", c.LLM.Provider)
		}

		if c.resolveAPIKeyForProvider(c.LLM.Provider) == "" {
			envVar := provider.EnvVarForProvider(c.LLM.Provider)
			return fmt.Errorf("%s API key required for LLM: not found in config (providers.%s.api_key) or environment variable (%s)",
				c.LLM.Provider, c.LLM.Provider, envVar)
		}
	}

	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("invalid server.listen: empty (required when server.enabled = true)")
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be trace, debug, info, warn, error, fatal, or panic)", c.Log.Level)
	}

	return nil
}
