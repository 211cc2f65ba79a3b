package provider

import (
	"strings"

	"github.com/fernandocchaves/tabtalk/internal/language"
)

// OpenAIProvider implements Provider for OpenAI services
type OpenAIProvider struct{}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) RequiresAPIKey() bool {
	return true
}

func (p *OpenAIProvider) ValidateAPIKey(key string) bool {
	return strings.HasPrefix(key, "sk-")
}

func (p *OpenAIProvider) Models() []Model {
	allLangs := language.Codes()

	return []Model{
		// transcription models
		{
			ID:                 "gpt-4o-audio-preview",
			Name:               "GPT-4o Audio",
			Description:        "Audio-capable chat model, follows instructions and reports truncation",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "whisper-1",
			Name:               "Whisper 1",
			Description:        "OpenAI's production speech-to-text model",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "gpt-4o-transcribe",
			Name:               "GPT-4o Transcribe",
			Description:        "Highest accuracy speech-to-text",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "gpt-4o-mini-transcribe",
			Name:               "GPT-4o Mini Transcribe",
			Description:        "Fast and affordable speech-to-text",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		// LLM models
		{
			ID:                 "gpt-4o-mini",
			Name:               "GPT-4o Mini",
			Description:        "Fast and affordable GPT-4 variant",
			Type:               LLM,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "gpt-4o",
			Name:               "GPT-4o",
			Description:        "Most capable GPT-4 model",
			Type:               LLM,
			SupportedLanguages: allLangs,
		},
	}
}

func (p *OpenAIProvider) DefaultModel(t ModelType) string {
	switch t {
	case Transcription:
		return "gpt-4o-audio-preview"
	case LLM:
		return "gpt-4o-mini"
	}
	return ""
}
