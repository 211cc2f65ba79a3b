package provider

import (
	"strings"

	"github.com/fernandocchaves/tabtalk/internal/language"
)

// GroqProvider implements Provider for Groq services
type GroqProvider struct{}

func (p *GroqProvider) Name() string {
	return "groq"
}

func (p *GroqProvider) RequiresAPIKey() bool {
	return true
}

func (p *GroqProvider) ValidateAPIKey(key string) bool {
	return strings.HasPrefix(key, "gsk_")
}

func (p *GroqProvider) Models() []Model {
	allLangs := language.Codes()

	return []Model{
		// transcription models
		{
			ID:                 "whisper-large-v3-turbo",
			Name:               "Whisper Large v3 Turbo",
			Description:        "Fast multilingual transcription",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "whisper-large-v3",
			Name:               "Whisper Large v3",
			Description:        "Highest accuracy multilingual transcription",
			Type:               Transcription,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "distil-whisper-large-v3-en",
			Name:               "Distil Whisper (English)",
			Description:        "Fastest, English only",
			Type:               Transcription,
			SupportedLanguages: []string{"en"},
		},
		// LLM models
		{
			ID:                 "llama-3.3-70b-versatile",
			Name:               "Llama 3.3 70B",
			Description:        "Most capable Llama model on Groq",
			Type:               LLM,
			SupportedLanguages: allLangs,
		},
		{
			ID:                 "llama-3.1-8b-instant",
			Name:               "Llama 3.1 8B",
			Description:        "Fastest Llama model on Groq",
			Type:               LLM,
			SupportedLanguages: allLangs,
		},
	}
}

func (p *GroqProvider) DefaultModel(t ModelType) string {
	switch t {
	case Transcription:
		return "whisper-large-v3-turbo"
	case LLM:
		return "llama-3.3-70b-versatile"
	}
	return ""
}
