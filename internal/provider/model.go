package provider

// ModelType represents the type of a model
type ModelType int

const (
	Transcription ModelType = iota
	LLM
)

// Model represents a model with its metadata
type Model struct {
	ID                 string // unique identifier (e.g., "whisper-1", "gpt-4o-mini")
	Name               string // display name (e.g., "Whisper 1", "GPT-4o Mini")
	Description        string // short description
	Type               ModelType
	SupportedLanguages []string // explicit list of language codes
}

// SupportsLanguage returns true if the model supports the given language code.
// Auto-detect (empty string) is always supported.
func (m *Model) SupportsLanguage(code string) bool {
	if code == "" {
		return true
	}
	for _, supported := range m.SupportedLanguages {
		if supported == code {
			return true
		}
	}
	return false
}
