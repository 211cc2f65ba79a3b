// Package provider is the catalog of supported speech-to-text and LLM
// services: which models each serves, their API key shapes, and defaults
// used by configuration and the configure wizard.
package provider

import "fmt"

// Provider describes one external service.
type Provider interface {
	Name() string
	RequiresAPIKey() bool
	ValidateAPIKey(key string) bool
	Models() []Model
	DefaultModel(t ModelType) string
}

var registry = make(map[string]Provider)

func init() {
	Register(&OpenAIProvider{})
	Register(&GroqProvider{})
	Register(&DeepgramProvider{})
}

// Register adds a provider to the registry
func Register(p Provider) {
	registry[p.Name()] = p
}

// GetProvider returns a provider by name, or nil if not found
func GetProvider(name string) Provider {
	return registry[name]
}

// ListProviders returns all registered provider names
func ListProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ListProvidersWithTranscription returns providers that serve transcription models
func ListProvidersWithTranscription() []string {
	var names []string
	for name, p := range registry {
		if len(ModelsOfType(p, Transcription)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// ListProvidersWithLLM returns providers that serve LLM models
func ListProvidersWithLLM() []string {
	var names []string
	for name, p := range registry {
		if len(ModelsOfType(p, LLM)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// ModelsOfType returns the provider's models of the given type
func ModelsOfType(p Provider, t ModelType) []Model {
	var models []Model
	for _, m := range p.Models() {
		if m.Type == t {
			models = append(models, m)
		}
	}
	return models
}

// ModelsForLanguage returns the provider's models of the given type that
// support the language code. Auto (empty) matches every model.
func ModelsForLanguage(p Provider, t ModelType, code string) []Model {
	var models []Model
	for _, m := range ModelsOfType(p, t) {
		if m.SupportsLanguage(code) {
			models = append(models, m)
		}
	}
	return models
}

// GetModel returns model metadata by provider and model ID
func GetModel(providerName, modelID string) (*Model, error) {
	p := GetProvider(providerName)
	if p == nil {
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
	for _, m := range p.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("unknown model %q for provider %s", modelID, providerName)
}

// ValidateModelLanguage checks that the model exists and supports the
// language code.
func ValidateModelLanguage(providerName, modelID, code string) error {
	m, err := GetModel(providerName, modelID)
	if err != nil {
		return err
	}
	if !m.SupportsLanguage(code) {
		return fmt.Errorf("model %s does not support language %q", modelID, code)
	}
	return nil
}
