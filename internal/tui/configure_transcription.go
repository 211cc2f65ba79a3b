package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/language"
	"github.com/fernandocchaves/tabtalk/internal/provider"
)

// editTranscription handles the transcription section edit with smart provider detection
func editTranscription(cfg *config.Config, configuredProviders []string) ([]string, error) {
	var transcriptionOptions []huh.Option[string]
	configured := make(map[string]bool)
	for _, name := range configuredProviders {
		configured[name] = true
	}

	for _, name := range AllProviders {
		p := provider.GetProvider(name)
		if p == nil || len(provider.ModelsOfType(p, provider.Transcription)) == 0 {
			continue
		}
		label := getProviderDisplayName(name)
		if !configured[name] {
			label += " (not configured)"
		}
		transcriptionOptions = append(transcriptionOptions, huh.NewOption(label, name))
	}

	if len(transcriptionOptions) == 0 {
		return configuredProviders, fmt.Errorf("no transcription providers available")
	}

	selectedProvider := cfg.Transcription.Provider
	if selectedProvider == "" {
		selectedProvider = transcriptionOptions[0].Value
	}

	providerDesc := "Choose which service to use for speech-to-text"
	if cfg.Transcription.Provider != "" {
		providerDesc = fmt.Sprintf("Currently: %s/%s", cfg.Transcription.Provider, cfg.Transcription.Model)
	}

	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription Provider").
				Description(providerDesc).
				Options(transcriptionOptions...).
				Value(&selectedProvider),
		),
	).WithTheme(getTheme())

	if err := providerForm.Run(); err != nil {
		return configuredProviders, err
	}

	configuredProviders = ensureProviderConfigured(cfg, selectedProvider, configuredProviders)
	cfg.Transcription.Provider = selectedProvider

	lang := cfg.Transcription.Language

	modelOptions := getTranscriptionModelOptions(selectedProvider, lang)
	selectedModel := cfg.Transcription.Model
	if selectedModel == "" && len(modelOptions) > 0 {
		selectedModel = modelOptions[0].Value
	}

	modelDesc := ""
	if cfg.Transcription.Model != "" {
		modelDesc = fmt.Sprintf("Currently: %s", cfg.Transcription.Model)
	}

	langDesc := "ISO-639-1 code (e.g., 'en', 'es', 'fr') or empty for auto-detect"
	if lang != "" {
		langDesc = fmt.Sprintf("Currently: %s. %s", lang, langDesc)
	}

	modelForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription Model").
				Description(modelDesc).
				Options(modelOptions...).
				Value(&selectedModel),
			huh.NewInput().
				Title("Language").
				Description(langDesc).
				Placeholder("auto-detect").
				Value(&lang).
				Validate(func(s string) error {
					if !language.IsValidCode(s) {
						return fmt.Errorf("unknown language code %q", s)
					}
					return nil
				}),
		),
	).WithTheme(getTheme())

	if err := modelForm.Run(); err != nil {
		return configuredProviders, err
	}

	cfg.Transcription.Model = selectedModel
	cfg.Transcription.Language = lang

	if err := editSegmentation(cfg); err != nil {
		return configuredProviders, err
	}

	return configuredProviders, nil
}

// editSegmentation edits the chunked-transcription parameters: how long
// each segment is, how fast requests may follow each other, and what the
// service is told to do.
func editSegmentation(cfg *config.Config) error {
	segmentSecs := strconv.Itoa(cfg.Transcription.SegmentSeconds)
	intervalSecs := strconv.Itoa(cfg.Transcription.MinRequestIntervalSeconds)
	instruction := cfg.Transcription.Instruction

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Segment Length (seconds)").
				Description("Recordings are transcribed in segments of this length").
				Value(&segmentSecs).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Minimum Request Interval (seconds)").
				Description("Floor between consecutive transcription requests (provider rate limit)").
				Value(&intervalSecs).
				Validate(validateNonNegativeInt),
			huh.NewInput().
				Title("Instruction").
				Description("Sent to the service with every segment").
				Value(&instruction),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Transcription.SegmentSeconds, _ = strconv.Atoi(segmentSecs)
	cfg.Transcription.MinRequestIntervalSeconds, _ = strconv.Atoi(intervalSecs)
	cfg.Transcription.Instruction = instruction
	return nil
}

// getTranscriptionModelOptions builds the model menu for a provider from
// the registry, filtered to models that support the selected language.
func getTranscriptionModelOptions(providerName, lang string) []huh.Option[string] {
	p := provider.GetProvider(providerName)
	if p == nil {
		return nil
	}

	models := provider.ModelsForLanguage(p, provider.Transcription, lang)
	options := make([]huh.Option[string], 0, len(models))
	for _, m := range models {
		label := m.ID
		if m.Description != "" {
			label = fmt.Sprintf("%s - %s", m.ID, m.Description)
		}
		options = append(options, huh.NewOption(label, m.ID))
	}
	return options
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive whole number")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be zero or a positive whole number")
	}
	return nil
}
