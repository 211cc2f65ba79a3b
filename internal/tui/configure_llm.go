package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/fernandocchaves/tabtalk/internal/config"
	"github.com/fernandocchaves/tabtalk/internal/provider"
)

// editLLM configures transcript post-processing: whether it runs at all,
// and which chat model rewrites transcripts. Prompt names and texts live
// in the [llm.prompts] config table.
func editLLM(cfg *config.Config, configuredProviders []string) ([]string, error) {
	enabled := cfg.LLM.Enabled

	desc := "Produce cleaned-up or summarized transcript variants on demand"
	if cfg.LLM.Enabled {
		desc = fmt.Sprintf("Currently: enabled (%s/%s). %s", cfg.LLM.Provider, cfg.LLM.Model, desc)
	} else {
		desc = "Currently: disabled. " + desc
	}

	enableForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable transcript post-processing?").
				Description(desc).
				Value(&enabled),
		),
	).WithTheme(getTheme())

	if err := enableForm.Run(); err != nil {
		return configuredProviders, err
	}

	cfg.LLM.Enabled = enabled
	if !enabled {
		return configuredProviders, nil
	}

	var providerOptions []huh.Option[string]
	configured := make(map[string]bool)
	for _, name := range configuredProviders {
		configured[name] = true
	}
	for _, name := range provider.ListProvidersWithLLM() {
		label := getProviderDisplayName(name)
		if !configured[name] {
			label += " (not configured)"
		}
		providerOptions = append(providerOptions, huh.NewOption(label, name))
	}
	if len(providerOptions) == 0 {
		return configuredProviders, fmt.Errorf("no LLM providers available")
	}

	selectedProvider := cfg.LLM.Provider
	if selectedProvider == "" {
		selectedProvider = providerOptions[0].Value
	}

	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Post-Processing Provider").
				Options(providerOptions...).
				Value(&selectedProvider),
		),
	).WithTheme(getTheme())

	if err := providerForm.Run(); err != nil {
		return configuredProviders, err
	}

	configuredProviders = ensureProviderConfigured(cfg, selectedProvider, configuredProviders)
	cfg.LLM.Provider = selectedProvider

	modelOptions := getLLMModelOptions(selectedProvider)
	selectedModel := cfg.LLM.Model
	if selectedModel == "" && len(modelOptions) > 0 {
		selectedModel = modelOptions[0].Value
	}

	modelForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Post-Processing Model").
				Options(modelOptions...).
				Value(&selectedModel),
		),
	).WithTheme(getTheme())

	if err := modelForm.Run(); err != nil {
		return configuredProviders, err
	}

	cfg.LLM.Model = selectedModel
	return configuredProviders, nil
}

func getLLMModelOptions(providerName string) []huh.Option[string] {
	p := provider.GetProvider(providerName)
	if p == nil {
		return nil
	}

	models := provider.ModelsOfType(p, provider.LLM)
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
