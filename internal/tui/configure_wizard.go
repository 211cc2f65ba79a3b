package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/fernandocchaves/tabtalk/internal/config"
)

// runFreshInstall runs the full configuration wizard for fresh installs
func runFreshInstall(cfg *config.Config) (*ConfigureResult, error) {
	fmt.Println(Logo())
	fmt.Println()
	fmt.Println(StyleMuted.Render("Long-form audio capture and transcription daemon"))
	fmt.Println()

	selectedProviders, err := selectProviders()
	if err != nil {
		return &ConfigureResult{Cancelled: true}, nil
	}
	if len(selectedProviders) == 0 {
		return &ConfigureResult{Cancelled: true}, fmt.Errorf("no providers selected")
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}

	for _, providerName := range selectedProviders {
		apiKey, err := inputAPIKey(providerName)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}
		cfg.Providers[providerName] = config.ProviderConfig{APIKey: apiKey}
	}

	if _, err := editTranscription(cfg, selectedProviders); err != nil {
		return &ConfigureResult{Cancelled: true}, nil
	}

	if err := editRecording(cfg); err != nil {
		return &ConfigureResult{Cancelled: true}, nil
	}

	if _, err := editLLM(cfg, selectedProviders); err != nil {
		return &ConfigureResult{Cancelled: true}, nil
	}

	notificationsEnabled, err := configureNotifications(cfg.Notifications.Enabled)
	if err != nil {
		return &ConfigureResult{Cancelled: true}, nil
	}
	cfg.Notifications.Enabled = notificationsEnabled

	confirmed, err := showSummary(cfg)
	if err != nil || !confirmed {
		return &ConfigureResult{Cancelled: true}, nil
	}

	return &ConfigureResult{Config: cfg, Cancelled: false}, nil
}

func selectProviders() ([]string, error) {
	options := []huh.Option[string]{
		huh.NewOption("OpenAI - GPT audio + Whisper transcription", "openai"),
		huh.NewOption("Groq - Fast Whisper transcription + Llama post-processing", "groq"),
		huh.NewOption("Deepgram - Nova transcription", "deepgram"),
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which providers do you want to configure?").
				Description("Select all providers you have API keys for").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return nil, err
	}

	valid := make([]string, 0)
	for _, s := range selected {
		for _, p := range AllProviders {
			if s == p {
				valid = append(valid, s)
				break
			}
		}
	}

	return valid, nil
}
