package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/fernandocchaves/tabtalk/internal/config"
)

// editRecording edits the capture source and the crash-recovery chunk
// cadence.
func editRecording(cfg *config.Config) error {
	source := cfg.Audio.Source
	sampleRate := strconv.Itoa(cfg.Audio.SampleRate)
	flushInterval := strconv.Itoa(cfg.Recording.FlushIntervalSeconds)
	device := cfg.Audio.Device

	sourceOptions := []huh.Option[string]{
		huh.NewOption("PipeWire - capture from the local audio graph", "pipewire"),
		huh.NewOption("WebSocket - frames pushed to the /ingest endpoint", "websocket"),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Audio Source").
				Description(fmt.Sprintf("Currently: %s", cfg.Audio.Source)).
				Options(sourceOptions...).
				Value(&source),
			huh.NewInput().
				Title("Sample Rate (Hz)").
				Description("Capture rate; 48000 matches most desktop audio").
				Value(&sampleRate).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Chunk Interval (seconds)").
				Description("Audio is persisted in chunks of this length so a crash loses at most one interval. 0 disables timed chunks").
				Value(&flushInterval).
				Validate(validateNonNegativeInt),
			huh.NewInput().
				Title("Capture Device").
				Description("pw-record target node, empty for the default").
				Placeholder("default").
				Value(&device),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Audio.Source = source
	cfg.Audio.SampleRate, _ = strconv.Atoi(sampleRate)
	cfg.Recording.FlushIntervalSeconds, _ = strconv.Atoi(flushInterval)
	cfg.Audio.Device = device

	if cfg.Audio.Source == "websocket" && !cfg.Server.Enabled {
		// frames arrive over HTTP, so the listener has to be on
		cfg.Server.Enabled = true
	}

	return nil
}
