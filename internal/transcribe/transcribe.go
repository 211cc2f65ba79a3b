// Package transcribe drives segment-by-segment transcription of stored
// recordings through an external speech-to-text service, surviving partial
// failure via a persisted per-recording checkpoint.
package transcribe

import (
	"context"
	"fmt"
)

// Result is one segment's transcription.
type Result struct {
	Text string
	// Truncated is set when the service flagged the response as cut off
	// by its output limit. Truncation is a data-quality warning, not a
	// failure.
	Truncated bool
}

// Service is one round trip to the external transcription service: WAV
// bytes in, text out.
type Service interface {
	Transcribe(ctx context.Context, wav []byte) (Result, error)
}

// Config selects and parameterizes a transcription provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Language    string
	Instruction string
}

// NewService builds the adapter for the configured provider.
func NewService(cfg Config) (Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIAdapter(cfg), nil
	case "groq":
		return NewGroqAdapter(cfg), nil
	case "deepgram":
		return NewDeepgramAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
