// Package llm post-processes transcripts through chat models. Each named
// prompt produces a variant stored on the recording next to the original
// transcript.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/store"
)

// Adapter runs one post-processing instruction over a transcript.
type Adapter interface {
	Process(ctx context.Context, instruction, text string) (string, error)
}

// Config holds chat model settings for post-processing.
type Config struct {
	Provider string
	APIKey   string
	Model    string
}

// NewAdapter creates an adapter for the configured provider.
func NewAdapter(cfg Config) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIAdapter(cfg), nil
	case "groq":
		return NewGroqAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// VariantStore is the subset of the record store the polisher needs.
type VariantStore interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	SetVariant(ctx context.Context, id, name, text string) error
}

// Polisher produces transcript variants from named prompts.
type Polisher struct {
	st      VariantStore
	adapter Adapter
	prompts map[string]string
	log     zerolog.Logger
}

// NewPolisher merges the configured prompts over the defaults.
func NewPolisher(st VariantStore, adapter Adapter, prompts map[string]string, log zerolog.Logger) *Polisher {
	merged := make(map[string]string, len(DefaultPrompts)+len(prompts))
	for name, instruction := range DefaultPrompts {
		merged[name] = instruction
	}
	for name, instruction := range prompts {
		merged[name] = instruction
	}
	return &Polisher{st: st, adapter: adapter, prompts: merged, log: log}
}

// Prompts returns the available prompt names, sorted.
func (p *Polisher) Prompts() []string {
	names := make([]string, 0, len(p.prompts))
	for name := range p.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Polish runs the named prompt over the recording's transcript and stores
// the result as a variant under the prompt name.
func (p *Polisher) Polish(ctx context.Context, recordingID, promptName string) (string, error) {
	instruction, ok := p.prompts[promptName]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q (available: %s)", promptName, strings.Join(p.Prompts(), ", "))
	}

	rec, err := p.st.Get(ctx, recordingID)
	if err != nil {
		return "", fmt.Errorf("load recording: %w", err)
	}
	if rec.Transcript == "" {
		return "", fmt.Errorf("recording %s has no transcript to polish", recordingID)
	}

	out, err := p.adapter.Process(ctx, instruction, rec.Transcript)
	if err != nil {
		return "", fmt.Errorf("process transcript: %w", err)
	}
	if err := p.st.SetVariant(ctx, recordingID, promptName, out); err != nil {
		return "", fmt.Errorf("store variant: %w", err)
	}

	p.log.Info().
		Str("recording_id", recordingID).
		Str("prompt", promptName).
		Int("chars", len(out)).
		Msg("transcript variant stored")
	return out, nil
}
