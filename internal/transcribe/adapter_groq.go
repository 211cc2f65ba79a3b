package transcribe

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// GroqAdapter implements Service against Groq's OpenAI-compatible API.
type GroqAdapter struct {
	client *openai.Client
	config Config
}

func NewGroqAdapter(config Config) *GroqAdapter {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = "https://api.groq.com/openai/v1"
	return &GroqAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

func (a *GroqAdapter) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, nil
	}
	// Groq serves whisper models only, so everything goes through the
	// transcription endpoint.
	return transcriptionCall(ctx, a.client, a.config, "groq", wav)
}
