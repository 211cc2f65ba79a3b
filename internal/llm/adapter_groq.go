package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// GroqAdapter implements Adapter using Groq's OpenAI-compatible API.
type GroqAdapter struct {
	client *openai.Client
	config Config
}

func NewGroqAdapter(cfg Config) *GroqAdapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = "https://api.groq.com/openai/v1"
	return &GroqAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func (a *GroqAdapter) Process(ctx context.Context, instruction, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	model := a.config.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return chatCall(ctx, a.client, "groq", model, instruction, text)
}
