package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Adapter using OpenAI's chat completions API.
type OpenAIAdapter struct {
	client *openai.Client
	config Config
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (a *OpenAIAdapter) Process(ctx context.Context, instruction, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	model := a.config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return chatCall(ctx, a.client, "openai", model, instruction, text)
}

func chatCall(ctx context.Context, client *openai.Client, provider, model, instruction, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(instruction)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Debug().Err(err).Dur("call", duration).Str("provider", provider).Msg("chat completion failed")
		return "", fmt.Errorf("%s chat completion: %w", provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no response choices", provider)
	}

	log.Debug().Dur("call", duration).Str("provider", provider).Msg("transcript processed")
	return resp.Choices[0].Message.Content, nil
}
