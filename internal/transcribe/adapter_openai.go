package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// defaultInstruction keeps audio-capable chat models transcribing instead
// of summarizing when no instruction is configured.
const defaultInstruction = "Transcribe the audio verbatim. Output only the transcription text."

// OpenAIAdapter implements Service against the OpenAI API. Whisper-family
// models use the transcription endpoint; audio-capable chat models take
// the audio inline and can report output truncation.
type OpenAIAdapter struct {
	client     *openai.Client
	config     Config
	chatURL    string
	httpClient *http.Client
}

// Chat completions with inline audio are posted directly; the wire types
// below cover just the fields this adapter sends and reads.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatAudioPart struct {
	Type       string         `json:"type"`
	InputAudio chatInputAudio `json:"input_audio"`
}

type chatInputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

func NewOpenAIAdapter(config Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:     openai.NewClient(config.APIKey),
		config:     config,
		chatURL:    openAIChatURL,
		httpClient: http.DefaultClient,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, nil
	}
	if isTranscriptionModel(a.config.Model) {
		return transcriptionCall(ctx, a.client, a.config, "openai", wav)
	}
	return a.audioChatCall(ctx, wav)
}

// isTranscriptionModel routes whisper-style models to the dedicated
// transcription endpoint.
func isTranscriptionModel(model string) bool {
	return strings.HasPrefix(model, "whisper") || strings.HasSuffix(model, "-transcribe")
}

func transcriptionCall(ctx context.Context, client *openai.Client, cfg Config, provider string, wav []byte) (Result, error) {
	req := openai.AudioRequest{
		Model:    cfg.Model,
		Reader:   bytes.NewReader(wav),
		FilePath: "audio.wav",
		Language: cfg.Language,
		Prompt:   cfg.Instruction,
	}

	start := time.Now()
	resp, err := client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Debug().Err(err).Dur("call", duration).Str("provider", provider).Msg("transcription call failed")
		return Result{}, wrapOpenAIError(provider, fmt.Errorf("%s transcription: %w", provider, err))
	}

	log.Debug().Dur("call", duration).Int("wav_bytes", len(wav)).Str("provider", provider).Msg("segment transcribed")
	return Result{Text: resp.Text}, nil
}

func (a *OpenAIAdapter) audioChatCall(ctx context.Context, wav []byte) (Result, error) {
	instruction := a.config.Instruction
	if instruction == "" {
		instruction = defaultInstruction
	}
	if a.config.Language != "" {
		instruction += " The audio language is " + a.config.Language + "."
	}

	payload, err := json.Marshal(chatRequest{
		Model: a.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: []chatAudioPart{
				{
					Type: "input_audio",
					InputAudio: chatInputAudio{
						Data:   base64.StdEncoding.EncodeToString(wav),
						Format: "wav",
					},
				},
			}},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.chatURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{}, &AuthError{
			Provider: "openai",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	default:
		return Result{}, fmt.Errorf("openai api error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return Result{}, fmt.Errorf("openai audio chat: no response choices")
	}

	choice := result.Choices[0]
	log.Debug().Dur("call", duration).Int("wav_bytes", len(wav)).Str("provider", "openai").Msg("segment transcribed")
	return Result{
		Text:      choice.Message.Content,
		Truncated: choice.FinishReason == "length",
	}, nil
}

// wrapOpenAIError tags credential rejections so the orchestrator can drop
// its cached client.
func wrapOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Provider: provider, Err: err}
		}
	}
	return err
}
