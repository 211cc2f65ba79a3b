package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const deepgramBaseURL = "https://api.deepgram.com/v1/listen"

// DeepgramAdapter implements Service against Deepgram's pre-recorded API.
type DeepgramAdapter struct {
	config     Config
	baseURL    string
	httpClient *http.Client
}

type deepgramResponse struct {
	Results *deepgramResults `json:"results,omitempty"`
	Error   *deepgramError   `json:"error,omitempty"`
}

type deepgramResults struct {
	Channels []deepgramChannel `json:"channels,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string `json:"transcript,omitempty"`
}

type deepgramError struct {
	Message string `json:"message,omitempty"`
}

func NewDeepgramAdapter(config Config) *DeepgramAdapter {
	return &DeepgramAdapter{
		config:     config,
		baseURL:    deepgramBaseURL,
		httpClient: http.DefaultClient,
	}
}

func (a *DeepgramAdapter) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	if len(wav) == 0 {
		return Result{}, nil
	}

	apiURL, err := a.buildURL()
	if err != nil {
		return Result{}, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(wav))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+a.config.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

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
			Provider: "deepgram",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(body)),
		}
	default:
		return Result{}, fmt.Errorf("deepgram api error (status %d): %s", resp.StatusCode, string(body))
	}

	var result deepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return Result{}, fmt.Errorf("deepgram error: %s", result.Error.Message)
	}

	log.Debug().Dur("call", duration).Int("wav_bytes", len(wav)).Str("provider", "deepgram").Msg("segment transcribed")

	if result.Results == nil || len(result.Results.Channels) == 0 {
		return Result{}, nil
	}
	if len(result.Results.Channels[0].Alternatives) == 0 {
		return Result{}, nil
	}
	return Result{Text: result.Results.Channels[0].Alternatives[0].Transcript}, nil
}

func (a *DeepgramAdapter) buildURL() (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("model", a.config.Model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if a.config.Language != "" {
		q.Set("language", a.config.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
