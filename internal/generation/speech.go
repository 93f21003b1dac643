package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SpeechClient generates voiceover audio through a text-to-speech provider.
type SpeechClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewSpeechClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *SpeechClient {
	return &SpeechClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

type speechRequest struct {
	Text    string            `json:"text"`
	Options map[string]string `json:"options,omitempty"`
}

type speechResponse struct {
	AudioURL string `json:"audio_url"`
}

func (c *SpeechClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(speechRequest{Text: req.Prompt, Options: req.Options})
	if err != nil {
		return "", fmt.Errorf("marshal speech request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/speech", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("requesting voiceover generation",
		"url", url,
		"prompt_chars", len(req.Prompt),
	)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", &Error{Provider: "speech", Timeout: true}
		}
		return "", fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Provider: "speech", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result speechResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode speech response: %w", err)
	}
	if result.AudioURL == "" {
		return "", fmt.Errorf("speech response missing audio_url")
	}

	c.logger.Info("voiceover generated", "duration_ms", time.Since(start).Milliseconds())
	return result.AudioURL, nil
}
