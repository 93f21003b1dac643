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

// MusicClient generates background music tracks. Music providers are the
// slowest collaborators in the pipeline, so the configured timeout is long.
type MusicClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewMusicClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *MusicClient {
	return &MusicClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

type musicRequest struct {
	Prompt  string            `json:"prompt"`
	Options map[string]string `json:"options,omitempty"`
}

type musicResponse struct {
	TrackURL string `json:"track_url"`
}

func (c *MusicClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(musicRequest{Prompt: req.Prompt, Options: req.Options})
	if err != nil {
		return "", fmt.Errorf("marshal music request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/music", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("requesting music generation",
		"url", url,
		"prompt_chars", len(req.Prompt),
	)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", &Error{Provider: "music", Timeout: true}
		}
		return "", fmt.Errorf("music request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Provider: "music", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result musicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode music response: %w", err)
	}
	if result.TrackURL == "" {
		return "", fmt.Errorf("music response missing track_url")
	}

	c.logger.Info("music generated", "duration_ms", time.Since(start).Milliseconds())
	return result.TrackURL, nil
}
