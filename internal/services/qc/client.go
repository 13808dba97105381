package qc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

const stageName = "subtitles"

// SampleItem is one subtitle cue submitted for scoring.
type SampleItem struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Client talks to the quality scoring endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a QC client from configuration.
func New(cfg config.QC, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Score submits a subtitle sample and returns a quality score in [0, 1].
// Scores outside that range are a parse error rather than clamped, since a
// misbehaving scorer should not silently mark subtitles degraded.
func (c *Client) Score(ctx context.Context, items []SampleItem) (float64, error) {
	if c.baseURL == "" {
		return 0, services.Wrap(services.ErrValidation, stageName, "qc", "qc base url not configured", nil)
	}
	if len(items) == 0 {
		return 0, services.Wrap(services.ErrValidation, stageName, "qc", "empty sample", nil)
	}

	payload := struct {
		Model string       `json:"model,omitempty"`
		Items []SampleItem `json:"items"`
	}{Model: c.model, Items: items}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, stageName, "qc", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/subtitles/score", bytes.NewReader(body))
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stageName, "qc", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stageName, "qc", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, stageName, "qc", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return 0, services.Wrap(marker, stageName, "qc", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var result struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, services.Wrap(services.ErrParse, stageName, "qc", "malformed response", err)
	}
	if result.Score == nil {
		return 0, services.Wrap(services.ErrParse, stageName, "qc", "response missing score", nil)
	}
	if *result.Score < 0 || *result.Score > 1 {
		return 0, services.Wrap(services.ErrParse, stageName, "qc", fmt.Sprintf("score %v out of range", *result.Score), nil)
	}
	return *result.Score, nil
}
