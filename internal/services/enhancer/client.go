package enhancer

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

const stageName = "enhance"

// Request carries the source metadata to translate and tag.
type Request struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetLanguage string `json:"target_language"`
}

// Result is the enhanced metadata for the target platform.
type Result struct {
	Title       string   `json:"translated_title"`
	Description string   `json:"translated_description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
}

// Client talks to the enhancement endpoint.
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

// New constructs an enhancer client from configuration.
func New(cfg config.Enhancer, opts ...Option) *Client {
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

// Enhance translates the title and description and suggests tags and a
// category. A translated title is required; everything else may be empty.
func (c *Client) Enhance(ctx context.Context, req Request) (Result, error) {
	if c.baseURL == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "enhancer", "enhancer base url not configured", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "enhancer", "title is required", nil)
	}

	payload := struct {
		Request
		Model string `json:"model,omitempty"`
	}{Request: req, Model: c.model}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "enhancer", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/metadata/enhance", bytes.NewReader(body))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "enhancer", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "enhancer", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, stageName, "enhancer", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return Result{}, services.Wrap(marker, stageName, "enhancer", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, services.Wrap(services.ErrParse, stageName, "enhancer", "malformed response", err)
	}
	if strings.TrimSpace(result.Title) == "" {
		return Result{}, services.Wrap(services.ErrParse, stageName, "enhancer", "response missing translated title", nil)
	}
	result.Tags = normalizeTags(result.Tags)
	return result, nil
}

// TranslateLines translates subtitle cue text in order. Cue timing must
// survive translation, so the service has to return exactly one line per
// input; anything else is a parse error.
func (c *Client) TranslateLines(ctx context.Context, lines []string, targetLanguage string) ([]string, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "enhancer", "enhancer base url not configured", nil)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	payload := struct {
		Lines          []string `json:"lines"`
		TargetLanguage string   `json:"target_language"`
		Model          string   `json:"model,omitempty"`
	}{Lines: lines, TargetLanguage: targetLanguage, Model: c.model}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "enhancer", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/subtitles/translate", bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "enhancer", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "enhancer", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "enhancer", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return nil, services.Wrap(marker, stageName, "enhancer", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var result struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, services.Wrap(services.ErrParse, stageName, "enhancer", "malformed response", err)
	}
	if len(result.Lines) != len(lines) {
		return nil, services.Wrap(services.ErrParse, stageName, "enhancer",
			fmt.Sprintf("translation returned %d lines for %d inputs", len(result.Lines), len(lines)), nil)
	}
	return result.Lines, nil
}

// normalizeTags trims, drops empties, and removes case-insensitive
// duplicates while preserving order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
