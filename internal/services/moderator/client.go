package moderator

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

const stageName = "moderate"

// Request carries the text fields submitted for review.
type Request struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Finding is one flagged term in a reviewed field.
type Finding struct {
	Field    string `json:"field"`
	Term     string `json:"term"`
	Severity string `json:"severity"`
}

// Decision is the review verdict. A failed review carries at least one
// finding explaining what was flagged.
type Decision struct {
	Pass     bool      `json:"pass"`
	Findings []Finding `json:"findings"`
}

// Client talks to the review endpoint.
type Client struct {
	baseURL    string
	apiKey     string
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

// New constructs a moderator client from configuration.
func New(cfg config.Moderator, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Review submits the metadata for review and returns the verdict. A verdict
// that fails without findings is treated as a single unspecified finding so
// the caller always has something to surface.
func (c *Client) Review(ctx context.Context, req Request) (Decision, error) {
	if c.baseURL == "" {
		return Decision{}, services.Wrap(services.ErrValidation, stageName, "moderator", "moderator base url not configured", nil)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrValidation, stageName, "moderator", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/content/review", bytes.NewReader(body))
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, stageName, "moderator", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, stageName, "moderator", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, stageName, "moderator", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return Decision{}, services.Wrap(marker, stageName, "moderator", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var decision Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return Decision{}, services.Wrap(services.ErrParse, stageName, "moderator", "malformed response", err)
	}
	if !decision.Pass && len(decision.Findings) == 0 {
		decision.Findings = []Finding{{Field: "unknown", Term: "unspecified", Severity: "review"}}
	}
	return decision, nil
}
