package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

const stageName = "monitor"

// Video is one recently published upload on a watched channel.
type Video struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_seconds"`
	PublishedAt     time.Time `json:"published_at"`
}

// Client talks to the channel listing endpoint.
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

// New constructs a feed client from configuration.
func New(cfg config.Monitor, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Recent lists a channel's newest uploads, most recent first. Entries
// without a source URL are dropped.
func (c *Client) Recent(ctx context.Context, channelID string, limit int) ([]Video, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "feed", "monitor base url not configured", nil)
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "feed", "channel id is required", nil)
	}

	endpoint := c.baseURL + "/v1/channels/" + url.PathEscape(channelID) + "/videos"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "feed", "build request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "feed", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "feed", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return nil, services.Wrap(marker, stageName, "feed", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var payload struct {
		Videos []Video `json:"videos"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrParse, stageName, "feed", "malformed response", err)
	}

	videos := make([]Video, 0, len(payload.Videos))
	for _, video := range payload.Videos {
		if strings.TrimSpace(video.URL) == "" {
			continue
		}
		videos = append(videos, video)
	}
	return videos, nil
}
