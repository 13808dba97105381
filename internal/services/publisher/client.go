package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

const stageName = "upload"

// Request carries the finished media and its metadata to the destination.
type Request struct {
	MediaPath   string
	Title       string
	Description string
	Tags        []string
	Category    string
}

// Client talks to the publishing endpoint.
type Client struct {
	baseURL    string
	apiToken   string
	channelID  string
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

// New constructs a publisher client from configuration.
func New(cfg config.Publisher, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		channelID:  cfg.ChannelID,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Publish uploads the media and metadata and returns the destination's
// identifier for the new video. The body is streamed so large files never
// sit in memory.
func (c *Client) Publish(ctx context.Context, req Request) (string, error) {
	if c.baseURL == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "publisher", "publisher base url not configured", nil)
	}
	if req.Title == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "publisher", "title is required", nil)
	}
	file, err := os.Open(req.MediaPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "publisher", "open media", err)
	}
	defer file.Close()

	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)
	go func() {
		pipeWriter.CloseWithError(writeUpload(writer, file, req, c.channelID))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/videos", pipeReader)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "publisher", "build request", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "publisher", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "publisher", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classifyPublishError(resp.StatusCode, raw)
	}

	var result struct {
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", services.Wrap(services.ErrParse, stageName, "publisher", "malformed response", err)
	}
	if result.ExternalID == "" {
		return "", services.Wrap(services.ErrParse, stageName, "publisher", "response missing external id", nil)
	}
	return result.ExternalID, nil
}

func writeUpload(writer *multipart.Writer, file *os.File, req Request, channelID string) error {
	part, err := writer.CreateFormFile("video", filepath.Base(req.MediaPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	fields := map[string]string{
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"channel_id":  channelID,
	}
	if len(req.Tags) > 0 {
		encoded, err := json.Marshal(req.Tags)
		if err != nil {
			return err
		}
		fields["tags"] = string(encoded)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return err
		}
	}
	return writer.Close()
}

// classifyPublishError maps the destination's failure modes onto the error
// taxonomy. The body may carry a machine-readable code that is more precise
// than the HTTP status.
func classifyPublishError(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	detail := body.Message
	if detail == "" {
		detail = fmt.Sprintf("http %d", status)
	}

	switch body.Error {
	case "auth_expired":
		return services.Wrap(services.ErrPermanent, stageName, "publisher", "credentials expired: "+detail, nil)
	case "quota_exceeded":
		return services.Wrap(services.ErrQuota, stageName, "publisher", detail, nil)
	case "rejected":
		return services.Wrap(services.ErrPermanent, stageName, "publisher", "submission rejected: "+detail, nil)
	}
	return services.Wrap(services.MarkerForStatus(status), stageName, "publisher", detail, nil)
}
