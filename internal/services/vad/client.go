package vad

import (
	"bytes"
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

const stageName = "subtitles"

// Span is one detected speech interval, in seconds relative to the start of
// the submitted audio.
type Span struct {
	Start float64
	End   float64
}

// Client talks to the speech detection endpoint.
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

// New constructs a VAD client from configuration.
func New(cfg config.VAD, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
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

// DetectSpeech uploads an audio file and returns the detected speech spans.
// The service has two response dialects; both are accepted. Any other shape
// is a parse error so the caller can fall back instead of retrying.
func (c *Client) DetectSpeech(ctx context.Context, audioPath string) ([]Span, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "vad", "vad base url not configured", nil)
	}

	body, contentType, err := buildUpload(audioPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech/detect", body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "vad", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "vad", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "vad", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return nil, services.Wrap(marker, stageName, "vad", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	return parseSpans(payload)
}

func buildUpload(audioPath string) (io.Reader, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrNotFound, stageName, "vad", "open audio", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "vad", "build upload", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "vad", "copy audio", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "vad", "finalize upload", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// parseSpans accepts either response dialect:
//
//	{"spans": [{"start": 1.5, "end": 3.25}, ...]}            seconds
//	{"segments": [{"begin_ms": 1500, "end_ms": 3250}, ...]}  milliseconds
func parseSpans(payload []byte) ([]Span, error) {
	var probe struct {
		Spans []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"spans"`
		Segments []struct {
			BeginMS float64 `json:"begin_ms"`
			EndMS   float64 `json:"end_ms"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, services.Wrap(services.ErrParse, stageName, "vad", "malformed response", err)
	}

	switch {
	case probe.Spans != nil:
		spans := make([]Span, 0, len(probe.Spans))
		for _, s := range probe.Spans {
			spans = append(spans, Span{Start: s.Start, End: s.End})
		}
		return spans, nil
	case probe.Segments != nil:
		spans := make([]Span, 0, len(probe.Segments))
		for _, s := range probe.Segments {
			spans = append(spans, Span{Start: s.BeginMS / 1000, End: s.EndMS / 1000})
		}
		return spans, nil
	default:
		return nil, services.Wrap(services.ErrParse, stageName, "vad", "unrecognized response shape", nil)
	}
}
