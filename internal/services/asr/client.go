package asr

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

	"golang.org/x/text/language"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

const stageName = "subtitles"

// Transcript is a recognized chunk of speech.
type Transcript struct {
	Text       string
	Language   string
	Confidence float64
	Segments   []Segment
}

// Segment is one timed piece of a verbose transcript, in seconds relative to
// the submitted audio.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// Request describes one transcription call.
type Request struct {
	AudioPath string
	Language  string
	Prompt    string
}

// Client talks to the transcription endpoint.
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

// New constructs an ASR client from configuration.
func New(cfg config.ASR, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
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

// Transcribe uploads an audio segment and returns the recognized transcript.
// The service may answer with plain text, a minimal JSON document, or a
// verbose JSON document with timed segments; all three are accepted.
func (c *Client) Transcribe(ctx context.Context, req Request) (Transcript, error) {
	if c.baseURL == "" {
		return Transcript{}, services.Wrap(services.ErrValidation, stageName, "asr", "asr base url not configured", nil)
	}

	body, contentType, err := c.buildUpload(req)
	if err != nil {
		return Transcript{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTransient, stageName, "asr", "build request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTransient, stageName, "asr", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTransient, stageName, "asr", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.MarkerForStatus(resp.StatusCode)
		return Transcript{}, services.Wrap(marker, stageName, "asr", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	return parseTranscript(resp.Header.Get("Content-Type"), payload)
}

func (c *Client) buildUpload(req Request) (io.Reader, string, error) {
	file, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrNotFound, stageName, "asr", "open audio", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "asr", "build upload", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "asr", "copy audio", err)
	}
	if c.model != "" {
		_ = writer.WriteField("model", c.model)
	}
	if lang := CanonicalLanguage(req.Language); lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if req.Prompt != "" {
		_ = writer.WriteField("prompt", req.Prompt)
	}
	if err := writer.Close(); err != nil {
		return nil, "", services.Wrap(services.ErrTransient, stageName, "asr", "finalize upload", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// parseTranscript handles the three response dialects. A JSON body missing
// the text field is a parse error.
func parseTranscript(contentType string, payload []byte) (Transcript, error) {
	trimmed := bytes.TrimSpace(payload)
	isJSON := strings.Contains(contentType, "json") || (len(trimmed) > 0 && trimmed[0] == '{')
	if !isJSON {
		return Transcript{Text: strings.TrimSpace(string(payload))}, nil
	}

	var doc struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Segments []struct {
			Start      float64  `json:"start"`
			End        float64  `json:"end"`
			Text       string   `json:"text"`
			AvgLogprob *float64 `json:"avg_logprob"`
			Confidence *float64 `json:"confidence"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Transcript{}, services.Wrap(services.ErrParse, stageName, "asr", "malformed response", err)
	}
	if doc.Text == "" && len(doc.Segments) == 0 {
		return Transcript{}, services.Wrap(services.ErrParse, stageName, "asr", "response missing transcript text", nil)
	}

	transcript := Transcript{
		Text:     strings.TrimSpace(doc.Text),
		Language: CanonicalLanguage(doc.Language),
	}
	var confidenceSum float64
	var confidenceCount int
	for _, seg := range doc.Segments {
		segment := Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		switch {
		case seg.Confidence != nil:
			segment.Confidence = *seg.Confidence
		case seg.AvgLogprob != nil:
			segment.Confidence = logprobToConfidence(*seg.AvgLogprob)
		}
		if segment.Confidence > 0 {
			confidenceSum += segment.Confidence
			confidenceCount++
		}
		transcript.Segments = append(transcript.Segments, segment)
	}
	if transcript.Text == "" {
		var parts []string
		for _, seg := range transcript.Segments {
			if seg.Text != "" {
				parts = append(parts, seg.Text)
			}
		}
		transcript.Text = strings.Join(parts, " ")
	}
	if confidenceCount > 0 {
		transcript.Confidence = confidenceSum / float64(confidenceCount)
	}
	return transcript, nil
}

// logprobToConfidence squashes an average log probability into (0, 1].
func logprobToConfidence(logprob float64) float64 {
	if logprob >= 0 {
		return 1
	}
	confidence := 1 + logprob
	if confidence < 0.01 {
		confidence = 0.01
	}
	return confidence
}

// languageNames maps the full names some recognition services report back
// to tags that language.Parse understands.
var languageNames = map[string]string{
	"english":    "en",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"russian":    "ru",
	"portuguese": "pt",
	"italian":    "it",
}

// CanonicalLanguage normalizes a language hint or detection result to its
// ISO 639-1 base form ("en-US", "eng" and "english" all become "en").
// Unparseable values are passed through lowercased rather than dropped.
func CanonicalLanguage(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if mapped, ok := languageNames[value]; ok {
		return mapped
	}
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	base, conf := tag.Base()
	if conf == language.No {
		return value
	}
	return base.String()
}
