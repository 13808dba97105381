package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

const stageName = "fetch"

// Result carries the downloaded file location and the source metadata the
// fetch tool reported.
type Result struct {
	MediaPath       string
	Title           string
	Description     string
	DurationSeconds float64
	Uploader        string
}

// Client shells out to the fetch binary (yt-dlp compatible interface).
type Client struct {
	binary  string
	format  string
	proxy   string
	timeout time.Duration

	// runCommand is swappable in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// New constructs a downloader from configuration.
func New(cfg config.Downloader) *Client {
	return &Client{
		binary:     cfg.Binary,
		format:     cfg.Format,
		proxy:      cfg.Proxy,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		runCommand: runCommand,
	}
}

// Fetch downloads the source into destDir and returns the resulting file
// path plus metadata. The fetch tool emits one JSON document describing the
// download on stdout.
func (c *Client) Fetch(ctx context.Context, sourceURL, destDir string) (Result, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "fetch", "empty source url", nil)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--print-json",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
	}
	if c.format != "" {
		args = append(args, "-f", c.format)
	}
	if c.proxy != "" {
		args = append(args, "--proxy", c.proxy)
	}
	args = append(args, sourceURL)

	stdout, stderr, err := c.runCommand(ctx, c.binary, args...)
	if err != nil {
		return Result{}, classifyFetchError(err, string(stderr))
	}

	return parseFetchOutput(stdout)
}

// HealthCheck verifies the fetch binary is resolvable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrValidation, stageName, "health", fmt.Sprintf("fetch binary %q not found", c.binary), err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// parseFetchOutput decodes the final JSON document the fetch tool prints.
func parseFetchOutput(stdout []byte) (Result, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	var doc []byte
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			doc = line
			break
		}
	}
	if doc == nil {
		return Result{}, services.Wrap(services.ErrParse, stageName, "parse output", "no metadata document in fetch output", nil)
	}

	var payload struct {
		Filename    string  `json:"_filename"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Duration    float64 `json:"duration"`
		Uploader    string  `json:"uploader"`
	}
	if err := json.Unmarshal(doc, &payload); err != nil {
		return Result{}, services.Wrap(services.ErrParse, stageName, "parse output", "malformed metadata document", err)
	}
	if payload.Filename == "" {
		return Result{}, services.Wrap(services.ErrParse, stageName, "parse output", "metadata document missing filename", nil)
	}

	return Result{
		MediaPath:       payload.Filename,
		Title:           payload.Title,
		Description:     payload.Description,
		DurationSeconds: payload.Duration,
		Uploader:        payload.Uploader,
	}, nil
}

// classifyFetchError maps fetch tool failures onto the error taxonomy by
// inspecting stderr. Unknown failures stay transient so they remain eligible
// for retry.
func classifyFetchError(err error, stderr string) error {
	lowered := strings.ToLower(stderr)
	message := firstStderrLine(stderr)

	switch {
	case strings.Contains(lowered, "http error 404"),
		strings.Contains(lowered, "video unavailable"),
		strings.Contains(lowered, "does not exist"):
		return services.Wrap(services.ErrNotFound, stageName, "fetch", message, err)
	case strings.Contains(lowered, "http error 403"),
		strings.Contains(lowered, "private video"),
		strings.Contains(lowered, "sign in to confirm"),
		strings.Contains(lowered, "age-restricted"):
		return services.Wrap(services.ErrPermanent, stageName, "fetch", message, err)
	case strings.Contains(lowered, "http error 429"),
		strings.Contains(lowered, "rate limit"),
		strings.Contains(lowered, "too many requests"):
		return services.Wrap(services.ErrQuota, stageName, "fetch", message, err)
	default:
		return services.Wrap(services.ErrTransient, stageName, "fetch", message, err)
	}
}

func firstStderrLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return "fetch tool failed"
}
