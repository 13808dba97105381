package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a log sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logging.NewComponentLogger(logger, "notify")}
}

// Deliver logs the event. It never fails.
func (s *LogSink) Deliver(ctx context.Context, event Event) error {
	s.logger.Info("task status changed",
		logging.String(logging.FieldEventType, "task_status"),
		logging.String(logging.FieldTaskID, event.TaskID),
		logging.String("status", string(event.Status)),
		logging.String(logging.FieldStage, event.Stage),
		logging.String("summary", event.Summary))
	return nil
}

// WebhookSink pushes events to an ntfy-compatible endpoint. Categories are
// filtered per configuration: queue events, review holds, and errors can be
// toggled independently.
type WebhookSink struct {
	url         string
	topic       string
	queueEvents bool
	review      bool
	errors      bool
	httpClient  *http.Client
}

// NewWebhookSink constructs a webhook sink; it returns nil when no webhook
// URL is configured.
func NewWebhookSink(cfg config.Notifications) *WebhookSink {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:         strings.TrimRight(cfg.WebhookURL, "/"),
		topic:       cfg.Topic,
		queueEvents: cfg.QueueEvents,
		review:      cfg.Review,
		errors:      cfg.Errors,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Deliver posts the event. Filtered-out categories succeed silently.
func (s *WebhookSink) Deliver(ctx context.Context, event Event) error {
	if !s.wants(event) {
		return nil
	}

	endpoint := s.url
	if s.topic != "" {
		endpoint += "/" + s.topic
	}
	body := event.Summary
	if body == "" {
		body = fmt.Sprintf("task %s is now %s", event.TaskID, event.Status)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Title", fmt.Sprintf("conveyor: %s", event.Status))
	req.Header.Set("Tags", tagsFor(event.Status))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) wants(event Event) bool {
	switch event.Status {
	case queue.StatusFailed:
		return s.errors
	case queue.StatusAwaitingReview:
		return s.review
	default:
		return s.queueEvents
	}
}

func tagsFor(status queue.Status) string {
	switch status {
	case queue.StatusFailed:
		return "rotating_light"
	case queue.StatusAwaitingReview:
		return "eyes"
	case queue.StatusCompleted:
		return "white_check_mark"
	default:
		return "gear"
	}
}
