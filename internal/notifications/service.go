package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/config"
)

const userAgent = "Inkwell/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobSubmitted(ctx context.Context, title string) error
	NotifyDecisionRequired(ctx context.Context, jobID string, options []string) error
	NotifyJobCompleted(ctx context.Context, title, artifactPath string) error
	NotifyJobFailed(ctx context.Context, title string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyJobSubmitted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Inkwell - Job Submitted",
		message: fmt.Sprintf("Started generation: %s", title),
		tags:    []string{"inkwell", "job", "submitted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDecisionRequired(ctx context.Context, jobID string, options []string) error {
	data := payload{
		title:    "Inkwell - Decision Required",
		message:  fmt.Sprintf("Job %s is waiting for a title choice:\n%s", jobID, strings.Join(options, "\n")),
		tags:     []string{"inkwell", "decision", "pending"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, artifactPath string) error {
	if !n.completion {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Bundle ready: %s", title)
	if artifactPath = strings.TrimSpace(artifactPath); artifactPath != "" {
		message = fmt.Sprintf("%s\nPath: %s", message, artifactPath)
	}
	data := payload{
		title:    "Inkwell - Complete",
		message:  message,
		tags:     []string{"inkwell", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Generation failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(" for ")
		builder.WriteString(title)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Inkwell - Error",
		message:  builder.String(),
		tags:     []string{"inkwell", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Inkwell - Test",
		message:  "Notification system test",
		tags:     []string{"inkwell", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobSubmitted(context.Context, string) error             { return nil }
func (noopService) NotifyDecisionRequired(context.Context, string, []string) error { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string) error     { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error         { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
