package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subline/internal/config"
	"subline/internal/services"
)

const userAgent = "subline/0.1"

// Summary describes a finished job.
type Summary struct {
	JobID      string
	Title      string
	Source     string
	Status     string
	OutputPath string
	Segments   int
	Elapsed    time.Duration
	Err        error
}

// Notifier publishes job outcomes.
type Notifier interface {
	JobFinished(ctx context.Context, s Summary) error
	Test(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noop{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfy{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.OnSuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfy struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfy) JobFinished(ctx context.Context, s Summary) error {
	msg, ok := n.format(s)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfy) format(s Summary) (message, bool) {
	name := strings.TrimSpace(s.Title)
	if name == "" {
		name = strings.TrimSpace(s.Source)
	}
	switch s.Status {
	case services.StatusCompleted:
		if !n.onSuccess {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Subtitles ready: %s (%d lines, %s)", name, s.Segments, s.Elapsed.Round(time.Second))
		if s.OutputPath != "" {
			body += "\nFile: " + s.OutputPath
		}
		return message{title: "subline - Complete", body: body, tags: []string{"subline", "completed"}}, true
	case services.StatusCancelled:
		return message{
			title: "subline - Stopped",
			body:  fmt.Sprintf("Stopped: %s\nNo subtitles were written", name),
			tags:  []string{"subline", "cancelled"},
		}, true
	default:
		reason := "unknown error"
		tags := []string{"subline", "error"}
		if s.Err != nil {
			reason = strings.TrimSpace(s.Err.Error())
			tags = append(tags, services.FailureKind(s.Err))
		}
		return message{
			title:    "subline - Failed",
			body:     fmt.Sprintf("❌ %s failed (%s): %s", name, s.Status, reason),
			tags:     tags,
			priority: "high",
		}, true
	}
}

func (n *ntfy) Test(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "subline - Test",
		body:     "Notification test",
		tags:     []string{"subline", "test"},
		priority: "low",
	})
}

func (n *ntfy) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

type noop struct{}

func (noop) JobFinished(context.Context, Summary) error { return nil }
func (noop) Test(context.Context) error                 { return nil }

// Enabled reports whether n delivers messages anywhere.
func Enabled(n Notifier) bool {
	_, off := n.(noop)
	return n != nil && !off
}
