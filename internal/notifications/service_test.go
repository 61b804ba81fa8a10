package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subline/internal/config"
	"subline/internal/notifications"
	"subline/internal/services"
)

type captured struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newTopic(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic says no"))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func configFor(url string, onSuccess bool) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.OnSuccess = onSuccess
	return &cfg
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected disabled notifier")
	}
	if err := svc.JobFinished(context.Background(), notifications.Summary{Status: services.StatusFailed}); err != nil {
		t.Fatalf("noop returned %v", err)
	}
}

func TestJobFinishedFormatsByStatus(t *testing.T) {
	failure := services.Wrap(services.ErrBadInput, "Transcription", "recognize", "audio could not be decoded", nil)
	tests := []struct {
		name         string
		summary      notifications.Summary
		wantTitle    string
		wantBody     string
		wantTags     string
		wantPriority string
	}{
		{
			name: "completed",
			summary: notifications.Summary{
				Title: "Weekly Call", Status: services.StatusCompleted, Segments: 42,
				Elapsed: 95 * time.Second, OutputPath: "/out/Weekly Call.srt",
			},
			wantTitle: "subline - Complete",
			wantBody:  "✅ Subtitles ready: Weekly Call (42 lines, 1m35s)\nFile: /out/Weekly Call.srt",
			wantTags:  "subline,completed",
		},
		{
			name:      "cancelled uses source when untitled",
			summary:   notifications.Summary{Source: "/media/a.mp4", Status: services.StatusCancelled},
			wantTitle: "subline - Stopped",
			wantBody:  "Stopped: /media/a.mp4\nNo subtitles were written",
			wantTags:  "subline,cancelled",
		},
		{
			name:         "rejected",
			summary:      notifications.Summary{Title: "Clip", Status: services.StatusRejected, Err: failure},
			wantTitle:    "subline - Failed",
			wantBody:     "❌ Clip failed (rejected): " + failure.Error(),
			wantTags:     "subline,error,bad_input",
			wantPriority: "high",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newTopic(t, http.StatusOK)
			svc := notifications.NewService(configFor(server.URL, true))
			if err := svc.JobFinished(context.Background(), tc.summary); err != nil {
				t.Fatalf("JobFinished: %v", err)
			}
			if got.title != tc.wantTitle || got.body != tc.wantBody || got.tags != tc.wantTags || got.priority != tc.wantPriority {
				t.Fatalf("unexpected message %+v", got)
			}
		})
	}
}

func TestJobFinishedSkipsSuccessWhenDisabled(t *testing.T) {
	server, got := newTopic(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL, false))
	ctx := context.Background()
	if err := svc.JobFinished(ctx, notifications.Summary{Status: services.StatusCompleted}); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no request, got %d", got.calls)
	}
	if err := svc.JobFinished(ctx, notifications.Summary{Status: services.StatusFailed}); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("failures must still notify, got %d calls", got.calls)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	server, _ := newTopic(t, http.StatusForbidden)
	err := notifications.NewService(configFor(server.URL, true)).Test(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: topic says no") {
		t.Fatalf("unexpected error %v", err)
	}
}
