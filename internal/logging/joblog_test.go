package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subline/internal/logging"
)

func TestOpenJobLogTeesIntoJobFile(t *testing.T) {
	logDir := t.TempDir()
	var console bytes.Buffer
	base := slog.New(slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger, closer, err := logging.OpenJobLog(base, logDir, "job-42")
	if err != nil {
		t.Fatalf("OpenJobLog: %v", err)
	}
	logger.Debug("segment boundaries", logging.Int("chunks", 3))
	logger.Info("job finished")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(logging.JobLogPath(logDir, "job-42"))
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "segment boundaries") || !strings.Contains(text, `"job_id":"job-42"`) {
		t.Fatalf("job log missing debug record: %q", text)
	}
	if strings.Contains(console.String(), "segment boundaries") {
		t.Fatalf("console should not receive debug: %q", console.String())
	}
	if !strings.Contains(console.String(), "job finished") {
		t.Fatalf("console missing info record: %q", console.String())
	}
}

func TestOpenJobLogWithoutDirReturnsBase(t *testing.T) {
	base := logging.NewNop()
	logger, closer, err := logging.OpenJobLog(base, "", "job")
	if err != nil {
		t.Fatalf("OpenJobLog: %v", err)
	}
	if logger != base {
		t.Fatal("expected base logger returned unchanged")
	}
	if closer == nil {
		t.Fatal("expected non-nil closer")
	}
}

func TestPruneJobLogs(t *testing.T) {
	logDir := t.TempDir()
	jobsDir := filepath.Join(logDir, logging.JobLogDir)
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	oldPath := filepath.Join(jobsDir, "old.log")
	newPath := filepath.Join(jobsDir, "new.log")
	otherPath := filepath.Join(jobsDir, "notes.txt")
	for _, p := range []string{oldPath, newPath, otherPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, otherPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	if removed := logging.PruneJobLogs(logging.NewNop(), logDir, 7); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{newPath, otherPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
	if removed := logging.PruneJobLogs(logging.NewNop(), logDir, 0); removed != 0 {
		t.Fatalf("retention 0 should disable pruning, removed %d", removed)
	}
}
