package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JobLogDir is the subdirectory of the log directory that holds per-job logs.
const JobLogDir = "jobs"

// JobLogPath returns the JSON log file path for a job.
func JobLogPath(logDir, jobID string) string {
	return filepath.Join(logDir, JobLogDir, jobID+".log")
}

// OpenJobLog tees base into a per-job JSON log file at debug level so a
// single run can be inspected after the fact. The returned closer must be
// called once the job finishes. An empty logDir returns base unchanged.
func OpenJobLog(base *slog.Logger, logDir, jobID string) (*slog.Logger, io.Closer, error) {
	if strings.TrimSpace(logDir) == "" || strings.TrimSpace(jobID) == "" {
		return base, io.NopCloser(nil), nil
	}
	path := JobLogPath(logDir, jobID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure job log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open job log: %w", err)
	}
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger := TeeLogger(base, newJSONHandler(file, lvl, false))
	return logger.With(String(FieldJobID, jobID)), file, nil
}

// PruneJobLogs removes per-job log files whose mtime is older than
// retentionDays and returns how many went. Zero days keeps everything.
func PruneJobLogs(logger *slog.Logger, logDir string, retentionDays int) int {
	if strings.TrimSpace(logDir) == "" || retentionDays <= 0 {
		return 0
	}
	dir := filepath.Join(logDir, JobLogDir)
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "job log removal failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old job log remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("job log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
