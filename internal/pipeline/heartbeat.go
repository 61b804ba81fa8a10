package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subline/internal/history"
	"subline/internal/logging"
)

const (
	heartbeatInterval = time.Minute
	// abandonAfter must comfortably exceed heartbeatInterval.
	abandonAfter = 10 * time.Minute
)

// heartbeat refreshes the job row until ctx is done so concurrent processes
// do not mistake a long run for an abandoned one.
func heartbeat(ctx context.Context, store *history.Store, jobID string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Touch(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// reclaimAbandoned fails jobs whose process died mid-run.
func reclaimAbandoned(ctx context.Context, store *history.Store, logger *slog.Logger) {
	n, err := store.MarkAbandoned(ctx, abandonAfter)
	if err != nil {
		logger.Warn("reclaim abandoned jobs failed", logging.Error(err))
		return
	}
	if n > 0 {
		logger.Info("reclaimed abandoned jobs", logging.Int64("count", n))
	}
}
