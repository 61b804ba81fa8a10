// Package logging assembles structured slog loggers for subline.
//
// It owns the console and JSON handlers and the tee that copies a run into
// its own per-job log file. Context helpers tag log lines with job IDs and
// pipeline stages; ProgressSampler keeps progress logging from flooding the
// console during long transcriptions.
package logging
