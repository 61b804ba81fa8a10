// Package pipeline runs one transcription job end to end: acquire the
// source, convert it to recognizer-ready audio, split it into chunks,
// recognize them, optionally translate the lines, then correct and persist
// the subtitle file.
//
// A Runner records every job in the history store, tees its logs into a
// per-job file and feeds the metrics recorder. Progress and cancellation are
// supplied per run through Request so a caller can reset them between runs.
package pipeline
