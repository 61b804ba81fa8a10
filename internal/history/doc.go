// Package history records one row per transcription job in a SQLite database
// so past runs can be listed and inspected.
//
// The database lives at config.HistoryPath and uses the pure-Go modernc
// driver in WAL mode. Writes retry briefly on SQLITE_BUSY because a CLI run
// and a `history list` may touch the file at the same time.
package history
