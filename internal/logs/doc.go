// Package logs reads per-job log files for `subline history logs`.
//
// Last returns the final lines of a file with bounded memory. Follow keeps
// reading appended lines until the caller's stop condition holds or the
// context ends.
package logs
