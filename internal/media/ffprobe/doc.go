// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Prober.Duration is the probe capability the segmenter uses to size chunks;
// Inspect exposes the stream list used to pick the audio track to transcribe.
package ffprobe
