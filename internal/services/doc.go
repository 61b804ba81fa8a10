// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations under it.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, so every fatal failure
//     names its originating stage (acquisition, conversion, recognition,
//     subtitle structure) and callers can decide whether a retry makes sense.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
