// Package preflight provides readiness checks for the binaries, directories
// and remote providers a transcription run depends on.
//
// These checks run in two contexts:
//   - The pipeline calls RunAll before a run starts. A failed check aborts
//     the run before any audio is downloaded or converted.
//   - The CLI "subline status" command renders every check, including the
//     provider health probes that RunAll leaves out.
package preflight
