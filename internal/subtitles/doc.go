// Package subtitles turns transcript segments into timed-text documents and
// repairs SRT timelines.
//
// Times are held as whole milliseconds. The SRT corrector parses a document,
// stable-sorts it by start time, pushes each overlapping entry past its
// predecessor in a single forward pass, renumbers from 1 and serializes. Its
// output is a fixed point: correcting it again changes nothing.
//
// VTT and plain-text renderings are derived from corrected entries, and a
// post-recognition filter drops the credit lines and filler phrases speech
// models tend to invent over silence or music.
package subtitles
