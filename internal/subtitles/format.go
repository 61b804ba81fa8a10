package subtitles

import (
	"fmt"
	"strings"

	"subline/internal/config"
	"subline/internal/services"
	"subline/internal/transcription"
)

// FromSegments builds one entry per segment, using the translation when one
// was recorded. Segments with no visible text are skipped.
func FromSegments(segments []transcription.Segment) []Entry {
	entries := make([]Entry, 0, len(segments))
	for _, seg := range segments {
		text := cleanText(seg.DisplayText())
		if text == "" {
			continue
		}
		entries = append(entries, Entry{
			Start: FromSeconds(seg.Start),
			End:   FromSeconds(seg.End),
			Text:  text,
		})
	}
	Renumber(entries)
	return entries
}

// cleanText trims each line and drops empty ones so text never contains a
// block separator.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r", ""), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Build assembles segments into an SRT document, corrects it and renders the
// requested format. Segments that yield no entry at all fail with
// services.ErrSubtitleStructure.
func Build(format string, segments []transcription.Segment) (string, error) {
	entries := FromSegments(segments)
	if len(entries) == 0 {
		return "", services.Wrap(services.ErrSubtitleStructure, "Output", "build", "no valid subtitle entries found", nil)
	}
	corrected, err := Correct(Serialize(entries))
	if err != nil {
		return "", err
	}
	if format == config.FormatSRT || format == "" {
		return corrected, nil
	}
	parsed, err := Parse(corrected)
	if err != nil {
		return "", err
	}
	return Render(format, parsed)
}

// Render writes entries in format: srt, vtt or txt.
func Render(format string, entries []Entry) (string, error) {
	switch strings.ToLower(format) {
	case config.FormatSRT, "":
		return Serialize(entries), nil
	case config.FormatVTT:
		return RenderVTT(entries), nil
	case config.FormatTXT:
		return RenderText(entries), nil
	default:
		return "", services.Wrap(services.ErrValidation, "Output", "render", fmt.Sprintf("unsupported subtitle format %q", format), nil)
	}
}

// RenderVTT writes a WebVTT document.
func RenderVTT(entries []Entry) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", e.Index, FormatVTTTimecode(e.Start), FormatVTTTimecode(e.End), e.Text)
	}
	return b.String()
}

// RenderText writes one line per entry with no timing.
func RenderText(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(strings.ReplaceAll(e.Text, "\n", " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Extension returns the file extension for format, without the dot.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case config.FormatVTT:
		return "vtt"
	case config.FormatTXT:
		return "txt"
	default:
		return "srt"
	}
}
