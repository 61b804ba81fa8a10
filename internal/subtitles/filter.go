package subtitles

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"subline/internal/logging"
	"subline/internal/transcription"
)

// Phrases speech models produce over silence, compared after normalizeText.
var fillerPhrases = map[string]bool{
	"thank you":              true,
	"thank you for watching": true,
	"thanks for watching":    true,
	"please subscribe":       true,
	"like and subscribe":     true,
	"bye":                    true,
	"bye bye":                true,
	"see you next time":      true,
}

// Credit lines copied from subtitled training material.
var creditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)amara\.org`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)\bwww\.`),
}

var punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

const (
	isolationGap     = 30.0
	repeatGap        = 10.0
	repeatRunMinimum = 3
	trailingWindow   = 300.0
)

// FilterStats counts segments removed by FilterHallucinations, by reason.
type FilterStats map[string]int

// Removed is the total number of segments removed.
func (s FilterStats) Removed() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// FilterHallucinations drops segments that are almost certainly not speech:
// credit lines anywhere, runs of three or more identical lines spaced over
// ten seconds apart, and filler phrases or music symbols that are isolated
// by 30s of silence or fall in the last five minutes of long audio.
// totalSeconds is the audio duration, or 0 when unknown.
func FilterHallucinations(segments []transcription.Segment, totalSeconds float64) ([]transcription.Segment, FilterStats) {
	stats := FilterStats{}
	if len(segments) == 0 {
		return segments, stats
	}
	remove := make([]bool, len(segments))
	markRepeats(segments, remove, stats)

	trailingFrom := -1.0
	if totalSeconds >= 2*trailingWindow {
		trailingFrom = totalSeconds - trailingWindow
	}
	for i, seg := range segments {
		if remove[i] {
			continue
		}
		if isCredit(seg.Text) {
			remove[i] = true
			stats["credit"]++
			continue
		}
		isolated := gapBefore(segments, i) >= isolationGap && gapAfter(segments, i) >= isolationGap
		trailing := trailingFrom >= 0 && seg.Start >= trailingFrom
		if !isolated && !trailing {
			continue
		}
		switch {
		case fillerPhrases[normalizeText(seg.Text)]:
			remove[i] = true
			stats["filler"]++
		case isMusicOnly(seg.Text):
			remove[i] = true
			stats["music"]++
		}
	}

	kept := make([]transcription.Segment, 0, len(segments))
	for i, seg := range segments {
		if !remove[i] {
			kept = append(kept, seg)
		}
	}
	return kept, stats
}

// LogFilterStats logs a summary when anything was removed.
func LogFilterStats(logger *slog.Logger, stats FilterStats, remaining int) {
	if logger == nil || stats.Removed() == 0 {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "hallucination_filter_applied"),
		logging.Int("segments_removed", stats.Removed()),
		logging.Int("segments_remaining", remaining),
	}
	for reason, count := range stats {
		attrs = append(attrs, logging.Int("removed_"+reason, count))
	}
	logger.Info("removed non-speech segments", logging.Args(attrs...)...)
}

func markRepeats(segments []transcription.Segment, remove []bool, stats FilterStats) {
	for i := 0; i < len(segments); {
		norm := normalizeText(segments[i].Text)
		if norm == "" {
			i++
			continue
		}
		end := i + 1
		for end < len(segments) &&
			normalizeText(segments[end].Text) == norm &&
			segments[end].Start-segments[end-1].End > repeatGap {
			end++
		}
		if end-i >= repeatRunMinimum {
			for j := i; j < end; j++ {
				remove[j] = true
				stats["repeated"]++
			}
		}
		i = end
	}
}

func gapBefore(segments []transcription.Segment, i int) float64 {
	if i == 0 {
		return segments[0].Start
	}
	return segments[i].Start - segments[i-1].End
}

func gapAfter(segments []transcription.Segment, i int) float64 {
	if i >= len(segments)-1 {
		return 1e9
	}
	return segments[i+1].Start - segments[i].End
}

func isCredit(text string) bool {
	for _, pattern := range creditPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// isMusicOnly reports whether text is only music notation and spaces.
func isMusicOnly(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, r := range text {
		switch {
		case r == '¶', r == '♪', r == '♫', r == '*':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctuationRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
