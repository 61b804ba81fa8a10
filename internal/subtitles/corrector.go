package subtitles

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"subline/internal/services"
)

// Repair constants.
const (
	overlapNudge   = time.Millisecond
	minimumDisplay = 2 * time.Second
)

var cueTimingRe = regexp.MustCompile(`^\s*(\S+)\s*-->\s*(\S+)`)

// Correct parses an SRT document, repairs ordering and overlaps, renumbers
// and serializes it. Empty input yields empty output. Non-empty input with no
// parsable entry fails with services.ErrSubtitleStructure.
func Correct(raw string) (string, error) {
	entries, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	Sort(entries)
	Repair(entries)
	Renumber(entries)
	return Serialize(entries), nil
}

// Parse reads SRT blocks: an index line, a "start --> end" line, then one or
// more text lines. Blocks are normally separated by blank lines; a new
// index/timing pair also ends the previous block. Blocks without text are
// dropped.
func Parse(raw string) ([]Entry, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimPrefix(normalized, "\ufeff")
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}

	lines := strings.Split(normalized, "\n")
	var entries []Entry
	for i := 0; i < len(lines); {
		start, end, ok := blockHeader(lines, i)
		if !ok {
			i++
			continue
		}
		i += 2
		var text []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			if _, _, next := blockHeader(lines, i); next {
				break
			}
			text = append(text, strings.TrimSpace(lines[i]))
			i++
		}
		if len(text) == 0 {
			continue
		}
		entries = append(entries, Entry{Start: start, End: end, Text: strings.Join(text, "\n")})
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrSubtitleStructure, "Correction", "parse", "no valid subtitle entries found", nil)
	}
	for i := range entries {
		entries[i].Index = i + 1
	}
	return entries, nil
}

// blockHeader reports whether lines[i] is an index line followed by a
// timing line.
func blockHeader(lines []string, i int) (time.Duration, time.Duration, bool) {
	if i+1 >= len(lines) {
		return 0, 0, false
	}
	if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err != nil {
		return 0, 0, false
	}
	m := cueTimingRe.FindStringSubmatch(lines[i+1])
	if m == nil {
		return 0, 0, false
	}
	start, err := ParseTimecode(m[1])
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseTimecode(m[2])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// Sort orders entries by start time, keeping the input order of ties.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
}

// Repair walks sorted entries once. An entry starting before its
// predecessor ends is moved to 1ms after that end. Any entry left with no
// duration, moved or not, ends 2s after its start. Each entry is compared
// with its predecessor after the predecessor was repaired, so an overlap
// pushed forward is carried through the rest of a chain. It returns the
// number of entries changed.
func Repair(entries []Entry) int {
	changed := 0
	for k := range entries {
		cur := &entries[k]
		fixed := false
		if k > 0 && cur.Start < entries[k-1].End {
			cur.Start = entries[k-1].End + overlapNudge
			fixed = true
		}
		if cur.End <= cur.Start {
			cur.End = cur.Start + minimumDisplay
			fixed = true
		}
		if fixed {
			changed++
		}
	}
	return changed
}

// Renumber assigns indices 1..N in slice order.
func Renumber(entries []Entry) {
	for i := range entries {
		entries[i].Index = i + 1
	}
}

// Serialize writes entries as SRT blocks, each followed by a blank line.
func Serialize(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", e.Index, FormatTimecode(e.Start), FormatTimecode(e.End), e.Text)
	}
	return b.String()
}
