package subtitles

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Entry is one subtitle record. Index is only meaningful after Renumber.
type Entry struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Hours are capped at six digits so every match fits in a time.Duration.
var timecodeRe = regexp.MustCompile(`^(\d{2,6}):(\d{2}):(\d{2})[,.](\d{3})$`)

// ParseTimecode parses HH:MM:SS,mmm. A period is accepted in place of the
// comma.
func ParseTimecode(value string) (time.Duration, error) {
	m := timecodeRe.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	var parts [4]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid timecode %q: %w", value, err)
		}
		parts[i] = n
	}
	h, mins, secs, ms := parts[0], parts[1], parts[2], parts[3]
	if mins > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	total := int64(h)*3600_000 + int64(mins)*60_000 + int64(secs)*1000 + int64(ms)
	return time.Duration(total) * time.Millisecond, nil
}

// FormatTimecode renders d as HH:MM:SS,mmm (SRT). Negative values clamp to zero.
func FormatTimecode(d time.Duration) string {
	return formatClock(d, ',')
}

// FormatVTTTimecode renders d as HH:MM:SS.mmm.
func FormatVTTTimecode(d time.Duration) string {
	return formatClock(d, '.')
}

func formatClock(d time.Duration, sep byte) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600_000
	ms -= h * 3600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

// FromSeconds converts seconds to a millisecond-rounded duration.
func FromSeconds(seconds float64) time.Duration {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
