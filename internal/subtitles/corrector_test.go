package subtitles

import (
	"errors"
	"strings"
	"testing"
	"time"

	"subline/internal/services"
)

const sample = "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\n00:00:01,000 --> 00:00:02,000\nWorld\n\n"

func TestCorrectSampleIsFixedPoint(t *testing.T) {
	got, err := Correct(sample)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != sample {
		t.Fatalf("Correct(sample) = %q", got)
	}
}

func TestCorrectEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "  \n\n"} {
		got, err := Correct(raw)
		if err != nil || got != "" {
			t.Fatalf("Correct(%q) = %q, %v", raw, got, err)
		}
	}
}

func TestCorrectStructuralError(t *testing.T) {
	for _, raw := range []string{
		"not a subtitle file",
		"1\n00:00:01 --> 00:00:02\nmissing millis\n",
		"1\n00:00:01,000 --> 00:00:02,000\n\n",
	} {
		if _, err := Correct(raw); !errors.Is(err, services.ErrSubtitleStructure) {
			t.Fatalf("Correct(%q) err = %v", raw, err)
		}
	}
}

func TestCorrectSortsAndRenumbers(t *testing.T) {
	raw := "7\n00:00:05,000 --> 00:00:06,000\nthird\n\n" +
		"3\n00:00:01,000 --> 00:00:02,000\nfirst\n\n" +
		"9\n00:00:03,000 --> 00:00:04,000\nsecond\n\n"
	got, err := Correct(raw)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	want := "1\n00:00:01,000 --> 00:00:02,000\nfirst\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nsecond\n\n" +
		"3\n00:00:05,000 --> 00:00:06,000\nthird\n\n"
	if got != want {
		t.Fatalf("Correct =\n%s\nwant\n%s", got, want)
	}
}

func TestCorrectRepairsOverlap(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "start pushed past predecessor",
			raw:  "1\n00:00:00,000 --> 00:00:02,000\nA\n\n2\n00:00:01,500 --> 00:00:04,000\nB\n\n",
			want: "1\n00:00:00,000 --> 00:00:02,000\nA\n\n2\n00:00:02,001 --> 00:00:04,000\nB\n\n",
		},
		{
			name: "swallowed entry gets two seconds",
			raw:  "1\n00:00:00,000 --> 00:00:05,000\nA\n\n2\n00:00:01,000 --> 00:00:03,000\nB\n\n",
			want: "1\n00:00:00,000 --> 00:00:05,000\nA\n\n2\n00:00:05,001 --> 00:00:07,001\nB\n\n",
		},
		{
			name: "inverted entry without overlap gets two seconds",
			raw:  "1\n00:00:00,000 --> 00:00:01,000\nA\n\n2\n00:00:05,000 --> 00:00:02,000\nB\n\n",
			want: "1\n00:00:00,000 --> 00:00:01,000\nA\n\n2\n00:00:05,000 --> 00:00:07,000\nB\n\n",
		},
		{
			name: "inverted first entry",
			raw:  "1\n00:00:03,000 --> 00:00:03,000\nA\n\n",
			want: "1\n00:00:03,000 --> 00:00:05,000\nA\n\n",
		},
		{
			name: "touching entries untouched",
			raw:  "1\n00:00:00,000 --> 00:00:01,000\nA\n\n2\n00:00:01,000 --> 00:00:01,500\nB\n\n",
			want: "1\n00:00:00,000 --> 00:00:01,000\nA\n\n2\n00:00:01,000 --> 00:00:01,500\nB\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Correct(tt.raw)
			if err != nil {
				t.Fatalf("Correct: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Correct =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

// A long first entry overlapping the next two: each repair looks at the
// already repaired predecessor, so the push carries down the chain and no
// pair overlaps afterwards.
func TestCorrectCascadingOverlaps(t *testing.T) {
	raw := "1\n00:00:00,000 --> 00:00:10,000\nA\n\n" +
		"2\n00:00:01,000 --> 00:00:03,000\nB\n\n" +
		"3\n00:00:02,000 --> 00:00:12,000\nC\n\n" +
		"4\n00:00:11,000 --> 00:00:13,000\nD\n\n"
	got, err := Correct(raw)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:10,000\nA\n\n" +
		"2\n00:00:10,001 --> 00:00:12,001\nB\n\n" +
		"3\n00:00:12,002 --> 00:00:14,002\nC\n\n" +
		"4\n00:00:14,003 --> 00:00:16,003\nD\n\n"
	if got != want {
		t.Fatalf("Correct =\n%s\nwant\n%s", got, want)
	}
	assertOrdered(t, got)
}

func TestCorrectIdempotent(t *testing.T) {
	docs := []string{
		sample,
		"2\r\n00:00:03,000 --> 00:00:04,000\r\nsecond\r\nline two\r\n\r\n1\r\n00:00:00,500 --> 00:00:03,500\r\nfirst\r\n",
		"1\n00:00:00,000 --> 00:00:10,000\nA\n\n2\n00:00:01,000 --> 00:00:03,000\nB\n\n3\n00:00:02,000 --> 00:00:12,000\nC\n",
		"5\n00:00:01,000 --> 00:00:02,000\nsame start\n\n6\n00:00:01,000 --> 00:00:01,500\nsame start again\n\n",
		"\ufeff1\n100:00:00,000 --> 100:00:01,000\nlong media\n\n",
		// Missing blank separator between blocks.
		"1\n00:00:00,000 --> 00:00:01,000\nA\n2\n00:00:00,500 --> 00:00:02,000\nB\n",
		"1\n00:00:00,000 --> 00:00:01,000\nA\n\n2\n00:00:05,000 --> 00:00:02,000\nB\n\n3\n00:00:06,000 --> 00:00:08,000\nC\n",
	}
	for i, doc := range docs {
		once, err := Correct(doc)
		if err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		twice, err := Correct(once)
		if err != nil {
			t.Fatalf("doc %d second pass: %v", i, err)
		}
		if once != twice {
			t.Fatalf("doc %d not idempotent:\n%q\n%q", i, once, twice)
		}
		assertOrdered(t, once)
	}
}

// assertOrdered checks that indices run 1..N and that each entry starts no
// earlier than its predecessor ends and has positive duration.
func assertOrdered(t *testing.T, doc string) {
	t.Helper()
	entries, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse corrected output: %v", err)
	}
	for i, e := range entries {
		if e.Index != i+1 {
			t.Fatalf("entry %d has index %d", i, e.Index)
		}
		if e.End <= e.Start {
			t.Fatalf("entry %d has no duration", e.Index)
		}
		if i > 0 && e.Start < entries[i-1].End {
			t.Fatalf("entry %d starts at %v before previous end %v", e.Index, e.Start, entries[i-1].End)
		}
	}
}

func TestCorrectRejectsOverflowingHours(t *testing.T) {
	raw := "1\n99999999999999999999:00:00,000 --> 99999999999999999999:00:01,000\nA\n\n"
	if _, err := Correct(raw); !errors.Is(err, services.ErrSubtitleStructure) {
		t.Fatalf("Correct = %v, want ErrSubtitleStructure", err)
	}
}

func TestParseMultilineAndLenientSeparators(t *testing.T) {
	raw := "1\r\n00:00:01.250 --> 00:00:02,000 position:10%\r\n  line one \r\nline two\r\n\r\n\r\n2\n00:00:03,000-->00:00:04,000\nnext\n"
	entries, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Text != "line one\nline two" || entries[0].Start != 1250*time.Millisecond {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].Start != 3*time.Second || entries[1].End != 4*time.Second {
		t.Fatalf("entry 1 = %+v", entries[1])
	}
}

func TestTimecodes(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"00:00:00,000", 0, true},
		{"01:02:03,004", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, true},
		{"00:00:01.500", 1500 * time.Millisecond, true},
		{"00:61:00,000", 0, false},
		{"0:00:01,000", 0, false},
		{"00:00:01,5", 0, false},
		{"999999:00:00,000", 999999 * time.Hour, true},
		{"99999999999999999999:00:00,000", 0, false},
		{"1000000:00:00,000", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseTimecode(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("ParseTimecode(%q) = %v, %v", tt.in, got, err)
		}
		if tt.ok && FormatTimecode(got) != strings.ReplaceAll(tt.in, ".", ",") {
			t.Fatalf("FormatTimecode round trip for %q = %q", tt.in, FormatTimecode(got))
		}
	}
	if FormatTimecode(-time.Second) != "00:00:00,000" {
		t.Fatal("negative durations should clamp to zero")
	}
	if FormatVTTTimecode(90*time.Second+5*time.Millisecond) != "00:01:30.005" {
		t.Fatalf("vtt = %q", FormatVTTTimecode(90*time.Second+5*time.Millisecond))
	}
}

func TestFromSecondsRounds(t *testing.T) {
	if got := FromSeconds(1.0006); got != 1001*time.Millisecond {
		t.Fatalf("FromSeconds(1.0006) = %v", got)
	}
	if got := FromSeconds(59.9994); got != 59999*time.Millisecond {
		t.Fatalf("FromSeconds(59.9994) = %v", got)
	}
	if FromSeconds(-2) != 0 {
		t.Fatal("negative seconds should clamp")
	}
}
