package subtitles

import (
	"testing"

	"subline/internal/transcription"
)

func seg(start, end float64, text string) transcription.Segment {
	return transcription.Segment{Start: start, End: end, Text: text}
}

func TestFilterHallucinations(t *testing.T) {
	segments := []transcription.Segment{
		seg(0, 2, "Hello there."),
		seg(2, 4, "Subtitles by the Amara.org community"),
		seg(4, 6, "Thank you."), // mid-conversation, kept
		seg(6, 8, "How are you?"),
		seg(60, 62, "Thanks for watching!"), // isolated
		seg(100, 101, "♪ ♪"),               // isolated
		seg(140, 141, "Okay."),
		seg(160, 161, "Okay."),
		seg(180, 181, "Okay."), // three repeats spaced >10s
		seg(250, 252, "Real dialogue."),
	}
	kept, stats := FilterHallucinations(segments, 0)
	var texts []string
	for _, s := range kept {
		texts = append(texts, s.Text)
	}
	want := []string{"Hello there.", "Thank you.", "How are you?", "Real dialogue."}
	if len(texts) != len(want) {
		t.Fatalf("kept %q", texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("kept %q, want %q", texts, want)
		}
	}
	if stats["credit"] != 1 || stats["filler"] != 1 || stats["music"] != 1 || stats["repeated"] != 3 || stats.Removed() != 6 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestFilterTrailingWindow(t *testing.T) {
	segments := []transcription.Segment{
		seg(10, 12, "Start."),
		seg(1190, 1191, "Bye."),
		seg(1191, 1192, "We never stop talking."),
	}
	kept, stats := FilterHallucinations(segments, 1200)
	if len(kept) != 2 || stats["filler"] != 1 {
		t.Fatalf("kept=%v stats=%v", kept, stats)
	}
	// Short audio has no trailing sweep.
	kept, _ = FilterHallucinations([]transcription.Segment{seg(0, 1, "Hi."), seg(1, 2, "Bye.")}, 100)
	if len(kept) != 2 {
		t.Fatalf("short audio filtered: %v", kept)
	}
}
