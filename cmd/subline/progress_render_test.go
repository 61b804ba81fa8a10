package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"subline/internal/progress"
)

func TestProgressRendererPlainOutputSamplesBuckets(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressRenderer(&buf)
	for i := 1; i <= 20; i++ {
		r.Report(progress.NewEvent(progress.StageTranscription, i, 20))
	}
	r.Report(progress.NewEvent(progress.StageTranslation, 1, 2))
	r.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 5%, then one line per 10% step up to 100%, then the new stage.
	if len(lines) != 12 {
		t.Fatalf("expected 12 lines, got %d:\n%s", len(lines), buf.String())
	}
	if strings.Contains(buf.String(), "\x1b") {
		t.Fatalf("plain output must not contain escape codes: %q", buf.String())
	}
	requireContains(t, lines[10], "100.0% (20/20)")
	requireContains(t, lines[11], "Translation")
}

func TestFormatProgressClampsPercent(t *testing.T) {
	line := formatProgress(progress.Event{Stage: "Chunk Creation", Percent: 140, Current: 3, Total: 2})
	requireContains(t, line, "100.0%")
	requireContains(t, line, strings.Repeat("#", barWidth))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressRendererTracksStagesOnTerminal(t *testing.T) {
	var buf lockedBuffer
	r := newRenderer(&buf, true)
	for i := 1; i <= 4; i++ {
		r.Report(progress.NewEvent(progress.StageChunkCreation, i, 4))
	}
	r.Report(progress.NewEvent(progress.StageTranscription, 1, 4))
	transcribing := r.tracker
	r.Report(progress.NewEvent(progress.StageTranscription, 2, 4))
	if r.tracker != transcribing || r.tracker.Value() != 2 || r.tracker.Total != 4 {
		t.Fatalf("tracker = %+v", r.tracker)
	}
	r.Finish()
	r.Finish()

	if !transcribing.IsDone() {
		t.Fatal("last stage tracker not marked done")
	}
	out := buf.String()
	requireContains(t, out, progress.StageChunkCreation)
	requireContains(t, out, progress.StageTranscription)
}
