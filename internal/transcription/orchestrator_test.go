package transcription

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"subline/internal/cancel"
	"subline/internal/progress"
	"subline/internal/recognition"
	"subline/internal/segmenter"
	"subline/internal/services"
)

// fakeRecognizer returns two local segments per chunk and a scripted
// language per chunk index.
type fakeRecognizer struct {
	languages map[int]string
	failAt    int
	failWith  error
	hints     []string
	seen      []int
	onChunk   func(index int)
}

func (f *fakeRecognizer) Recognize(_ context.Context, chunk segmenter.AudioChunk, hint string) (recognition.Result, error) {
	f.seen = append(f.seen, chunk.Index)
	f.hints = append(f.hints, hint)
	if f.onChunk != nil {
		f.onChunk(chunk.Index)
	}
	if f.failWith != nil && chunk.Index == f.failAt {
		return recognition.Result{}, f.failWith
	}
	return recognition.Result{
		Language: f.languages[chunk.Index],
		Segments: []recognition.Segment{
			{Start: 0.5, End: 2.0, Text: "a"},
			{Start: 3.0, End: 4.25, Text: "b"},
		},
	}, nil
}

func chunksOf(n int, length float64) []segmenter.AudioChunk {
	chunks := make([]segmenter.AudioChunk, n)
	for i := range chunks {
		chunks[i] = segmenter.AudioChunk{Index: i, Path: "chunk.wav", StartOffset: float64(i) * length, Duration: length}
	}
	return chunks
}

func TestTranscribeOffsetsToGlobalTimeline(t *testing.T) {
	chunks := chunksOf(3, 30)
	rec := &fakeRecognizer{}
	segs, _, err := NewOrchestrator(rec).Transcribe(context.Background(), chunks, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(segs))
	}
	local := []float64{0.5, 3.0}
	for i, seg := range segs {
		chunk := chunks[i/2]
		if want := chunk.StartOffset + local[i%2]; seg.Start != want {
			t.Fatalf("segment %d start = %v, want %v", i, seg.Start, want)
		}
		if i > 0 && seg.Start < segs[i-1].Start {
			t.Fatalf("segment %d goes backwards", i)
		}
		if seg.TranslatedText != nil {
			t.Fatalf("segment %d has a translation before translation ran", i)
		}
	}
	if segs[5].End != 60+4.25 {
		t.Fatalf("last end = %v", segs[5].End)
	}
}

func TestTranscribeLanguagePolicy(t *testing.T) {
	tests := []struct {
		name      string
		hint      string
		languages map[int]string
		want      string
		wantHint  string
	}{
		{name: "first detection wins", languages: map[int]string{0: "fr", 1: "de", 2: "es"}, want: "fr"},
		{name: "first chunk silent", languages: map[int]string{1: "de", 2: "fr"}, want: "de"},
		{name: "name normalized", languages: map[int]string{0: "Japanese"}, want: "ja"},
		{name: "no detection", languages: map[int]string{}, want: ""},
		{name: "hint forwarded", hint: "it", languages: map[int]string{0: "fr"}, want: "it", wantHint: "it"},
		{name: "auto means detect", hint: "auto", languages: map[int]string{0: "pt"}, want: "pt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{languages: tt.languages}
			_, lang, err := NewOrchestrator(rec).Transcribe(context.Background(), chunksOf(3, 10), tt.hint)
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if lang != tt.want {
				t.Fatalf("language = %q, want %q", lang, tt.want)
			}
			for i, h := range rec.hints {
				if h != tt.wantHint {
					t.Fatalf("chunk %d got hint %q, want %q", i, h, tt.wantHint)
				}
			}
		})
	}
}

func TestTranscribeProgressMonotonic(t *testing.T) {
	chunks := chunksOf(4, 10)
	// Trailing zero-span chunk from an exact multiple still reports progress.
	chunks = append(chunks, segmenter.AudioChunk{Index: 4, StartOffset: 40})
	rec := &fakeRecognizer{}
	recorder := &progress.Recorder{}
	segs, _, err := NewOrchestrator(rec, WithProgress(recorder)).Transcribe(context.Background(), chunks, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(rec.seen) != 4 {
		t.Fatalf("zero-span chunk should not reach the recognizer, saw %v", rec.seen)
	}
	if len(segs) != 8 {
		t.Fatalf("segments = %d", len(segs))
	}
	events := recorder.Stage(progress.StageTranscription)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Current != i+1 || ev.Total != 5 {
			t.Fatalf("event %d = %+v", i, ev)
		}
		if i > 0 && ev.Percent < events[i-1].Percent {
			t.Fatalf("progress decreased at %d", i)
		}
	}
	if events[4].Percent != 100 {
		t.Fatalf("final percent = %v", events[4].Percent)
	}
}

func TestTranscribeCancelledBeforeStart(t *testing.T) {
	signal := cancel.NewSignal()
	signal.Set()
	rec := &fakeRecognizer{}
	segs, _, err := NewOrchestrator(rec, WithSignal(signal)).Transcribe(context.Background(), chunksOf(3, 10), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(rec.seen) != 0 || len(segs) != 0 {
		t.Fatalf("cancelled run consumed %v and produced %d segments", rec.seen, len(segs))
	}
}

func TestTranscribeCancelledAfterChunk(t *testing.T) {
	for k := 0; k < 3; k++ {
		signal := cancel.NewSignal()
		rec := &fakeRecognizer{onChunk: func(index int) {
			if index == k {
				signal.Set()
			}
		}}
		segs, _, err := NewOrchestrator(rec, WithSignal(signal)).Transcribe(context.Background(), chunksOf(4, 10), "")
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if len(rec.seen) != k+1 {
			t.Fatalf("k=%d: consumed %v", k, rec.seen)
		}
		if len(segs) != 2*(k+1) {
			t.Fatalf("k=%d: segments = %d, want %d", k, len(segs), 2*(k+1))
		}
		if last := segs[len(segs)-1]; last.Start != float64(k)*10+3.0 {
			t.Fatalf("k=%d: last segment from wrong chunk: %+v", k, last)
		}
	}
}

func TestTranscribeContextCancelledMidChunk(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	rec := &fakeRecognizer{failAt: 1, failWith: errors.New("killed")}
	rec.onChunk = func(index int) {
		if index == 1 {
			stop()
		}
	}
	segs, _, err := NewOrchestrator(rec).Transcribe(ctx, chunksOf(3, 10), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("interrupted chunk leaked segments: %d", len(segs))
	}
}

type recordingObserver struct {
	ok     int
	failed []string
}

func (r *recordingObserver) ChunkRecognized(time.Duration) { r.ok++ }
func (r *recordingObserver) RecognitionFailed(kind string) { r.failed = append(r.failed, kind) }

func TestTranscribeFailureKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{name: "bad input", err: services.Wrap(services.ErrBadInput, "Transcription", "whisperx", "Audio could not be decoded", nil), want: services.ErrBadInput},
		{name: "engine fault", err: services.Wrap(services.ErrEngineFault, "Transcription", "whisperx", "whisperx failed", nil), want: services.ErrEngineFault, retryable: true},
		{name: "untagged", err: errors.New("boom"), want: services.ErrEngineFault, retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{failAt: 1, failWith: tt.err}
			obs := &recordingObserver{}
			segs, _, err := NewOrchestrator(rec, WithObserver(obs)).Transcribe(context.Background(), chunksOf(3, 10), "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if services.Retryable(err) != tt.retryable {
				t.Fatalf("Retryable = %v", services.Retryable(err))
			}
			if !strings.Contains(err.Error(), "chunk 1") {
				t.Fatalf("error does not name the chunk: %v", err)
			}
			if len(rec.seen) != 2 {
				t.Fatalf("run continued past the failed chunk: %v", rec.seen)
			}
			if len(segs) != 2 || obs.ok != 1 || len(obs.failed) != 1 {
				t.Fatalf("segs=%d ok=%d failed=%v", len(segs), obs.ok, obs.failed)
			}
		})
	}
}

func TestDisplayText(t *testing.T) {
	seg := Segment{Text: "hola"}
	if seg.DisplayText() != "hola" {
		t.Fatal("untranslated segment should show its text")
	}
	tr := "hello"
	seg.TranslatedText = &tr
	if seg.DisplayText() != "hello" {
		t.Fatal("translated segment should show the translation")
	}
}
