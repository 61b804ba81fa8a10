package translation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"subline/internal/cancel"
	"subline/internal/progress"
	"subline/internal/transcription"
)

type scriptedProvider struct {
	calls int
	// failFirst fails this many calls before succeeding; -1 fails forever.
	failFirst int
	prefix    string
	onCall    func(call int)
}

func (p *scriptedProvider) Translate(_ context.Context, text, target string) (string, error) {
	p.calls++
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if p.failFirst < 0 || p.calls <= p.failFirst {
		return "", errors.New("provider down")
	}
	return p.prefix + text + "@" + target, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func segments(texts ...string) []transcription.Segment {
	out := make([]transcription.Segment, len(texts))
	for i, text := range texts {
		out[i] = transcription.Segment{Start: float64(i), End: float64(i) + 1, Text: text}
	}
	return out
}

func TestTranslatePrimarySucceeds(t *testing.T) {
	primary := &scriptedProvider{prefix: "p:"}
	fallback := &scriptedProvider{prefix: "f:"}
	in := segments("hola", "adios")
	out := NewStage(primary, fallback, WithSleeper((&sleepRecorder{}).sleep)).Translate(context.Background(), in, "en")
	if primary.calls != 2 || fallback.calls != 0 {
		t.Fatalf("calls primary=%d fallback=%d", primary.calls, fallback.calls)
	}
	if got := *out[1].TranslatedText; got != "p:adios@en" {
		t.Fatalf("translation = %q", got)
	}
	if out[1].Text != "adios" {
		t.Fatal("original text must be kept")
	}
	if in[0].TranslatedText != nil {
		t.Fatal("input slice was modified")
	}
}

func TestTranslateRetriesThenFallback(t *testing.T) {
	primary := &scriptedProvider{failFirst: -1}
	fallback := &scriptedProvider{prefix: "f:"}
	sleeper := &sleepRecorder{}
	out := NewStage(primary, fallback,
		WithRetries(3),
		WithRetryDelay(1500*time.Millisecond),
		WithSleeper(sleeper.sleep),
	).Translate(context.Background(), segments("uno", "dos"), "English")

	if primary.calls != 6 {
		t.Fatalf("primary should be tried 3 times per segment, got %d calls", primary.calls)
	}
	if fallback.calls != 2 {
		t.Fatalf("fallback calls = %d", fallback.calls)
	}
	for i, seg := range out {
		want := "f:" + seg.Text + "@English"
		if seg.TranslatedText == nil || *seg.TranslatedText != want {
			t.Fatalf("segment %d = %v, want %q", i, seg.TranslatedText, want)
		}
	}
	// Delays fall between attempts only: two per segment.
	if len(sleeper.waits) != 4 || sleeper.waits[0] != 1500*time.Millisecond {
		t.Fatalf("waits = %v", sleeper.waits)
	}
}

func TestTranslateRecoversOnLaterAttempt(t *testing.T) {
	primary := &scriptedProvider{failFirst: 2, prefix: "p:"}
	fallback := &scriptedProvider{prefix: "f:"}
	out := NewStage(primary, fallback, WithSleeper((&sleepRecorder{}).sleep)).Translate(context.Background(), segments("x"), "de")
	if primary.calls != 3 || fallback.calls != 0 {
		t.Fatalf("primary=%d fallback=%d", primary.calls, fallback.calls)
	}
	if *out[0].TranslatedText != "p:x@de" {
		t.Fatalf("translation = %q", *out[0].TranslatedText)
	}
}

func TestTranslateTotalFailurePassesThrough(t *testing.T) {
	primary := &scriptedProvider{failFirst: -1}
	fallback := &scriptedProvider{failFirst: -1}
	in := segments("bonjour", "merci")
	out := NewStage(primary, fallback, WithSleeper((&sleepRecorder{}).sleep)).Translate(context.Background(), in, "en")
	if len(out) != len(in) {
		t.Fatalf("lines dropped: %d", len(out))
	}
	for i, seg := range out {
		if seg.TranslatedText == nil || *seg.TranslatedText != in[i].Text {
			t.Fatalf("segment %d should pass through, got %v", i, seg.TranslatedText)
		}
	}
}

func TestTranslateNilProviders(t *testing.T) {
	fallback := &scriptedProvider{prefix: "f:"}
	out := NewStage(nil, fallback).Translate(context.Background(), segments("a"), "en")
	if *out[0].TranslatedText != "f:a@en" {
		t.Fatalf("fallback-only = %q", *out[0].TranslatedText)
	}
	out = NewStage(nil, nil).Translate(context.Background(), segments("a", "  "), "en")
	if *out[0].TranslatedText != "a" || *out[1].TranslatedText != "  " {
		t.Fatal("no providers should pass text through")
	}
}

func TestTranslateProgressAndCancellation(t *testing.T) {
	signal := cancel.NewSignal()
	primary := &scriptedProvider{prefix: "p:", onCall: func(call int) {
		if call == 2 {
			signal.Set()
		}
	}}
	recorder := &progress.Recorder{}
	out := NewStage(primary, nil, WithSignal(signal), WithProgress(recorder)).
		Translate(context.Background(), segments("a", "b", "c", "d"), "en")

	if primary.calls != 2 {
		t.Fatalf("translated past cancellation: %d calls", primary.calls)
	}
	for i, seg := range out {
		if (i < 2) != (seg.TranslatedText != nil) {
			t.Fatalf("segment %d translated=%v", i, seg.TranslatedText != nil)
		}
	}
	if out[3].DisplayText() != "d" {
		t.Fatal("untranslated segment should display its text")
	}
	events := recorder.Stage(progress.StageTranslation)
	if len(events) != 2 || events[0].Percent != 25 || events[1].Percent != 50 || events[1].Total != 4 {
		t.Fatalf("events = %+v", events)
	}
}

func TestTranslateCancelledBeforeStart(t *testing.T) {
	signal := cancel.NewSignal()
	signal.Set()
	primary := &scriptedProvider{}
	out := NewStage(primary, nil, WithSignal(signal)).Translate(context.Background(), segments("a"), "en")
	if primary.calls != 0 || out[0].TranslatedText != nil {
		t.Fatal("cancelled stage must not translate")
	}
}

type attemptLog struct{ entries []string }

func (a *attemptLog) TranslationAttempt(provider string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	a.entries = append(a.entries, provider+"="+result)
}

func TestTranslateObserverLabels(t *testing.T) {
	obs := &attemptLog{}
	NewStage(&scriptedProvider{failFirst: -1}, &scriptedProvider{},
		WithRetries(2),
		WithProviderNames("llm", "mymemory"),
		WithObserver(obs),
		WithSleeper((&sleepRecorder{}).sleep),
	).Translate(context.Background(), segments("a"), "en")
	if got := strings.Join(obs.entries, ","); got != "llm=error,llm=error,mymemory=ok" {
		t.Fatalf("attempts = %s", got)
	}
}

func TestSleepContextHonorsCancel(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	stop()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepContext = %v", err)
	}
}
