package logging

import "testing"

func TestProgressSamplerSequence(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		stage   string
		percent float64
		want    bool
	}{
		{"Chunk Creation", 0, true},
		{"Chunk Creation", 10, false},
		{"Chunk Creation", 25, true},
		{"Chunk Creation", 49.9, false},
		{"Chunk Creation", 100, true},
		{"Chunk Creation", 100, false},
		{"Transcription", 0, true},
		{" Transcription ", 5, false},
		{"Transcription", -1, false},
		{"Transcription", 150, true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.stage, step.percent); got != step.want {
			t.Fatalf("step %d (%s %.1f): got %v, want %v", i, step.stage, step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerDefaultsAndReset(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 5 {
		t.Fatalf("bucketSize = %v, want 5", s.bucketSize)
	}
	if !s.ShouldLog("Translation", 50) {
		t.Fatal("expected first event to log")
	}
	s.Reset()
	if !s.ShouldLog("Translation", 50) {
		t.Fatal("expected event after reset to log")
	}

	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog("x", 1) {
		t.Fatal("nil sampler should always log")
	}
	nilSampler.Reset()
}
