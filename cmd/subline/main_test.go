package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subline/internal/downloader"
	"subline/internal/logging"
	"subline/internal/media/audio"
	"subline/internal/pipeline"
	"subline/internal/recognition"
	"subline/internal/segmenter"
)

type cliEnv struct {
	base       string
	configPath string
	outputDir  string
	stateDir   string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")

	env := &cliEnv{
		base:       base,
		configPath: filepath.Join(base, "config.toml"),
		outputDir:  filepath.Join(base, "output"),
		stateDir:   filepath.Join(base, "state"),
	}
	content := fmt.Sprintf(`[paths]
work_dir = %q
output_dir = %q
log_dir = %q
state_dir = %q

[translation]
enabled = false

[logging]
level = "error"
`, filepath.Join(base, "work"), env.outputDir, filepath.Join(base, "logs"), env.stateDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliEnv, args []string, opts ...pipeline.Option) (string, string, error) {
	t.Helper()
	ctx := newCommandContext()
	ctx.runnerOptions = opts
	cmd := newRootCommandWithContext(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

type stubAcquirer struct{}

func (stubAcquirer) Acquire(_ context.Context, source, workDir string) (downloader.Source, error) {
	path := filepath.Join(workDir, "input.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		return downloader.Source{}, err
	}
	return downloader.Source{Path: path, Title: "Weekly Call"}, nil
}

type stubConverter struct{ duration float64 }

func (stubConverter) Convert(_ context.Context, _, dest string, _ audio.Options) (string, error) {
	return dest, os.WriteFile(dest, []byte("RIFF"), 0o644)
}

func (c stubConverter) Probe(context.Context, string) (float64, error) { return c.duration, nil }

func (stubConverter) Extract(_ context.Context, _, dest string, _, _ float64) error {
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

// fakeStages replaces every external step of a transcription run.
func fakeStages(t *testing.T, duration float64) []pipeline.Option {
	t.Helper()
	rec := recognition.RecognizerFunc(func(_ context.Context, chunk segmenter.AudioChunk, _ string) (recognition.Result, error) {
		return recognition.Result{
			Language: "en",
			Segments: []recognition.Segment{{Start: 1, End: 3, Text: fmt.Sprintf("part %d", chunk.Index+1)}},
		}, nil
	})
	host := recognition.NewHost(func(string) (recognition.Recognizer, error) { return rec, nil }, t.TempDir(), logging.NewNop())
	return []pipeline.Option{
		pipeline.WithAcquirer(stubAcquirer{}),
		pipeline.WithConverter(stubConverter{duration: duration}),
		pipeline.WithHost(host),
		pipeline.WithPreflight(nil),
		pipeline.WithIDGenerator(func() string { return "0123456789abcdef" }),
	}
}
