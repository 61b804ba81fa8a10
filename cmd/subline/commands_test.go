package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subline/internal/testsupport"
)

const messySRT = "2\n00:00:05,000 --> 00:00:07,000\nsecond\n\n" +
	"1\n00:00:01,000 --> 00:00:06,000\nfirst\n"

func TestCorrectInPlaceWithBackup(t *testing.T) {
	env := setupCLIEnv(t)
	path := testsupport.WriteFile(t, filepath.Join(env.base, "talk.srt"), messySRT)

	out, _, err := runCLI(t, env, []string{"correct", "--backup", path})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	requireContains(t, out, "Corrected 2 entries")

	backup, err := os.ReadFile(path + ".bak")
	if err != nil || string(backup) != messySRT {
		t.Fatalf("backup mismatch: %q %v", backup, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read corrected: %v", err)
	}
	got := string(data)
	if !strings.HasPrefix(got, "1\n00:00:01,000 --> 00:00:06,000\nfirst") {
		t.Fatalf("entries not reordered:\n%s", got)
	}
	requireContains(t, got, "2\n00:00:06,001 --> 00:00:07,000\nsecond")
}

func TestCorrectToOutputLeavesSource(t *testing.T) {
	env := setupCLIEnv(t)
	src := testsupport.WriteFile(t, filepath.Join(env.base, "in.srt"), messySRT)
	dst := filepath.Join(env.base, "out.srt")
	if _, _, err := runCLI(t, env, []string{"correct", "-o", dst, src}); err != nil {
		t.Fatalf("correct: %v", err)
	}
	if data, _ := os.ReadFile(src); string(data) != messySRT {
		t.Fatalf("source modified: %q", data)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(src + ".bak"); !os.IsNotExist(err) {
		t.Fatalf("unexpected backup: %v", err)
	}
}

func TestCorrectRejectsGarbage(t *testing.T) {
	env := setupCLIEnv(t)
	path := testsupport.WriteFile(t, filepath.Join(env.base, "bad.srt"), "not a subtitle file\n")
	if _, _, err := runCLI(t, env, []string{"correct", path}); err == nil {
		t.Fatal("expected error for unparsable input")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLIEnv(t)
	target := filepath.Join(env.base, "fresh", "config.toml")

	out, _, err := runCLI(t, env, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, _, err := runCLI(t, env, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, _, err := runCLI(t, env, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, env, []string{"config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLIEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[transcription]\nengine = \"openai\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, env, []string{"config", "validate"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "openai.api_key")
}

func TestModelsListsVariants(t *testing.T) {
	env := setupCLIEnv(t)
	cache := filepath.Join(env.base, "hf")
	t.Setenv("HF_HUB_CACHE", cache)
	if err := os.MkdirAll(filepath.Join(cache, "models--Systran--faster-whisper-small"), 0o755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}

	out, _, err := runCLI(t, env, []string{"models"})
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	requireContains(t, out, "Engine: whisperx")
	requireContains(t, out, "large-v3")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, " small ") && !strings.Contains(line, "yes") {
			t.Fatalf("small should be reported as downloaded: %q", line)
		}
		if strings.Contains(line, " base ") && !strings.Contains(line, "*") {
			t.Fatalf("base should be selected: %q", line)
		}
	}
}

func TestStatusOfflineReport(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, err := runCLI(t, env, []string{"status", "--offline"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Configuration ==")
	requireContains(t, out, "== Tools ==")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "Jobs:")
	if strings.Contains(out, "== Providers ==") {
		t.Fatalf("offline status must not probe providers:\n%s", out)
	}
}

func TestRenderCheckLine(t *testing.T) {
	plain := renderCheckLine("FFmpeg", levelError, "not found", false)
	if plain != "  FFmpeg:            [ERROR] not found" {
		t.Fatalf("unexpected line %q", plain)
	}
	colored := renderCheckLine("FFmpeg", levelOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected green line, got %q", colored)
	}
}

func TestTestNotify(t *testing.T) {
	env := setupCLIEnv(t)
	if _, _, err := runCLI(t, env, []string{"test-notify"}); err == nil {
		t.Fatal("expected error without a topic")
	}

	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
	}))
	defer server.Close()
	cfgFile, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	if _, err := cfgFile.WriteString("\n[notifications]\nntfy_topic = \"" + server.URL + "\"\n"); err != nil {
		t.Fatalf("append config: %v", err)
	}
	cfgFile.Close()

	out, _, err := runCLI(t, env, []string{"test-notify"})
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title != "subline - Test" {
		t.Fatalf("unexpected title %q", title)
	}
}
