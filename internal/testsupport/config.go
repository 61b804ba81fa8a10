package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subline/internal/config"
)

// ConfigOption adjusts a test configuration. base is the per-test temp root
// the config's directories live under.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns the default config with every directory moved under a
// fresh temp root, translation off and metrics bound to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Metrics.Bind = "127.0.0.1:0"
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithTranslation enables translation into target with the named providers.
func WithTranslation(primary, fallback, target string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Translation.Enabled = true
		cfg.Translation.Primary = primary
		cfg.Translation.Fallback = fallback
		cfg.Translation.TargetLanguage = target
	}
}

// WithStubbedBinaries puts no-op executables named after the external tools
// a run needs (or names, when given) at the front of PATH for the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe", "uvx", "yt-dlp"}
	}
	return func(t testing.TB, base string, _ *config.Config) {
		t.Helper()
		bin := filepath.Join(base, "bin")
		for _, name := range names {
			WriteExecutable(t, filepath.Join(bin, name), "#!/bin/sh\nexit 0\n")
		}
		t.Setenv("PATH", strings.Join([]string{bin, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}
