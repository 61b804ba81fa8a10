package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with content, making parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	return write(t, path, content, 0o644)
}

// WriteExecutable is WriteFile with the executable bit set.
func WriteExecutable(t testing.TB, path, content string) string {
	t.Helper()
	return write(t, path, content, 0o755)
}

func write(t testing.TB, path, content string, mode os.FileMode) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
