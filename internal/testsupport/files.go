package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteTargets writes one target line per identity into dir/targets.txt.
func WriteTargets(t testing.TB, dir string, lines ...string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(dir, "targets.txt"), strings.Join(lines, "\n")+"\n")
}
